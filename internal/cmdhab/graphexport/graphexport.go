// Copyright 2026 The HAB Authors
// SPDX-License-Identifier: Apache-2.0

// Package graphexport implements the `hab graph export`/`hab graph serve`
// subcommands: a one-shot offline dump of the dependency graph (dot or
// JSON, including feedback edges) alongside the live `/data` HTTP endpoint
// internal/vizfeed already implements.
package graphexport

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"

	"github.com/habitat-sh/hab-auto-build/internal/cmdhab/common"
	"github.com/habitat-sh/hab-auto-build/internal/cmdhab/exitcode"
	"github.com/habitat-sh/hab-auto-build/internal/graph"
	"github.com/habitat-sh/hab-auto-build/internal/vizfeed"
	"github.com/habitat-sh/hab-auto-build/pkg/act/cli"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

// ExportConfig is `hab graph export`'s flag surface.
type ExportConfig struct {
	common.Flags
	Format string // "json" or "dot"
}

func (c ExportConfig) Validate() error {
	if err := c.Flags.Validate(); err != nil {
		return err
	}
	switch c.Format {
	case "json", "dot":
		return nil
	default:
		return errors.Errorf("invalid --format %q: must be json or dot", c.Format)
	}
}

// ExportDeps holds the export command's runtime dependencies.
type ExportDeps struct{ IO cli.IO }

func (d *ExportDeps) SetIO(io cli.IO) { d.IO = io }

// InitExportDeps constructs ExportDeps.
func InitExportDeps(context.Context) (*ExportDeps, error) { return &ExportDeps{}, nil }

// ExportResult is the export handler's output.
type ExportResult struct{ Format string }

func parseNoArgs[C any](cfg *C, args []string) error { return nil }

// ExportHandler writes the graph (nodes, edges, feedback edges) to stdout
// in the requested format.
func ExportHandler(ctx context.Context, cfg ExportConfig, deps *ExportDeps) (*ExportResult, error) {
	eng, err := common.Load(ctx, cfg.Flags)
	if err != nil {
		return nil, exitcode.Wrap(exitcode.ConfigError, err)
	}
	defer eng.Close()
	// TopoOrder computes the feedback-arc set and records it on
	// Graph.Feedback, which both output formats read.
	eng.Graph.TopoOrder()

	if cfg.Format == "dot" {
		writeDot(deps.IO.Out, eng.Graph)
		return &ExportResult{Format: cfg.Format}, nil
	}

	enc := json.NewEncoder(deps.IO.Out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(vizfeed.Build(eng.Graph)); err != nil {
		return nil, err
	}
	return &ExportResult{Format: cfg.Format}, nil
}

func writeDot(out interface{ Write([]byte) (int, error) }, g *graph.Graph) {
	fmt.Fprintln(out, "digraph hab {")
	for _, e := range g.Edges() {
		fmt.Fprintf(out, "  %q -> %q [label=%q];\n", e.From.Key(), e.To.Key(), e.Kind)
	}
	for _, e := range g.Feedback {
		fmt.Fprintf(out, "  %q -> %q [label=%q, color=red, style=dashed];\n", e.From.Key(), e.To.Key(), "feedback:"+string(e.Kind))
	}
	fmt.Fprintln(out, "}")
}

// ExportCommand constructs `hab graph export`.
func ExportCommand() *cobra.Command {
	cfg := ExportConfig{Format: "json"}
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Dump the dependency graph, including feedback edges, as JSON or dot",
		RunE:  cli.RunE(&cfg, parseNoArgs[ExportConfig], InitExportDeps, ExportHandler),
	}
	set := flag.NewFlagSet("export", flag.ContinueOnError)
	cfg.Flags.Register(set)
	set.StringVar(&cfg.Format, "format", "json", "output format: json or dot")
	cmd.Flags().AddGoFlagSet(set)
	return cmd
}

// ServeConfig is `hab graph serve`'s flag surface.
type ServeConfig struct {
	common.Flags
	Addr string
}

func (c ServeConfig) Validate() error { return c.Flags.Validate() }

// ServeDeps holds the serve command's runtime dependencies.
type ServeDeps struct{ IO cli.IO }

func (d *ServeDeps) SetIO(io cli.IO) { d.IO = io }

// InitServeDeps constructs ServeDeps.
func InitServeDeps(context.Context) (*ServeDeps, error) { return &ServeDeps{}, nil }

// ServeResult is the serve handler's output; Handler only returns once the
// server stops (ctx cancellation or a listen error).
type ServeResult struct{ Addr string }

// ServeHandler serves the `/data` visualization feed (plus the
// embedded placeholder asset) at cfg.Addr until ctx is cancelled.
func ServeHandler(ctx context.Context, cfg ServeConfig, deps *ServeDeps) (*ServeResult, error) {
	eng, err := common.Load(ctx, cfg.Flags)
	if err != nil {
		return nil, exitcode.Wrap(exitcode.ConfigError, err)
	}
	defer eng.Close()
	eng.Graph.TopoOrder() // fills Graph.Feedback for the feed's feedback_edges

	handler := &vizfeed.Handler{Snapshot: func() *graph.Graph { return eng.Graph }}
	srv := &http.Server{Addr: cfg.Addr, Handler: handler}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	fmt.Fprintf(deps.IO.Out, "serving graph feed on %s\n", cfg.Addr)

	select {
	case <-ctx.Done():
		_ = srv.Close()
		return &ServeResult{Addr: cfg.Addr}, nil
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return nil, err
		}
		return &ServeResult{Addr: cfg.Addr}, nil
	}
}

// ServeCommand constructs `hab graph serve`.
func ServeCommand() *cobra.Command {
	cfg := ServeConfig{Addr: ":8080"}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the visualization graph feed over HTTP",
		RunE:  cli.RunE(&cfg, parseNoArgs[ServeConfig], InitServeDeps, ServeHandler),
	}
	set := flag.NewFlagSet("serve", flag.ContinueOnError)
	cfg.Flags.Register(set)
	set.StringVar(&cfg.Addr, "addr", ":8080", "address to serve the graph feed on")
	cmd.Flags().AddGoFlagSet(set)
	return cmd
}

// Command constructs the `hab graph` parent command with its `export` and
// `serve` subcommands.
func Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Inspect the dependency graph",
	}
	cmd.AddCommand(ExportCommand(), ServeCommand())
	return cmd
}
