// Copyright 2026 The HAB Authors
// SPDX-License-Identifier: Apache-2.0

// Package changes implements the `hab changes` subcommand: reporting each
// selected plan's change reasons, as text (optionally expanded by
// -e/--explain) or as structured JSON.
package changes

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"

	"github.com/habitat-sh/hab-auto-build/internal/cmdhab/common"
	"github.com/habitat-sh/hab-auto-build/internal/cmdhab/exitcode"
	"github.com/habitat-sh/hab-auto-build/internal/glob"
	"github.com/habitat-sh/hab-auto-build/internal/planmodel"
	"github.com/habitat-sh/hab-auto-build/pkg/act/cli"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

// Config is `hab changes`'s flag/positional-argument surface.
type Config struct {
	common.Flags
	Selection []string
	Explain   bool
	Format    string // "text" or "json"
}

// Validate implements act.Input.
func (c Config) Validate() error {
	if err := c.Flags.Validate(); err != nil {
		return err
	}
	switch c.Format {
	case "text", "json":
		return nil
	default:
		return errors.Errorf("invalid --format %q: must be text or json", c.Format)
	}
}

// Deps holds this command's runtime dependencies.
type Deps struct{ IO cli.IO }

func (d *Deps) SetIO(io cli.IO) { d.IO = io }

// InitDeps constructs Deps.
func InitDeps(context.Context) (*Deps, error) { return &Deps{}, nil }

// entryJSON is the `--format json` shape for one plan's change reasons.
type entryJSON struct {
	Plan    string                     `json:"plan"`
	Dirty   bool                       `json:"dirty"`
	Reasons []planmodel.ChangeReason `json:"reasons,omitempty"`
}

// Result is the handler's output.
type Result struct {
	Entries []entryJSON
}

func parseArgs(cfg *Config, args []string) error {
	cfg.Selection = args
	return nil
}

// Handler reports every selected plan's current change reasons.
func Handler(ctx context.Context, cfg Config, deps *Deps) (*Result, error) {
	eng, err := common.Load(ctx, cfg.Flags)
	if err != nil {
		return nil, exitcode.Wrap(exitcode.ConfigError, err)
	}
	defer eng.Close()

	res := &Result{}
	for i := 0; i < eng.Graph.Len(); i++ {
		rec := eng.Graph.Record(i)
		if len(cfg.Selection) > 0 && !glob.MatchAny(cfg.Selection, rec.Key()) {
			continue
		}
		entry := eng.Entries[i]
		res.Entries = append(res.Entries, entryJSON{
			Plan:    rec.String(),
			Dirty:   entry.Dirty(),
			Reasons: entry.Reasons,
		})
	}

	if cfg.Format == "json" {
		enc := json.NewEncoder(deps.IO.Out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(res.Entries); err != nil {
			return nil, err
		}
		return res, nil
	}

	for _, e := range res.Entries {
		status := "clean"
		if e.Dirty {
			status = "dirty"
		}
		fmt.Fprintf(deps.IO.Out, "%s: %s\n", e.Plan, status)
		if cfg.Explain {
			for _, r := range e.Reasons {
				fmt.Fprintf(deps.IO.Out, "  - %s: %s\n", r.Kind, r.Explain)
			}
		}
	}
	return res, nil
}

// Command constructs the `hab changes` cobra.Command.
func Command() *cobra.Command {
	cfg := Config{Format: "text"}
	cmd := &cobra.Command{
		Use:   "changes [selection...]",
		Short: "Report each selected plan's change reasons",
		RunE:  cli.RunE(&cfg, parseArgs, InitDeps, Handler),
	}
	cmd.Flags().AddGoFlagSet(flagSet(&cfg))
	return cmd
}

func flagSet(cfg *Config) *flag.FlagSet {
	set := flag.NewFlagSet("changes", flag.ContinueOnError)
	cfg.Flags.Register(set)
	set.BoolVar(&cfg.Explain, "explain", false, "print each change reason's explanation")
	set.BoolVar(&cfg.Explain, "e", false, "shorthand for --explain")
	set.StringVar(&cfg.Format, "format", "text", "output format: text or json")
	return set
}
