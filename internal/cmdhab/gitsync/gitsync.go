// Copyright 2026 The HAB Authors
// SPDX-License-Identifier: Apache-2.0

// Package gitsync implements the `hab git-sync` subcommand: rewriting every
// plan context file's on-disk mtime to equal its last
// commit time, so a subsequent default-mode (`-m fs`) `changes` run sees it
// as clean.
package gitsync

import (
	"context"
	"flag"
	"fmt"

	"github.com/habitat-sh/hab-auto-build/internal/cmdhab/common"
	"github.com/habitat-sh/hab-auto-build/internal/cmdhab/exitcode"
	"github.com/habitat-sh/hab-auto-build/internal/gitdriver"
	"github.com/habitat-sh/hab-auto-build/internal/journal"
	"github.com/habitat-sh/hab-auto-build/pkg/act/cli"
	"github.com/spf13/cobra"
)

// Config is `hab git-sync`'s flag surface. It reuses common.Flags for
// -c/--config and --state but ignores Flags.Mtime: git-sync's whole purpose
// is to populate the git mtime source, so it always drives its own
// gitdriver.Driver regardless of -m.
type Config struct {
	common.Flags
}

// Validate implements act.Input.
func (c Config) Validate() error { return c.Flags.Validate() }

// Deps holds this command's runtime dependencies.
type Deps struct{ IO cli.IO }

func (d *Deps) SetIO(io cli.IO) { d.IO = io }

// InitDeps constructs Deps.
func InitDeps(context.Context) (*Deps, error) { return &Deps{}, nil }

// Result is the handler's output.
type Result struct{ PlansSynced int }

func parseArgs(cfg *Config, args []string) error { return nil }

// Handler runs the sync: for every plan context file, rewrite
// its mtime to its last commit time and record that value as the stored
// alternate_mtime (and as real_mtime for a file with no stored row yet).
func Handler(ctx context.Context, cfg Config, deps *Deps) (*Result, error) {
	eng, err := common.Load(ctx, cfg.Flags)
	if err != nil {
		return nil, exitcode.Wrap(exitcode.ConfigError, err)
	}
	defer eng.Close()

	drv := eng.GitDriver
	if drv == nil {
		drv = gitdriver.New()
	}
	if err := journal.GitSync(ctx, eng.Store, eng.Graph, drv, eng.RepoRoots); err != nil {
		return nil, err
	}
	fmt.Fprintf(deps.IO.Out, "git-sync complete for %d plan(s)\n", eng.Graph.Len())
	return &Result{PlansSynced: eng.Graph.Len()}, nil
}

// Command constructs the `hab git-sync` cobra.Command.
func Command() *cobra.Command {
	cfg := Config{}
	cmd := &cobra.Command{
		Use:   "git-sync",
		Short: "Rewrite every plan context file's mtime to its last commit time",
		RunE:  cli.RunE(&cfg, parseArgs, InitDeps, Handler),
	}
	cmd.Flags().AddGoFlagSet(flagSet(&cfg))
	return cmd
}

func flagSet(cfg *Config) *flag.FlagSet {
	set := flag.NewFlagSet("git-sync", flag.ContinueOnError)
	cfg.Flags.Register(set)
	return set
}
