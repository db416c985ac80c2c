// Copyright 2026 The HAB Authors
// SPDX-License-Identifier: Apache-2.0

// Package add implements the `hab add <plan>...` subcommand: persisting a
// ManuallyAdded override for each named plan so it is treated as dirty
// regardless of its change journal state. This is how native plans, whose
// sources never change, get rebuilt.
package add

import (
	"context"
	"database/sql"
	"flag"
	"fmt"

	"github.com/habitat-sh/hab-auto-build/internal/cmdhab/common"
	"github.com/habitat-sh/hab-auto-build/internal/cmdhab/exitcode"
	"github.com/habitat-sh/hab-auto-build/internal/store"
	"github.com/habitat-sh/hab-auto-build/pkg/act/cli"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

// Config is `hab add`'s flag/positional-argument surface.
type Config struct {
	common.Flags
	Plans []string
}

// Validate implements act.Input.
func (c Config) Validate() error {
	if err := c.Flags.Validate(); err != nil {
		return err
	}
	if len(c.Plans) == 0 {
		return errors.New("expected at least one plan key (origin/name)")
	}
	return nil
}

// Deps holds this command's runtime dependencies.
type Deps struct{ IO cli.IO }

func (d *Deps) SetIO(io cli.IO) { d.IO = io }

// InitDeps constructs Deps.
func InitDeps(context.Context) (*Deps, error) { return &Deps{}, nil }

// Result is the handler's output.
type Result struct{ Added []string }

func parseArgs(cfg *Config, args []string) error {
	cfg.Plans = args
	return nil
}

// Handler records a ManuallyAdded override for every named plan.
func Handler(ctx context.Context, cfg Config, deps *Deps) (*Result, error) {
	eng, err := common.Load(ctx, cfg.Flags)
	if err != nil {
		return nil, exitcode.Wrap(exitcode.ConfigError, err)
	}
	defer eng.Close()

	res := &Result{}
	err = eng.Store.CommitTx(ctx, func(tx *sql.Tx) error {
		for _, key := range cfg.Plans {
			if _, ok := eng.Graph.IndexOf(key); !ok {
				return errors.Errorf("unknown plan %q", key)
			}
			if err := store.PutManualOverride(ctx, tx, key, store.OverrideAdd); err != nil {
				return err
			}
			res.Added = append(res.Added, key)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	for _, key := range res.Added {
		fmt.Fprintf(deps.IO.Out, "added %s\n", key)
	}
	return res, nil
}

// Command constructs the `hab add` cobra.Command.
func Command() *cobra.Command {
	cfg := Config{}
	cmd := &cobra.Command{
		Use:   "add <plan>...",
		Short: "Manually mark plans as dirty, regardless of change detection",
		Args:  cobra.MinimumNArgs(1),
		RunE:  cli.RunE(&cfg, parseArgs, InitDeps, Handler),
	}
	cmd.Flags().AddGoFlagSet(flagSet(&cfg))
	return cmd
}

func flagSet(cfg *Config) *flag.FlagSet {
	set := flag.NewFlagSet("add", flag.ContinueOnError)
	cfg.Flags.Register(set)
	return set
}
