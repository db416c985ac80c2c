// Copyright 2026 The HAB Authors
// SPDX-License-Identifier: Apache-2.0

// Package remove implements the `hab remove <plan>...` subcommand:
// withholding a plan from the dirty set, refusing with CannotRemoveDirty
// when a still-dirty dependency blocks it.
package remove

import (
	"context"
	"database/sql"
	"flag"
	"fmt"

	"github.com/habitat-sh/hab-auto-build/internal/cmdhab/common"
	"github.com/habitat-sh/hab-auto-build/internal/cmdhab/exitcode"
	"github.com/habitat-sh/hab-auto-build/internal/journal"
	"github.com/habitat-sh/hab-auto-build/internal/store"
	"github.com/habitat-sh/hab-auto-build/pkg/act/cli"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

// Config is `hab remove`'s flag/positional-argument surface.
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
type Result struct{ Removed []string }

func parseArgs(cfg *Config, args []string) error {
	cfg.Plans = args
	return nil
}

// Handler validates and applies one or more remove requests: a remove
// clears all of a plan's reasons only if dependency propagation does not
// reappear after removal; otherwise the request is refused with
// CannotRemoveDirty naming the blockers.
func Handler(ctx context.Context, cfg Config, deps *Deps) (*Result, error) {
	eng, err := common.Load(ctx, cfg.Flags)
	if err != nil {
		return nil, exitcode.Wrap(exitcode.ConfigError, err)
	}
	defer eng.Close()

	res := &Result{}
	for _, key := range cfg.Plans {
		if _, ok := eng.Graph.IndexOf(key); !ok {
			return res, errors.Errorf("unknown plan %q", key)
		}
		if err := journal.RequestRemove(eng.Entries, eng.Graph, key); err != nil {
			return res, err
		}
	}

	err = eng.Store.CommitTx(ctx, func(tx *sql.Tx) error {
		overrides, err := store.ListManualOverrides(ctx, tx)
		if err != nil {
			return err
		}
		for _, key := range cfg.Plans {
			idx, _ := eng.Graph.IndexOf(key)
			if overrides[key] == store.OverrideAdd && eng.Entries[idx].SolelyManuallyAdded() {
				// The plan is dirty only because of a prior `add`:
				// retracting that override is the whole removal, and
				// leaves no record behind.
				if err := store.DeleteManualOverride(ctx, tx, key); err != nil {
					return err
				}
			} else if err := store.PutManualOverride(ctx, tx, key, store.OverrideRemove); err != nil {
				return err
			}
			res.Removed = append(res.Removed, key)
		}
		return nil
	})
	if err != nil {
		return res, err
	}
	for _, key := range res.Removed {
		fmt.Fprintf(deps.IO.Out, "removed %s\n", key)
	}
	return res, nil
}

// Command constructs the `hab remove` cobra.Command.
func Command() *cobra.Command {
	cfg := Config{}
	cmd := &cobra.Command{
		Use:   "remove <plan>...",
		Short: "Withhold plans from the dirty set",
		Args:  cobra.MinimumNArgs(1),
		RunE:  cli.RunE(&cfg, parseArgs, InitDeps, Handler),
	}
	cmd.Flags().AddGoFlagSet(flagSet(&cfg))
	return cmd
}

func flagSet(cfg *Config) *flag.FlagSet {
	set := flag.NewFlagSet("remove", flag.ContinueOnError)
	cfg.Flags.Register(set)
	return set
}
