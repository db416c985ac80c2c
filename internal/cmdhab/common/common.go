// Copyright 2026 The HAB Authors
// SPDX-License-Identifier: Apache-2.0

// Package common holds the flags and bootstrap helper shared by every
// hab subcommand that acts on one engine invocation (build, check, changes,
// add, remove, git-sync, graph export): -c/--config, -m/--mtime-source, and
// an overridable store path. Each subcommand registers these on its own
// flag.FlagSet; the set is factored out once since every hab subcommand
// shares this bootstrap rather than each repeating it.
package common

import (
	"context"
	"flag"

	"github.com/habitat-sh/hab-auto-build/internal/cmdhab/engine"
	"github.com/pkg/errors"
)

// Flags holds the engine-bootstrap flags common to every subcommand.
type Flags struct {
	ConfigPath string
	StatePath  string
	Mtime      string
}

// Register adds this struct's flags to set, under both their long and
// short (single-letter) spellings. The stdlib flag package treats "-x" and
// "--x" identically, so registering each spelling as its own flag.Var entry
// is sufficient.
func (f *Flags) Register(set *flag.FlagSet) {
	set.StringVar(&f.ConfigPath, "config", engine.DefaultConfigFile, "path to hab-auto-build.json")
	set.StringVar(&f.ConfigPath, "c", engine.DefaultConfigFile, "shorthand for --config")
	set.StringVar(&f.StatePath, "state", "", "override the persistent store path")
	set.StringVar(&f.Mtime, "mtime-source", "fs", "mtime source for the change journal: fs or git")
	set.StringVar(&f.Mtime, "m", "fs", "shorthand for --mtime-source")
}

// Validate checks the flags that need it beyond what Register's defaults
// guarantee.
func (f Flags) Validate() error {
	switch f.Mtime {
	case "", "fs", "git":
		return nil
	default:
		return errors.Errorf("invalid --mtime-source %q: must be fs or git", f.Mtime)
	}
}

// Options converts Flags into engine.Options.
func (f Flags) Options() engine.Options {
	mode := engine.MtimeFS
	if f.Mtime == "git" {
		mode = engine.MtimeGit
	}
	return engine.Options{ConfigPath: f.ConfigPath, StatePath: f.StatePath, Mtime: mode}
}

// Load bootstraps the engine for one invocation of a subcommand carrying
// Flags.
func Load(ctx context.Context, f Flags) (*engine.Engine, error) {
	return engine.Load(ctx, f.Options())
}
