// Copyright 2026 The HAB Authors
// SPDX-License-Identifier: Apache-2.0

// Command hab is Habitat Auto Build's CLI surface: build, check, changes,
// add, remove, git-sync, plus the `graph export`/`graph serve`
// subcommands.
package main

import (
	"fmt"
	"os"

	"github.com/habitat-sh/hab-auto-build/internal/cmdhab/add"
	"github.com/habitat-sh/hab-auto-build/internal/cmdhab/build"
	"github.com/habitat-sh/hab-auto-build/internal/cmdhab/changes"
	"github.com/habitat-sh/hab-auto-build/internal/cmdhab/check"
	"github.com/habitat-sh/hab-auto-build/internal/cmdhab/exitcode"
	"github.com/habitat-sh/hab-auto-build/internal/cmdhab/gitsync"
	"github.com/habitat-sh/hab-auto-build/internal/cmdhab/graphexport"
	"github.com/habitat-sh/hab-auto-build/internal/cmdhab/remove"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "hab",
	Short: "Habitat Auto Build: discover, graph, and rebuild dirty package plans",
	// SilenceUsage/SilenceErrors: main prints the error itself (once) and
	// exits with the documented code (0/2/3/4), rather than cobra's
	// default usage dump plus a second print from main.
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(
		build.Command(),
		check.Command(),
		changes.Command(),
		add.Command(),
		remove.Command(),
		gitsync.Command(),
		graphexport.Command(),
	)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitcode.CodeOf(err))
	}
}
