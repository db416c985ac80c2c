// Copyright 2026 The HAB Authors
// SPDX-License-Identifier: Apache-2.0

// Package check implements the `hab check` subcommand: run the rule
// engine's source checks against the selected plans' current state, gated
// by --check-level, without building anything. Same Config/Deps/Handler
// shape as internal/cmdhab/build.
package check

import (
	"context"
	"flag"
	"fmt"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/habitat-sh/hab-auto-build/internal/cmdhab/common"
	"github.com/habitat-sh/hab-auto-build/internal/cmdhab/exitcode"
	"github.com/habitat-sh/hab-auto-build/internal/ident"
	"github.com/habitat-sh/hab-auto-build/internal/plan"
	"github.com/habitat-sh/hab-auto-build/internal/rules"
	"github.com/habitat-sh/hab-auto-build/pkg/act/cli"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

// Config is `hab check`'s flag/positional-argument surface.
type Config struct {
	common.Flags
	Selection  []string
	CheckLevel string
}

// Validate implements act.Input.
func (c Config) Validate() error {
	if err := c.Flags.Validate(); err != nil {
		return err
	}
	switch rules.CheckLevel(c.CheckLevel) {
	case rules.LevelStrict, rules.LevelAllowWarnings, rules.LevelAllowAll:
		return nil
	default:
		return errors.Errorf("invalid --check-level %q", c.CheckLevel)
	}
}

// Deps holds this command's runtime dependencies.
type Deps struct{ IO cli.IO }

func (d *Deps) SetIO(io cli.IO) { d.IO = io }

// InitDeps constructs Deps.
func InitDeps(context.Context) (*Deps, error) { return &Deps{}, nil }

// PlanFindings pairs one plan with its source-check findings, for
// programmatic callers/tests.
type PlanFindings struct {
	Plan     string
	Findings []rules.Finding
}

// Result is the handler's output.
type Result struct {
	Findings []PlanFindings
}

func parseArgs(cfg *Config, args []string) error {
	cfg.Selection = args
	return nil
}

// Handler runs the pre-build source checks over the selected plans' current
// state and reports findings gated by --check-level, without invoking the
// build executor.
func Handler(ctx context.Context, cfg Config, deps *Deps) (*Result, error) {
	eng, err := common.Load(ctx, cfg.Flags)
	if err != nil {
		return nil, exitcode.Wrap(exitcode.ConfigError, err)
	}
	defer eng.Close()

	p := plan.Compute(eng.Graph, eng.Entries, plan.Options{Selection: cfg.Selection})
	engine := rules.New()
	level := rules.CheckLevel(cfg.CheckLevel)

	res := &Result{}
	var fatalCount int
	for _, rec := range p.Order {
		planCfg, err := rules.LoadPlanConfig(filepath.Join(rec.ContextPath, rules.PlanConfigFileName))
		if err != nil {
			return nil, err
		}
		currentFP := ident.Digest(rec.SourceFingerprint).String()
		findings := engine.CheckSource(rec, planCfg, currentFP)
		res.Findings = append(res.Findings, PlanFindings{Plan: rec.String(), Findings: findings})

		for _, f := range findings {
			line := rec.String() + ": " + f.Rule + ": " + f.Message
			switch f.Severity {
			case rules.SeverityError:
				fmt.Fprintln(deps.IO.Out, color.RedString("error")+"   "+line)
			case rules.SeverityWarning:
				fmt.Fprintln(deps.IO.Out, color.YellowString("warning")+" "+line)
			}
		}
		if gateErr := rules.Gate(rec.String(), findings, level); gateErr != nil {
			fatalCount++
		}
	}
	if fatalCount > 0 {
		return res, exitcode.Wrap(exitcode.Incomplete, errors.Errorf("%d plan(s) failed check_level %q", fatalCount, cfg.CheckLevel))
	}
	return res, nil
}

// Command constructs the `hab check` cobra.Command.
func Command() *cobra.Command {
	cfg := Config{CheckLevel: string(rules.LevelAllowWarnings)}
	cmd := &cobra.Command{
		Use:   "check [selection...]",
		Short: "Run source checks against the selected plans without building",
		RunE:  cli.RunE(&cfg, parseArgs, InitDeps, Handler),
	}
	cmd.Flags().AddGoFlagSet(flagSet(&cfg))
	return cmd
}

func flagSet(cfg *Config) *flag.FlagSet {
	set := flag.NewFlagSet("check", flag.ContinueOnError)
	cfg.Flags.Register(set)
	set.StringVar(&cfg.CheckLevel, "check-level", string(rules.LevelAllowWarnings), "strict, allow-warnings, or allow-all")
	set.StringVar(&cfg.CheckLevel, "l", string(rules.LevelAllowWarnings), "shorthand for --check-level")
	return set
}
