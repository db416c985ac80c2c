// Copyright 2026 The HAB Authors
// SPDX-License-Identifier: Apache-2.0

// Package build implements the `hab build` subcommand: computing the dirty
// set and driving the build executor over it, with a progress bar and a
// colored built/skipped/failed summary.
package build

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cheggaaa/pb"
	"github.com/fatih/color"
	"github.com/habitat-sh/hab-auto-build/internal/buildexec"
	"github.com/habitat-sh/hab-auto-build/internal/cmdhab/common"
	"github.com/habitat-sh/hab-auto-build/internal/cmdhab/exitcode"
	"github.com/habitat-sh/hab-auto-build/internal/plan"
	"github.com/habitat-sh/hab-auto-build/internal/rules"
	"github.com/habitat-sh/hab-auto-build/pkg/act/cli"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

// Config is `hab build`'s flag/positional-argument surface.
type Config struct {
	common.Flags
	Selection      []string
	CheckLevel     string
	Jobs           int
	DryRun         bool
	ForwardClosure bool
	BuilderBinary  string
	OutputRoot     string
	Timeout        time.Duration
	Docker         bool
	DockerImage    string
}

// Validate implements act.Input.
func (c Config) Validate() error {
	if err := c.Flags.Validate(); err != nil {
		return err
	}
	switch rules.CheckLevel(c.CheckLevel) {
	case rules.LevelStrict, rules.LevelAllowWarnings, rules.LevelAllowAll:
	default:
		return errors.Errorf("invalid --check-level %q", c.CheckLevel)
	}
	if c.DryRun {
		return nil
	}
	if c.Docker {
		if c.DockerImage == "" {
			return errors.New("--docker-image is required with --docker")
		}
	} else if c.BuilderBinary == "" {
		return errors.New("--builder is required unless --docker is set (or pass --dry-run)")
	}
	return nil
}

// Deps holds this command's runtime dependencies.
type Deps struct{ IO cli.IO }

func (d *Deps) SetIO(io cli.IO) { d.IO = io }

// InitDeps constructs Deps.
func InitDeps(context.Context) (*Deps, error) { return &Deps{}, nil }

// Result is the handler's output, kept for programmatic callers/tests.
type Result struct {
	Plan    *plan.Plan
	Results []buildexec.PlanResult
}

func parseArgs(cfg *Config, args []string) error {
	cfg.Selection = args
	return nil
}

// Handler runs one `build` invocation end to end: bootstrap, dirty-set
// computation, and (unless --dry-run) dispatch through the build executor.
func Handler(ctx context.Context, cfg Config, deps *Deps) (*Result, error) {
	eng, err := common.Load(ctx, cfg.Flags)
	if err != nil {
		return nil, exitcode.Wrap(exitcode.ConfigError, err)
	}
	defer eng.Close()

	p := plan.Compute(eng.Graph, eng.Entries, plan.Options{
		Selection:             cfg.Selection,
		IncludeForwardClosure: cfg.ForwardClosure,
	})

	if len(p.Order) == 0 {
		fmt.Fprintln(deps.IO.Out, "nothing to build")
		return &Result{Plan: p}, nil
	}

	if cfg.DryRun {
		for _, rec := range p.Order {
			fmt.Fprintln(deps.IO.Out, rec.String())
		}
		return &Result{Plan: p}, nil
	}

	var backend buildexec.Backend
	if cfg.Docker {
		backend, err = buildexec.NewDockerBackend(cfg.DockerImage, cfg.BuilderBinary)
		if err != nil {
			return nil, exitcode.Wrap(exitcode.ConfigError, err)
		}
	} else {
		if err := buildexec.LookPath(cfg.BuilderBinary); err != nil {
			return nil, exitcode.Wrap(exitcode.ConfigError, err)
		}
		backend = buildexec.SubprocessBackend{Binary: cfg.BuilderBinary}
	}

	outputRoot := cfg.OutputRoot
	if outputRoot == "" {
		outputRoot = filepath.Join(os.TempDir(), "hab-build-output")
	}

	execCfg := buildexec.Config{
		Jobs:       cfg.Jobs,
		CheckLevel: rules.CheckLevel(cfg.CheckLevel),
		Timeout:    cfg.Timeout,
		OutputRoot: outputRoot,
		RepoRoots:  eng.RepoRoots,
		Log:        deps.IO.Err,
	}
	exec := buildexec.New(eng.Graph, eng.Store, rules.New(), backend, execCfg)

	bar := pb.New(len(p.Order))
	bar.Output = deps.IO.Err
	bar.ShowTimeLeft = true
	bar.Start()
	defer bar.Finish()

	results, err := exec.Run(ctx, p)
	bar.Finish()
	if err != nil {
		return nil, err
	}

	var built, failed, skipped, warned int
	for _, r := range results {
		bar.Increment()
		switch r.Status {
		case buildexec.StatusBuilt:
			built++
			fmt.Fprintln(deps.IO.Out, color.GreenString("built")+"   "+r.Plan.String())
			for _, f := range r.Findings {
				if f.Severity == rules.SeverityWarning {
					warned++
					fmt.Fprintln(deps.IO.Out, "  "+color.YellowString("warning")+" "+f.Rule+": "+f.Message)
				}
			}
		case buildexec.StatusFailed:
			failed++
			fmt.Fprintln(deps.IO.Out, color.RedString("failed")+"  "+r.Plan.String()+": "+r.Err.Error())
		case buildexec.StatusSkipped:
			skipped++
			fmt.Fprintln(deps.IO.Out, color.YellowString("skipped")+" "+r.Plan.String()+": "+r.Err.Error())
		case buildexec.StatusCancelled:
			fmt.Fprintln(deps.IO.Out, color.YellowString("cancelled")+" "+r.Plan.String())
		}
	}
	fmt.Fprintf(deps.IO.Out, "%d built, %d failed, %d skipped, %d warning(s)\n", built, failed, skipped, warned)

	if failed > 0 || skipped > 0 {
		return &Result{Plan: p, Results: results}, exitcode.Wrap(exitcode.Incomplete, errors.Errorf("%d plan(s) failed or were skipped", failed+skipped))
	}
	return &Result{Plan: p, Results: results}, nil
}

// Command constructs the `hab build` cobra.Command.
func Command() *cobra.Command {
	cfg := Config{CheckLevel: string(rules.LevelAllowWarnings)}
	cmd := &cobra.Command{
		Use:   "build [selection...]",
		Short: "Build the dirty set of plans in dependency order",
		RunE:  cli.RunE(&cfg, parseArgs, InitDeps, Handler),
	}
	cmd.Flags().AddGoFlagSet(flagSet(&cfg))
	return cmd
}

func flagSet(cfg *Config) *flag.FlagSet {
	set := flag.NewFlagSet("build", flag.ContinueOnError)
	cfg.Flags.Register(set)
	set.StringVar(&cfg.CheckLevel, "check-level", string(rules.LevelAllowWarnings), "strict, allow-warnings, or allow-all")
	set.StringVar(&cfg.CheckLevel, "l", string(rules.LevelAllowWarnings), "shorthand for --check-level")
	set.IntVar(&cfg.Jobs, "jobs", 0, "bounded parallelism; 0 selects the detected core count")
	set.IntVar(&cfg.Jobs, "j", 0, "shorthand for --jobs")
	set.BoolVar(&cfg.DryRun, "dry-run", false, "print the dirty set's build order without building")
	set.BoolVar(&cfg.DryRun, "d", false, "shorthand for --dry-run")
	set.BoolVar(&cfg.ForwardClosure, "with-deps", false, "also pull in forward_closure(selection) so missing dependencies build first")
	set.StringVar(&cfg.BuilderBinary, "builder", "", "external builder binary invoked per plan")
	set.StringVar(&cfg.OutputRoot, "output", "", "base directory for per-plan build output")
	set.DurationVar(&cfg.Timeout, "timeout", 0, "per-plan build timeout; 0 disables")
	set.BoolVar(&cfg.Docker, "docker", false, "run the builder binary inside a per-plan Docker container")
	set.StringVar(&cfg.DockerImage, "docker-image", "", "image the Docker backend runs the builder binary inside")
	return set
}
