// Copyright 2026 The HAB Authors
// SPDX-License-Identifier: Apache-2.0

// Package extract is the plan metadata extractor: it invokes a per-repo
// helper script (POSIX shell or PowerShell, chosen by the plan file's
// extension) in a scrubbed environment, then parses its JSON stdout into a
// fixed schema; fields outside the schema are ignored, not reflected. Built
// on os/exec with context-aware invocation and captured stdout/stderr.
package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/habitat-sh/hab-auto-build/internal/cache"
	"github.com/habitat-sh/hab-auto-build/internal/herr"
	"github.com/pkg/errors"
)

// Result is the normalized, still-unresolved (dep strings are raw) output
// of one helper invocation.
type Result struct {
	Origin         string    `json:"origin"`
	Name           string    `json:"name"`
	Version        string    `json:"version"`
	Source         *srcRef   `json:"source,omitempty"`
	Licenses       []string  `json:"licenses"`
	ScaffoldingDep *string   `json:"scaffolding_dep"`
	Deps           []string  `json:"deps"`
	BuildDeps      []string  `json:"build_deps"`
}

type srcRef struct {
	URL    string `json:"url"`
	Shasum string `json:"shasum"`
}

// HelperSet names the two interpreter-specific helper scripts a repo
// provides; selection between them is by the discovered plan file's
// extension, not by host OS.
type HelperSet struct {
	ShellScript string // invoked via "sh" for plan.sh-style plans
	PS1Script   string // invoked via "pwsh" for plan.ps1-style plans
}

// CommandRunner abstracts subprocess execution so tests can substitute a
// fake without touching a real shell.
type CommandRunner interface {
	Run(ctx context.Context, dir string, env []string, name string, args ...string) (stdout, stderr []byte, err error)
}

// RealCommandRunner executes via os/exec.
type RealCommandRunner struct{}

func (RealCommandRunner) Run(ctx context.Context, dir string, env []string, name string, args ...string) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	cmd.Env = env
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}

var _ CommandRunner = RealCommandRunner{}

// Extractor invokes a repo's helper scripts to materialize plan metadata.
type Extractor struct {
	Runner CommandRunner
	// cache coalesces concurrent Extract calls for the same plan file, so
	// the bounded worker pool driving extraction (internal/cmdhab/engine)
	// never invokes a helper twice for one plan even if it is reachable
	// through more than one scan entry.
	cache *cache.CoalescingMemoryCache
}

// New constructs an Extractor using the real subprocess runner.
func New() *Extractor {
	return &Extractor{Runner: RealCommandRunner{}, cache: &cache.CoalescingMemoryCache{}}
}

type extractKey struct{ planFile, sourcePath, repoRoot string }

// Extract invokes the appropriate helper for planFile and parses its JSON
// output. Every invocation runs in a fresh working directory. workDir is
// only used the first time a given (planFile, sourcePath, repoRoot) is
// requested; concurrent or repeated requests for the same key coalesce onto
// that one invocation's result.
func (e *Extractor) Extract(ctx context.Context, helpers HelperSet, planFile, sourcePath, repoRoot, workDir string) (*Result, error) {
	if e.cache == nil {
		return e.extract(ctx, helpers, planFile, sourcePath, repoRoot, workDir)
	}
	key := extractKey{planFile, sourcePath, repoRoot}
	v, err := e.cache.GetOrSet(key, func() (any, error) {
		return e.extract(ctx, helpers, planFile, sourcePath, repoRoot, workDir)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Result), nil
}

func (e *Extractor) extract(ctx context.Context, helpers HelperSet, planFile, sourcePath, repoRoot, workDir string) (*Result, error) {
	var interpreter, script string
	switch filepath.Ext(planFile) {
	case ".ps1":
		interpreter = "pwsh"
		script = helpers.PS1Script
	default:
		interpreter = "sh"
		script = helpers.ShellScript
	}
	if script == "" {
		return nil, &herr.ExtractorFailed{PlanFile: planFile, Err: errors.Errorf("no helper configured for %s", interpreter)}
	}
	env := scrubbedEnv()
	stdout, stderr, err := e.Runner.Run(ctx, workDir, env, interpreter, script, planFile, sourcePath, repoRoot)
	if err != nil {
		return nil, &herr.ExtractorFailed{PlanFile: planFile, Stderr: string(stderr), Err: err}
	}
	var result Result
	if err := json.Unmarshal(bytes.TrimSpace(stdout), &result); err != nil {
		return nil, &herr.MalformedHelperOutput{PlanFile: planFile, Err: err}
	}
	if result.Origin == "" || result.Name == "" {
		return nil, &herr.MalformedHelperOutput{PlanFile: planFile, Err: errors.New("missing origin or name")}
	}
	return &result, nil
}

// scrubbedEnv returns an environment exposing only PATH, so a helper cannot
// observe anything about the invoking environment beyond tool lookup.
func scrubbedEnv() []string {
	return []string{"PATH=" + os.Getenv("PATH")}
}
