// Copyright 2026 The HAB Authors
// SPDX-License-Identifier: Apache-2.0

// Package engine bootstraps one invocation of the hab CLI: loading
// hab-auto-build.json, scanning every configured repo, extracting plan
// metadata, building the dependency graph, opening the persistent store,
// and computing the change journal. Every internal/cmdhab subcommand shares
// this bootstrap rather than repeating it, keeping each subcommand a thin
// Config/Deps/Handler wrapper around shared setup.
package engine

import (
	"context"
	"os"
	"path/filepath"
	"runtime"

	"github.com/google/uuid"
	"github.com/habitat-sh/hab-auto-build/internal/extract"
	"github.com/habitat-sh/hab-auto-build/internal/gitdriver"
	"github.com/habitat-sh/hab-auto-build/internal/graph"
	"github.com/habitat-sh/hab-auto-build/internal/habconfig"
	"github.com/habitat-sh/hab-auto-build/internal/herr"
	"github.com/habitat-sh/hab-auto-build/internal/ident"
	"github.com/habitat-sh/hab-auto-build/internal/journal"
	"github.com/habitat-sh/hab-auto-build/internal/planmodel"
	"github.com/habitat-sh/hab-auto-build/internal/scan"
	"github.com/habitat-sh/hab-auto-build/internal/store"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// DefaultConfigFile is the `-c/--config` default.
const DefaultConfigFile = "hab-auto-build.json"

// DefaultStateDirName and DefaultStateFileName name the persistent store's
// platform-conventional location under $XDG_STATE_HOME.
const (
	DefaultStateDirName  = "hab-auto-build"
	DefaultStateFileName = "state.db"
)

// defaultStatePath resolves the platform-conventional state path:
// $XDG_STATE_HOME/hab-auto-build/state.db, falling back to
// $HOME/.local/state/hab-auto-build/state.db when XDG_STATE_HOME is unset,
// and finally to a path relative to
// the config file itself if neither is resolvable (e.g. no $HOME in a
// sandboxed test environment).
func defaultStatePath(configPath string) string {
	base := os.Getenv("XDG_STATE_HOME")
	if base == "" {
		if home, err := os.UserHomeDir(); err == nil && home != "" {
			base = filepath.Join(home, ".local", "state")
		}
	}
	if base == "" {
		return filepath.Join(filepath.Dir(configPath), "."+DefaultStateDirName, DefaultStateFileName)
	}
	return filepath.Join(base, DefaultStateDirName, DefaultStateFileName)
}

// HelperSets maps a repo id to the shell/PowerShell helper pair used to
// extract its plans' metadata. Entries override, per repo id, the pair Load
// derives from that repo's extract_shell/extract_pwsh settings in
// hab-auto-build.json.
type HelperSets map[string]extract.HelperSet

// MtimeSource selects the `-m/--mtime-source` comparator.
type MtimeSource string

const (
	MtimeFS  MtimeSource = "fs"
	MtimeGit MtimeSource = "git"
)

// Options configures one Load call.
type Options struct {
	ConfigPath string
	StatePath  string
	Mtime      MtimeSource
	Helpers    HelperSets
}

// Engine is the fully-bootstrapped state one subcommand acts on.
type Engine struct {
	Config    *habconfig.Config
	Store     *store.Store
	Graph     *graph.Graph
	Entries   []*planmodel.ChangeEntry
	RepoRoots map[string]string
	GitDriver *gitdriver.Driver
}

// Close releases the engine's store handle.
func (e *Engine) Close() error { return e.Store.Close() }

// Load runs the full bootstrap: scan, extraction, graph construction,
// opening the store, and computing the change journal.
func Load(ctx context.Context, opts Options) (*Engine, error) {
	configPath := opts.ConfigPath
	if configPath == "" {
		configPath = DefaultConfigFile
	}
	cfg, err := habconfig.Load(configPath)
	if err != nil {
		return nil, err
	}

	found, err := scan.Scan(cfg.Repos)
	if err != nil {
		return nil, err
	}

	extractor := extract.New()
	fpCache := ident.NewFingerprintCache()
	helperSets := defaultHelperSets(cfg)
	for repoID, hs := range opts.Helpers {
		helperSets[repoID] = hs
	}

	// Extraction and fingerprinting are embarrassingly parallel over
	// plans; each goroutine owns a fixed slot in records so the final
	// node order, and therefore internal/graph's arena indices and its
	// lexicographic feedback-edge tie-breaking, stays independent of
	// scheduling.
	records := make([]*planmodel.PlanRecord, len(found))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for i, f := range found {
		i, f := i, f
		g.Go(func() error {
			helpers := helperSets[f.RepoID]
			workDir := filepath.Join(os.TempDir(), "hab-extract-"+uuid.New().String())
			if err := os.MkdirAll(workDir, 0o700); err != nil {
				return errors.Wrap(err, "creating extraction workdir")
			}
			defer os.RemoveAll(workDir)
			result, extractErr := extractor.Extract(gctx, helpers, f.PlanFile, f.ContextPath, repoRootFor(cfg, f.RepoID), workDir)

			rec := &planmodel.PlanRecord{
				RepoID:      f.RepoID,
				ContextPath: f.ContextPath,
				PlanFile:    f.PlanFile,
				IsNative:    f.IsNative,
			}
			if extractErr != nil {
				rec.ID = ident.PlanIdentifier{Origin: "unknown", Name: filepath.Base(f.ContextPath)}
				rec.Unusable = true
				rec.UnusableErr = extractErr
				records[i] = rec
				return nil
			}
			rec.ID = ident.PlanIdentifier{Origin: result.Origin, Name: result.Name, Version: result.Version}
			rec.Licenses = result.Licenses
			rec.Deps = result.Deps
			rec.BuildDeps = result.BuildDeps
			if result.ScaffoldingDep != nil {
				rec.ScaffoldingDep = *result.ScaffoldingDep
			}
			fp, err := fpCache.Get(f.ContextPath)
			if err != nil {
				return errors.Wrapf(err, "fingerprinting %s", f.ContextPath)
			}
			rec.SourceFingerprint = fp
			records[i] = rec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var origins, names, contextPaths []string
	for _, rec := range records {
		if rec.Unusable {
			continue
		}
		origins = append(origins, rec.ID.Origin)
		names = append(names, rec.ID.Name)
		contextPaths = append(contextPaths, rec.ContextPath)
	}
	if err := scan.CheckDuplicateIdentity(origins, names, contextPaths); err != nil {
		return nil, err
	}

	dg := graph.Build(records)

	statePath := opts.StatePath
	if statePath == "" {
		statePath = defaultStatePath(configPath)
	}
	if err := os.MkdirAll(filepath.Dir(statePath), 0o755); err != nil {
		return nil, &herr.StoreIO{Op: "open", Err: err}
	}
	st, err := store.Open(statePath)
	if err != nil {
		return nil, &herr.StoreIO{Op: "open", Err: err}
	}

	repoRoots := make(map[string]string, len(cfg.Repos))
	for _, r := range cfg.Repos {
		repoRoots[r.ID] = r.Source
	}

	var gitDrv *gitdriver.Driver
	jOpts := journal.Options{Mode: journal.ModeFS, RepoRoots: repoRoots}
	if opts.Mtime == MtimeGit {
		gitDrv = gitdriver.New()
		jOpts.Mode = journal.ModeGit
		jOpts.Git = gitDrv
	}

	entries, err := journal.ComputeAll(ctx, st, dg, jOpts)
	if err != nil {
		st.Close()
		return nil, err
	}

	return &Engine{Config: cfg, Store: st, Graph: dg, Entries: entries, RepoRoots: repoRoots, GitDriver: gitDrv}, nil
}

// defaultHelperSets derives each configured repo's helper pair from its
// RepoConfig, letting a repo that follows the conventional helper paths
// skip HelperSets entirely.
func defaultHelperSets(cfg *habconfig.Config) HelperSets {
	sets := make(HelperSets, len(cfg.Repos))
	for _, r := range cfg.Repos {
		sets[r.ID] = extract.HelperSet{
			ShellScript: r.ShellHelperPath(),
			PS1Script:   r.PwshHelperPath(),
		}
	}
	return sets
}

func repoRootFor(cfg *habconfig.Config, repoID string) string {
	for _, r := range cfg.Repos {
		if r.ID == repoID {
			return r.Source
		}
	}
	return ""
}
