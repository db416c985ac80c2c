// Copyright 2026 The HAB Authors
// SPDX-License-Identifier: Apache-2.0

// Package buildexec is the build executor: a bounded-parallel,
// topologically-ordered dispatcher over the dirty set produced by
// internal/plan. The dispatcher tracks three explicit sets (ready,
// in_flight, done) rather than using a generic worker pool, so that
// cancellation ("stop promoting ready nodes") and the build-duration
// tie-breaker both have a concrete place to act. The actual builder
// invocation is behind the pluggable Backend interface.
package buildexec

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/habitat-sh/hab-auto-build/internal/graph"
	"github.com/habitat-sh/hab-auto-build/internal/hablog"
	"github.com/habitat-sh/hab-auto-build/internal/herr"
	"github.com/habitat-sh/hab-auto-build/internal/ident"
	"github.com/habitat-sh/hab-auto-build/internal/journal"
	"github.com/habitat-sh/hab-auto-build/internal/plan"
	"github.com/habitat-sh/hab-auto-build/internal/planmodel"
	"github.com/habitat-sh/hab-auto-build/internal/rules"
	"github.com/habitat-sh/hab-auto-build/internal/store"
	"github.com/pkg/errors"
)

// Status is the terminal outcome of one plan's dispatch.
type Status string

const (
	StatusBuilt     Status = "built"
	StatusFailed    Status = "failed"
	StatusSkipped   Status = "skipped"
	StatusCancelled Status = "cancelled"
)

// PlanResult is the outcome of dispatching one plan.
type PlanResult struct {
	Plan     *planmodel.PlanRecord
	Status   Status
	Err      error
	Duration time.Duration
	Findings []rules.Finding
}

// BuildRequest is everything a Backend needs to build one plan: the plan
// context, repo root, and target, plus a prepared environment exposing
// resolved dep-artifact paths.
type BuildRequest struct {
	Plan       *planmodel.PlanRecord
	ContextDir string
	RepoRoot   string
	Target     string
	OutputDir  string
	Env        map[string]string
}

// Backend runs the configured external builder binary against one
// BuildRequest, streaming combined stdout/stderr to out. Implementations:
// SubprocessBackend (default, os/exec) and DockerBackend (optional
// sandboxed backend).
type Backend interface {
	Run(ctx context.Context, req BuildRequest, out io.Writer) error
}

// Config configures one Executor.
type Config struct {
	// Jobs is the bounded parallelism; 0 selects runtime.NumCPU().
	Jobs int
	// CheckLevel gates rule engine findings.
	CheckLevel rules.CheckLevel
	// Timeout bounds one plan's build, if positive.
	Timeout time.Duration
	// OutputRoot is the base directory under which per-plan output
	// directories are created.
	OutputRoot string
	// RepoRoots maps a plan's RepoID to its repository's absolute root.
	RepoRoots map[string]string
	// Log receives combined build output for every plan. The executor
	// routes each plan's stream through an internal/hablog logger, so
	// interleaved concurrent output stays attributable to the plan that
	// produced it.
	Log io.Writer
}

func (c Config) jobs() int {
	if c.Jobs > 0 {
		return c.Jobs
	}
	return runtime.NumCPU()
}

// Executor dispatches the dirty set produced by internal/plan, in
// topologically-valid order, over a bounded-parallelism Backend.
type Executor struct {
	g       *graph.Graph
	store   *store.Store
	engine  *rules.Engine
	backend Backend
	cfg     Config
}

// New constructs an Executor.
func New(g *graph.Graph, st *store.Store, engine *rules.Engine, backend Backend, cfg Config) *Executor {
	return &Executor{g: g, store: st, engine: engine, backend: backend, cfg: cfg}
}

type dispatchOutcome struct {
	pos    int
	result PlanResult
}

// Run dispatches every plan in p.Order, honoring dependency order within the
// dirty set (deps outside it are assumed already built) and the bounded
// parallelism of cfg.Jobs. On success a plan is rule-gated then committed;
// on failure every reverse-dependent is marked Skipped without being
// attempted. Cancellation stops promoting ready nodes and lets in-flight
// builds wind down.
func (e *Executor) Run(ctx context.Context, p *plan.Plan) ([]PlanResult, error) {
	n := len(p.Order)
	results := make([]PlanResult, n)
	if n == 0 {
		return results, nil
	}

	arenaIdx := make([]int, n)
	inDirty := make(map[int]int, n)
	for i, rec := range p.Order {
		idx, ok := e.g.IndexOf(rec.Key())
		if !ok {
			return nil, errors.Errorf("%s: not present in dependency graph", rec)
		}
		arenaIdx[i] = idx
		inDirty[idx] = i
	}

	indegree := make([]int, n)
	dependents := make([][]int, n)
	for i, idx := range arenaIdx {
		for _, dep := range e.g.ImmediateDependencies(idx) {
			if depPos, ok := inDirty[dep]; ok {
				indegree[i]++
				dependents[depPos] = append(dependents[depPos], i)
			}
		}
	}

	durations := e.loadDurations(ctx, p.Order)

	done := make([]bool, n)
	var ready []int
	for i, d := range indegree {
		if d == 0 {
			ready = append(ready, i)
		}
	}

	var propagateSkip func(i int, upstream string)
	propagateSkip = func(i int, upstream string) {
		for _, dpos := range dependents[i] {
			if done[dpos] {
				continue
			}
			done[dpos] = true
			results[dpos] = PlanResult{Plan: p.Order[dpos], Status: StatusSkipped, Err: &herr.Skipped{Plan: p.Order[dpos].String(), Upstream: upstream}}
			propagateSkip(dpos, upstream)
		}
	}

	doneCount := 0
	inFlight := 0
	resultCh := make(chan dispatchOutcome, n)
	jobs := e.cfg.jobs()

	for doneCount < n {
		cancelled := ctx.Err() != nil
		if !cancelled {
			// Build-duration-aware tie-break: among equally-ready
			// nodes, dispatch the historically longest build
			// first. This never overrides topological or check-level gating,
			// since `ready` only ever contains nodes whose dependencies are
			// already done.
			sort.SliceStable(ready, func(a, b int) bool {
				da, db := durations[ready[a]], durations[ready[b]]
				if da != db {
					return da > db
				}
				return ready[a] < ready[b]
			})
			for len(ready) > 0 && inFlight < jobs {
				i := ready[0]
				ready = ready[1:]
				inFlight++
				go e.dispatch(ctx, i, p.Order[i], resultCh)
			}
		}
		if inFlight == 0 {
			// Nothing running and (by construction) nothing left that can
			// ever become ready: either cancellation stopped promotion, or
			// every remaining node is unreachable. Mark the rest cancelled
			// rather than spin.
			for i := range done {
				if !done[i] {
					done[i] = true
					doneCount++
					results[i] = PlanResult{Plan: p.Order[i], Status: StatusCancelled, Err: &herr.Cancelled{Plan: p.Order[i].String()}}
				}
			}
			break
		}
		outcome := <-resultCh
		inFlight--
		i := outcome.pos
		done[i] = true
		doneCount++
		results[i] = outcome.result
		if outcome.result.Status == StatusBuilt {
			for _, dpos := range dependents[i] {
				indegree[dpos]--
				if indegree[dpos] == 0 && !done[dpos] {
					ready = append(ready, dpos)
				}
			}
		} else {
			propagateSkip(i, p.Order[i].String())
		}
	}
	return results, nil
}

func (e *Executor) dispatch(ctx context.Context, pos int, rec *planmodel.PlanRecord, out chan<- dispatchOutcome) {
	start := time.Now()
	result := e.build(ctx, rec)
	result.Duration = time.Since(start)
	out <- dispatchOutcome{pos: pos, result: result}
}

// loadDurations reads each plan's last recorded build_times row, for the
// scheduler's tie-breaker.
func (e *Executor) loadDurations(ctx context.Context, order []*planmodel.PlanRecord) []time.Duration {
	out := make([]time.Duration, len(order))
	_ = e.store.PlanningTx(ctx, func(tx *sql.Tx) error {
		for i, rec := range order {
			d, err := store.GetBuildTime(ctx, tx, rec.String())
			if err != nil {
				return err
			}
			out[i] = d
		}
		return nil
	})
	return out
}

// build runs one plan end to end: pre-build source checks, the builder
// backend, post-build artifact checks, and (on success) the post-build
// commit transaction.
func (e *Executor) build(ctx context.Context, rec *planmodel.PlanRecord) PlanResult {
	buildStart := time.Now()
	cfg, err := rules.LoadPlanConfig(filepath.Join(rec.ContextPath, rules.PlanConfigFileName))
	if err != nil {
		return PlanResult{Plan: rec, Status: StatusFailed, Err: err}
	}
	currentFP := ident.Digest(rec.SourceFingerprint).String()

	sourceFindings := e.engine.CheckSource(rec, cfg, currentFP)
	if gateErr := rules.Gate(rec.String(), sourceFindings, e.cfg.CheckLevel); gateErr != nil {
		return PlanResult{Plan: rec, Status: StatusFailed, Err: gateErr, Findings: sourceFindings}
	}

	outputDir := filepath.Join(e.cfg.OutputRoot, sanitizeKey(rec.Key()))
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return PlanResult{Plan: rec, Status: StatusFailed, Err: errors.Wrap(err, "creating output directory")}
	}

	env, resolvedHashes, resolvedDigests := e.resolveDeps(ctx, rec)
	req := BuildRequest{
		Plan:       rec,
		ContextDir: rec.ContextPath,
		RepoRoot:   e.cfg.RepoRoots[rec.RepoID],
		Target:     rec.ID.Target,
		OutputDir:  outputDir,
		Env:        env,
	}

	var logOut io.Writer = io.Discard
	if e.cfg.Log != nil {
		logOut = hablog.New(e.cfg.Log, rec.String()).Writer()
	}
	var outbuf bytes.Buffer
	multi := io.MultiWriter(&outbuf, logOut)

	buildCtx := ctx
	var cancel context.CancelFunc
	if e.cfg.Timeout > 0 {
		buildCtx, cancel = context.WithTimeout(ctx, e.cfg.Timeout)
		defer cancel()
	}
	runErr := e.backend.Run(buildCtx, req, multi)
	if runErr != nil {
		if ctx.Err() != nil {
			return PlanResult{Plan: rec, Status: StatusCancelled, Err: &herr.Cancelled{Plan: rec.String()}}
		}
		return PlanResult{Plan: rec, Status: StatusFailed, Err: &herr.BuildFailed{Plan: rec.String(), Reason: runErr.Error()}}
	}

	providedSonames := e.providedSonames(ctx, rec)
	artifactFindings, err := e.engine.CheckArtifact(rec, outputDir, cfg, currentFP, providedSonames)
	if err != nil {
		return PlanResult{Plan: rec, Status: StatusFailed, Err: errors.Wrap(err, "checking artifact")}
	}
	if gateErr := rules.Gate(rec.String(), artifactFindings, e.cfg.CheckLevel); gateErr != nil {
		return PlanResult{Plan: rec, Status: StatusFailed, Err: gateErr, Findings: append(sourceFindings, artifactFindings...)}
	}

	if err := e.commit(ctx, rec, outputDir, env, resolvedHashes, resolvedDigests, time.Since(buildStart)); err != nil {
		return PlanResult{Plan: rec, Status: StatusFailed, Err: err}
	}
	return PlanResult{Plan: rec, Status: StatusBuilt, Findings: append(sourceFindings, artifactFindings...)}
}

// resolveDeps builds the HAB_DEP_<NAME> environment exposing resolved
// dep-artifact paths, reading each dependency's last committed
// artifact_contexts row. It also returns the digest/hash bookkeeping needed
// for this plan's own artifact fingerprint.
func (e *Executor) resolveDeps(ctx context.Context, rec *planmodel.PlanRecord) (env map[string]string, hashes map[string]string, digests []ident.ResolvedDep) {
	env = map[string]string{"PATH": os.Getenv("PATH")}
	hashes = make(map[string]string)
	_ = e.store.PlanningTx(ctx, func(tx *sql.Tx) error {
		for _, raw := range rec.Deps {
			depIdent, err := ident.Parse(raw)
			if err != nil {
				continue
			}
			hash, ac, err := store.GetArtifactContextByIdent(ctx, tx, depIdent.String())
			if err != nil || ac == nil {
				continue
			}
			varName := "HAB_DEP_" + envSafe(depIdent.Name)
			if len(ac.Outputs) > 0 {
				env[varName] = filepath.Dir(ac.Outputs[0])
			}
			hashes[depIdent.String()] = hash
			var d ident.Digest
			if raw, err := hex.DecodeString(hash); err == nil && len(raw) == len(d) {
				copy(d[:], raw)
			}
			digests = append(digests, ident.ResolvedDep{Ident: depIdent.String(), Digest: d})
		}
		return nil
	})
	return env, hashes, digests
}

// providedSonames approximates a soname -> providing-dep-ident map for the
// missing-runtime-dependency check from each dependency's last recorded
// output file list, since plan metadata carries no explicit library
// manifest.
func (e *Executor) providedSonames(ctx context.Context, rec *planmodel.PlanRecord) map[string]string {
	out := make(map[string]string)
	_ = e.store.PlanningTx(ctx, func(tx *sql.Tx) error {
		for _, raw := range rec.Deps {
			depIdent, err := ident.Parse(raw)
			if err != nil {
				continue
			}
			_, ac, err := store.GetArtifactContextByIdent(ctx, tx, depIdent.String())
			if err != nil || ac == nil {
				continue
			}
			for _, o := range ac.Outputs {
				base := filepath.Base(o)
				if strings.Contains(base, ".so") {
					out[base] = depIdent.String()
				}
			}
		}
		return nil
	})
	return out
}

// commit performs the post-build commit transaction: refresh every
// context file's mtime baseline, upsert artifact_contexts/source_contexts,
// and record the build duration.
func (e *Executor) commit(ctx context.Context, rec *planmodel.PlanRecord, outputDir string, env map[string]string, resolvedHashes map[string]string, resolvedDigests []ident.ResolvedDep, duration time.Duration) error {
	outputs, err := listOutputFiles(outputDir)
	if err != nil {
		return errors.Wrap(err, "listing build outputs")
	}
	envDigest := ident.EnvDigest(env)
	fp, err := ident.ArtifactFingerprint(rec.String(), resolvedDigests, envDigest)
	if err != nil {
		return err
	}
	srcHash := ident.Digest(rec.SourceFingerprint).String()

	return e.store.CommitTx(ctx, func(tx *sql.Tx) error {
		files, err := journal.ListContextFiles(rec.ContextPath)
		if err != nil {
			return errors.Wrapf(err, "listing files for %s", rec)
		}
		for _, rel := range files {
			info, err := os.Stat(filepath.Join(rec.ContextPath, rel))
			if err != nil {
				return err
			}
			mt := info.ModTime()
			if err := store.PutFileModification(ctx, tx, store.FileModification{
				PlanContextPath: rec.ContextPath, FilePath: rel, RealMtime: mt, AlternateMtime: mt,
			}); err != nil {
				return err
			}
		}
		if err := store.PutArtifactContext(ctx, tx, fp.String(), store.ArtifactContext{
			Ident:        rec.String(),
			ResolvedDeps: resolvedHashes,
			EnvDigest:    hex.EncodeToString(envDigest),
			BuiltAt:      time.Now(),
			Outputs:      outputs,
		}); err != nil {
			return err
		}
		if err := store.PutSourceContext(ctx, tx, srcHash, store.SourceContext{
			Ident:               rec.String(),
			SourceFingerprint:   srcHash,
			PlanFileFingerprint: srcHash,
			LicensingSummary:    strings.Join(rec.Licenses, ","),
		}); err != nil {
			return err
		}
		// A successful build consumes any manual override: an `add` must
		// not leave the plan permanently dirty, and a stale `remove` is
		// moot once the plan has rebuilt.
		if err := store.DeleteManualOverride(ctx, tx, rec.Key()); err != nil {
			return err
		}
		return store.PutBuildTime(ctx, tx, rec.String(), duration)
	})
}

func listOutputFiles(dir string) ([]string, error) {
	var out []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) && path == dir {
				return nil
			}
			return err
		}
		if !d.IsDir() {
			out = append(out, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func sanitizeKey(key string) string {
	return strings.ReplaceAll(key, "/", "__")
}

func envSafe(s string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(s) {
		switch {
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}
