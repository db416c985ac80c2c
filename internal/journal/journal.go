// Copyright 2026 The HAB Authors
// SPDX-License-Identifier: Apache-2.0

// Package journal implements the change journal: deriving, per plan,
// the reasons it is considered dirty by diffing current on-disk/VCS state
// against internal/store's persisted tables. Context traversal uses the
// same filepath.WalkDir + go-git-gitignore pairing as
// internal/ident.SourceFingerprint and internal/scan, here comparing file
// mtimes against a stored baseline instead of hashing contents.
package journal

import (
	"context"
	"database/sql"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-git/v5/plumbing/format/gitignore"
	"github.com/habitat-sh/hab-auto-build/internal/gitdriver"
	"github.com/habitat-sh/hab-auto-build/internal/graph"
	"github.com/habitat-sh/hab-auto-build/internal/herr"
	"github.com/habitat-sh/hab-auto-build/internal/planmodel"
	"github.com/habitat-sh/hab-auto-build/internal/store"
	"github.com/pkg/errors"
)

// MtimeMode selects the timestamp comparator: the default
// filesystem mtime, or (with `-m git`) the commit time of the last commit
// touching each file.
type MtimeMode int

const (
	ModeFS MtimeMode = iota
	ModeGit
)

// Options configures one ComputeAll invocation.
type Options struct {
	Mode MtimeMode
	// Git is required when Mode == ModeGit.
	Git *gitdriver.Driver
	// RepoRoots maps a plan's RepoID to the absolute root of its repository,
	// used to compute repo-relative paths for the git mtime source.
	RepoRoots map[string]string
}

// CurrentTimestamp returns the timestamp a file is compared by: the
// filesystem mtime in the default mode, or the last commit time touching it
// in git mode.
func (o Options) CurrentTimestamp(repoID, absPath string) (time.Time, error) {
	info, err := osStat(absPath)
	if err != nil {
		return time.Time{}, err
	}
	if o.Mode == ModeFS {
		return info.ModTime(), nil
	}
	root, ok := o.RepoRoots[repoID]
	if !ok {
		return info.ModTime(), nil
	}
	rel, err := filepath.Rel(root, absPath)
	if err != nil {
		return info.ModTime(), nil
	}
	t, err := o.Git.CommitTime(root, filepath.ToSlash(rel))
	if err != nil {
		return time.Time{}, err
	}
	if t.IsZero() {
		// Untracked file: no commit to compare against, fall back to fs mtime
		// so such a file is always treated consistently rather than
		// perpetually dirty.
		return info.ModTime(), nil
	}
	return t, nil
}

// ComputeAll derives a ChangeEntry for every plan in g, honoring any
// manual_overrides persisted in st (ManuallyAdded always applies; a `remove`
// override suppresses a plan's reasons only while none of the plans it
// depends on remain dirty).
func ComputeAll(ctx context.Context, st *store.Store, g *graph.Graph, opts Options) ([]*planmodel.ChangeEntry, error) {
	entries := make([]*planmodel.ChangeEntry, g.Len())
	for i := 0; i < g.Len(); i++ {
		entries[i] = &planmodel.ChangeEntry{Plan: g.Record(i)}
	}
	var overrides map[string]store.ManualOverrideKind
	err := st.PlanningTx(ctx, func(tx *sql.Tx) error {
		var err error
		overrides, err = store.ListManualOverrides(ctx, tx)
		if err != nil {
			return err
		}
		for i := 0; i < g.Len(); i++ {
			if err := computePrimitive(ctx, tx, entries[i], opts); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	applyManualAdds(entries, overrides)
	propagateDependencyRebuilt(entries, g)
	applyManualRemoves(entries, g, overrides)

	return entries, nil
}

// computePrimitive fills in SourceModified and ArtifactMissing for one
// plan's entry; DependencyRebuilt is derived afterward by
// propagateDependencyRebuilt once every plan's primitive reasons are known.
func computePrimitive(ctx context.Context, tx *sql.Tx, entry *planmodel.ChangeEntry, opts Options) error {
	p := entry.Plan
	if p.Unusable {
		return nil
	}
	paths, err := ListContextFiles(p.ContextPath)
	if err != nil {
		return errors.Wrapf(err, "listing files for %s", p)
	}
	var modified, mismatched []string
	for _, rel := range paths {
		abs := filepath.Join(p.ContextPath, rel)
		current, err := opts.CurrentTimestamp(p.RepoID, abs)
		if err != nil {
			return err
		}
		fm, err := store.GetFileModification(ctx, tx, p.ContextPath, rel)
		if err != nil {
			return err
		}
		if fm == nil || !fm.AlternateMtime.Equal(current) {
			if fm != nil && fm.RealMtime.Equal(current) {
				// The comparator timestamp moved but the recorded on-disk
				// mtime still matches: the timestamp sources disagree
				// rather than the file having been edited.
				mismatched = append(mismatched, rel)
			} else {
				modified = append(modified, rel)
			}
		}
	}
	if len(modified) > 0 {
		sort.Strings(modified)
		entry.Reasons = append(entry.Reasons, planmodel.ChangeReason{
			Kind:    planmodel.ReasonSourceModified,
			Paths:   modified,
			Explain: "source file(s) modified: " + strings.Join(modified, ", "),
		})
	}
	if len(mismatched) > 0 {
		sort.Strings(mismatched)
		entry.Reasons = append(entry.Reasons, planmodel.ChangeReason{
			Kind:    planmodel.ReasonTimestampMismatch,
			Paths:   mismatched,
			Explain: "timestamp baseline out of sync (file unchanged on disk): " + strings.Join(mismatched, ", "),
		})
	}
	hash, _, err := store.GetArtifactContextByIdent(ctx, tx, p.String())
	if err != nil {
		return err
	}
	if hash == "" {
		entry.Reasons = append(entry.Reasons, planmodel.ChangeReason{
			Kind:    planmodel.ReasonArtifactMissing,
			Explain: "no prior build artifact recorded",
		})
	}
	return nil
}

func applyManualAdds(entries []*planmodel.ChangeEntry, overrides map[string]store.ManualOverrideKind) {
	for _, e := range entries {
		if overrides[e.Plan.Key()] == store.OverrideAdd {
			e.Reasons = append(e.Reasons, planmodel.ChangeReason{
				Kind:    planmodel.ReasonManuallyAdded,
				Explain: "manually added via `hab add`",
			})
		}
	}
}

// propagateDependencyRebuilt runs a fixpoint over the graph: any plan
// depending (directly or transitively) on a currently-dirty plan is itself
// marked dirty via an explicit DependencyRebuilt reason. This must fire
// before the dependency has actually rebuilt, so the whole chain reports
// dirty up front ("dirty" here means "carries at least one reason so far",
// not "has a newly observed artifact_contexts hash"), so that `changes`
// reports the whole chain in one pass instead of only after a prior build.
// A plan dirty solely because it was ManuallyAdded must not itself
// propagate DependencyRebuilt to its dependents (adding a native plan
// rebuilds only that plan); only a genuine source/artifact change, or a
// dependent already propagated-dirty, does.
func propagateDependencyRebuilt(entries []*planmodel.ChangeEntry, g *graph.Graph) {
	dirty := make([]bool, g.Len())
	for i, e := range entries {
		dirty[i] = e.Dirty() && !e.SolelyManuallyAdded()
	}
	for changed := true; changed; {
		changed = false
		for i := 0; i < g.Len(); i++ {
			if dirty[i] {
				continue
			}
			for _, depIdx := range g.ImmediateDependencies(i) {
				if dirty[depIdx] {
					entries[i].Reasons = append(entries[i].Reasons, planmodel.ChangeReason{
						Kind:    planmodel.ReasonDependencyRebuilt,
						Dep:     g.Record(depIdx).String(),
						Explain: "dependency " + g.Record(depIdx).String() + " is dirty",
					})
					dirty[i] = true
					changed = true
					break
				}
			}
		}
	}
}

// applyManualRemoves clears a plan's reasons when a `remove` override is
// recorded and no currently-dirty dependency (per the ForwardClosure of the
// plan, excluding plans dirty solely via ManuallyAdded) blocks it: removing
// an upstream plan while something it depends on still needs a rebuild would
// leave the closure open.
func applyManualRemoves(entries []*planmodel.ChangeEntry, g *graph.Graph, overrides map[string]store.ManualOverrideKind) {
	dirty := make([]bool, g.Len())
	for i, e := range entries {
		dirty[i] = e.Dirty()
	}
	byIndex := make(map[string]int, g.Len())
	for i := 0; i < g.Len(); i++ {
		byIndex[g.Record(i).Key()] = i
	}
	for i, e := range entries {
		if overrides[e.Plan.Key()] != store.OverrideRemove {
			continue
		}
		var blockers []string
		for _, depIdx := range graph.Indices(g.ForwardClosure([]int{i})) {
			if dirty[depIdx] && !entries[depIdx].SolelyManuallyAdded() {
				blockers = append(blockers, g.Record(depIdx).String())
			}
		}
		if len(blockers) > 0 {
			sort.Strings(blockers)
			e.Reasons = append(e.Reasons, planmodel.ChangeReason{
				Kind:    planmodel.ReasonRemoveBlocked,
				Explain: (&herr.CannotRemoveDirty{Plan: e.Plan.String(), BlockerDeps: blockers}).Error(),
			})
			continue
		}
		e.Reasons = nil
		dirty[i] = false
	}
}

// RequestRemove validates whether plan may currently be removed from the
// dirty set. It does not mutate the
// store; callers persist the override via internal/store.PutManualOverride
// only once this returns nil.
func RequestRemove(entries []*planmodel.ChangeEntry, g *graph.Graph, planKey string) error {
	idx, ok := g.IndexOf(planKey)
	if !ok {
		return errors.Errorf("unknown plan %q", planKey)
	}
	for _, depIdx := range graph.Indices(g.ForwardClosure([]int{idx})) {
		if entries[depIdx].Dirty() && !entries[depIdx].SolelyManuallyAdded() {
			return &herr.CannotRemoveDirty{
				Plan:        entries[idx].Plan.String(),
				BlockerDeps: []string{entries[depIdx].Plan.String()},
			}
		}
	}
	return nil
}

func ListContextFiles(contextDir string) ([]string, error) {
	fsys := osfs.New(contextDir)
	patterns, err := gitignore.ReadPatterns(fsys, nil)
	if err != nil {
		return nil, err
	}
	matcher := gitignore.NewMatcher(patterns)
	var out []string
	err = filepath.WalkDir(contextDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(contextDir, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		segments := strings.Split(filepath.ToSlash(rel), "/")
		if matcher.Match(segments, d.IsDir()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		out = append(out, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(out)
	return out, nil
}

// osStat is a package-level var so tests can stub mtime lookups without
// touching the real filesystem clock.
var osStat = os.Stat

// GitSync backs the `git-sync` command: for every file in
// every plan's context, rewrite its on-disk mtime to equal its last commit
// time, then record that value as alternate_mtime (and, for a file with no
// stored row yet, as real_mtime too) so a subsequent default-mode (`-m fs`)
// `changes` run sees it as clean. Files with no commit are left untouched.
func GitSync(ctx context.Context, st *store.Store, g *graph.Graph, gitDrv *gitdriver.Driver, repoRoots map[string]string) error {
	return st.CommitTx(ctx, func(tx *sql.Tx) error {
		for i := 0; i < g.Len(); i++ {
			p := g.Record(i)
			if p.Unusable {
				continue
			}
			root, ok := repoRoots[p.RepoID]
			if !ok {
				continue
			}
			paths, err := ListContextFiles(p.ContextPath)
			if err != nil {
				return errors.Wrapf(err, "listing files for %s", p)
			}
			for _, rel := range paths {
				abs := filepath.Join(p.ContextPath, rel)
				repoRel, err := filepath.Rel(root, abs)
				if err != nil {
					return err
				}
				commitTime, err := gitDrv.CommitTime(root, filepath.ToSlash(repoRel))
				if err != nil {
					return errors.Wrapf(err, "resolving commit time for %s", rel)
				}
				if commitTime.IsZero() {
					continue
				}
				if err := os.Chtimes(abs, commitTime, commitTime); err != nil {
					return errors.Wrapf(err, "rewriting mtime for %s", rel)
				}
				fm, err := store.GetFileModification(ctx, tx, p.ContextPath, rel)
				if err != nil {
					return err
				}
				if fm != nil {
					// Existing baseline: only the comparison reference
					// moves; real_mtime keeps recording what the last
					// build observed.
					if err := store.SetAlternateMtime(ctx, tx, p.ContextPath, rel, commitTime); err != nil {
						return err
					}
					continue
				}
				if err := store.PutFileModification(ctx, tx, store.FileModification{
					PlanContextPath: p.ContextPath,
					FilePath:        rel,
					RealMtime:       commitTime,
					AlternateMtime:  commitTime,
				}); err != nil {
					return err
				}
			}
		}
		return nil
	})
}
