// Copyright 2026 The HAB Authors
// SPDX-License-Identifier: Apache-2.0

// Package scan implements the repository scanner: a depth-first walk of
// each configured repo honoring .gitignore-style files, recognizing plan
// files, and classifying them native/ignored via glob patterns. Uses the
// same filepath.WalkDir traversal style as
// internal/ident.SourceFingerprint, and internal/glob for ** semantics.
package scan

import (
	"io/fs"
	"path"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-git/v5/plumbing/format/gitignore"
	"github.com/habitat-sh/hab-auto-build/internal/glob"
	"github.com/habitat-sh/hab-auto-build/internal/habconfig"
	"github.com/habitat-sh/hab-auto-build/internal/herr"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// Found is one discovered plan file, prior to metadata extraction.
type Found struct {
	RepoID      string
	PlanFile    string // absolute path
	ContextPath string // absolute path, directory containing PlanFile
	IsNative    bool
}

var planFileNames = []string{"plan.sh", "plan.ps1"}

// isPlanFile recognizes plan.sh, plan.ps1, or habitat/plan.* by name.
// relSlash is the plan-root-relative path using '/' separators.
func isPlanFile(relSlash string) bool {
	base := path.Base(relSlash)
	for _, p := range planFileNames {
		if base == p {
			return true
		}
	}
	parent := path.Base(path.Dir(relSlash))
	return parent == "habitat" && strings.HasPrefix(base, "plan.")
}

// Scan walks every configured repo and returns every discovered plan file.
// Duplicate (origin, name) detection is not performed here: it requires
// metadata extraction to know origin/name, so it's the caller's (the
// orchestrator's) job once plan records exist; Scan only guarantees it never
// returns the same context path twice for the same repo. Independent repos
// are walked concurrently over a worker pool bounded by core count; the
// final
// result is sorted by (RepoID, ContextPath) so the returned order never
// depends on goroutine scheduling.
func Scan(repos []habconfig.RepoConfig) ([]Found, error) {
	perRepo := make([][]Found, len(repos))
	g := new(errgroup.Group)
	g.SetLimit(runtime.NumCPU())
	for i, repo := range repos {
		i, repo := i, repo
		g.Go(func() error {
			found, err := scanRepo(repo)
			if err != nil {
				return errors.Wrapf(err, "scanning repo %s", repo.ID)
			}
			perRepo[i] = found
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	var results []Found
	for _, found := range perRepo {
		results = append(results, found...)
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].RepoID != results[j].RepoID {
			return results[i].RepoID < results[j].RepoID
		}
		return results[i].ContextPath < results[j].ContextPath
	})
	return results, nil
}

func scanRepo(repo habconfig.RepoConfig) ([]Found, error) {
	fsys := osfs.New(repo.Source)
	patterns, err := gitignore.ReadPatterns(fsys, nil)
	if err != nil {
		return nil, errors.Wrap(err, "reading ignore patterns")
	}
	matcher := gitignore.NewMatcher(patterns)

	var found []Found
	err = filepath.WalkDir(repo.Source, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(repo.Source, path)
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
		relSlash := filepath.ToSlash(rel)
		if !isPlanFile(relSlash) {
			return nil
		}
		if glob.MatchAny(repo.IgnoredPackages, relSlash) {
			return nil
		}
		found = append(found, Found{
			RepoID:      repo.ID,
			PlanFile:    path,
			ContextPath: filepath.Dir(path),
			IsNative:    glob.MatchAny(repo.NativePackages, relSlash),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(found, func(i, j int) bool { return found[i].ContextPath < found[j].ContextPath })
	return found, nil
}

// CheckDuplicateIdentity is called by the orchestrator once (origin, name)
// is known for every found plan; a duplicate across repos is fatal.
func CheckDuplicateIdentity(origins, names []string, contextPaths []string) error {
	if len(origins) != len(names) || len(names) != len(contextPaths) {
		return errors.New("mismatched identity slices")
	}
	seen := make(map[string]string, len(origins))
	for i := range origins {
		key := origins[i] + "/" + names[i]
		if first, ok := seen[key]; ok {
			return &herr.DuplicatePlanIdentity{Origin: origins[i], Name: names[i], First: first, Second: contextPaths[i]}
		}
		seen[key] = contextPaths[i]
	}
	return nil
}
