// Copyright 2026 The HAB Authors
// SPDX-License-Identifier: Apache-2.0

// Package gitdriver answers "when was this file last committed": the
// committer time of the most recent commit touching a given path. It backs
// the `-m git` mtime comparator and `git-sync`, which rewrites on-disk
// mtimes to match commit times. Implemented over go-git's commit log with a
// path filter, generalized here
// from "infer a package version from a commit" to "find the commit time for
// one repo-relative path".
package gitdriver

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/pkg/errors"
)

// Driver resolves commit times for files within one git repository, caching
// the open *git.Repository per repo root since a single invocation may query
// many files across many plans within the same repo.
type Driver struct {
	mu    sync.Mutex
	repos map[string]*git.Repository
}

// New constructs an empty Driver.
func New() *Driver {
	return &Driver{repos: make(map[string]*git.Repository)}
}

func (d *Driver) open(repoRoot string) (*git.Repository, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if r, ok := d.repos[repoRoot]; ok {
		return r, nil
	}
	r, err := git.PlainOpen(repoRoot)
	if err != nil {
		return nil, errors.Wrapf(err, "opening git repository at %s", repoRoot)
	}
	d.repos[repoRoot] = r
	return r, nil
}

// CommitTime returns the committer time of the most recent commit that
// touched relPath (repo-root-relative, '/'-separated) within repoRoot's
// current HEAD history. It returns the zero time if no commit touches the
// path (e.g. an untracked file); the journal then falls back to the file's
// filesystem mtime, and git-sync leaves the file alone.
func (d *Driver) CommitTime(repoRoot, relPath string) (time.Time, error) {
	repo, err := d.open(repoRoot)
	if err != nil {
		return time.Time{}, err
	}
	relSlash := filepath.ToSlash(relPath)
	iter, err := repo.Log(&git.LogOptions{
		Order:      git.LogOrderCommitterTime,
		PathFilter: func(s string) bool { return s == relSlash },
	})
	if err != nil {
		return time.Time{}, errors.Wrapf(err, "walking log for %s", relSlash)
	}
	defer iter.Close()
	var latest time.Time
	err = iter.ForEach(func(c *object.Commit) error {
		if c.Committer.When.After(latest) {
			latest = c.Committer.When
		}
		return nil
	})
	if err != nil {
		return time.Time{}, errors.Wrapf(err, "reading commit log for %s", relSlash)
	}
	return latest, nil
}

// IsRepo reports whether root looks like the root of a git working tree
// (whether go-git can open a repository there).
func IsRepo(root string) bool {
	_, err := git.PlainOpen(root)
	return err == nil
}
