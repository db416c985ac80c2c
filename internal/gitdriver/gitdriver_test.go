// Copyright 2026 The HAB Authors
// SPDX-License-Identifier: Apache-2.0

package gitdriver

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
)

func commitFile(t *testing.T, repo *git.Repository, root, relPath, content string, when time.Time) {
	t.Helper()
	full := filepath.Join(root, relPath)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := wt.Add(relPath); err != nil {
		t.Fatal(err)
	}
	_, err = wt.Commit("update "+relPath, &git.CommitOptions{
		Author:    &object.Signature{Name: "tester", Email: "t@example.com", When: when},
		Committer: &object.Signature{Name: "tester", Email: "t@example.com", When: when},
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestCommitTime(t *testing.T) {
	root := t.TempDir()
	repo, err := git.PlainInit(root, false)
	if err != nil {
		t.Fatal(err)
	}
	t1 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	t2 := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	commitFile(t, repo, root, "plans/foo/plan.sh", "v1", t1)
	commitFile(t, repo, root, "plans/foo/plan.sh", "v2", t2)
	commitFile(t, repo, root, "plans/bar/plan.sh", "v1", t1)

	d := New()
	got, err := d.CommitTime(root, "plans/foo/plan.sh")
	if err != nil {
		t.Fatal(err)
	}
	if !got.Equal(t2) {
		t.Errorf("CommitTime(foo) = %v, want %v", got, t2)
	}

	got, err = d.CommitTime(root, "plans/bar/plan.sh")
	if err != nil {
		t.Fatal(err)
	}
	if !got.Equal(t1) {
		t.Errorf("CommitTime(bar) = %v, want %v", got, t1)
	}

	got, err = d.CommitTime(root, "plans/missing/plan.sh")
	if err != nil {
		t.Fatal(err)
	}
	if !got.IsZero() {
		t.Errorf("CommitTime(missing) = %v, want zero", got)
	}
}

func TestIsRepo(t *testing.T) {
	root := t.TempDir()
	if IsRepo(root) {
		t.Error("IsRepo on non-repo dir = true, want false")
	}
	if _, err := git.PlainInit(root, false); err != nil {
		t.Fatal(err)
	}
	if !IsRepo(root) {
		t.Error("IsRepo on repo dir = false, want true")
	}
}
