// Copyright 2026 The HAB Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/habitat-sh/hab-auto-build/internal/herr"
)

func openTest(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "state.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestFileModificationRoundTrip(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	real := time.Unix(1700000000, 0)
	alt := time.Unix(1700000100, 0)
	err := s.CommitTx(ctx, func(tx *sql.Tx) error {
		return PutFileModification(ctx, tx, FileModification{
			PlanContextPath: "/repo/core/zlib",
			FilePath:        "plan.sh",
			RealMtime:       real,
			AlternateMtime:  alt,
		})
	})
	if err != nil {
		t.Fatalf("CommitTx: %v", err)
	}
	var got *FileModification
	err = s.PlanningTx(ctx, func(tx *sql.Tx) error {
		var err error
		got, err = GetFileModification(ctx, tx, "/repo/core/zlib", "plan.sh")
		return err
	})
	if err != nil {
		t.Fatalf("PlanningTx: %v", err)
	}
	if got == nil || !got.AlternateMtime.Equal(alt) {
		t.Fatalf("unexpected file modification: %+v", got)
	}

	// SetAlternateMtime moves only the comparison baseline.
	alt2 := time.Unix(1700000200, 0)
	err = s.CommitTx(ctx, func(tx *sql.Tx) error {
		return SetAlternateMtime(ctx, tx, "/repo/core/zlib", "plan.sh", alt2)
	})
	if err != nil {
		t.Fatalf("CommitTx: %v", err)
	}
	err = s.PlanningTx(ctx, func(tx *sql.Tx) error {
		var err error
		got, err = GetFileModification(ctx, tx, "/repo/core/zlib", "plan.sh")
		return err
	})
	if err != nil {
		t.Fatalf("PlanningTx: %v", err)
	}
	if !got.AlternateMtime.Equal(alt2) || !got.RealMtime.Equal(real) {
		t.Fatalf("expected alternate %v and untouched real %v, got %+v", alt2, real, got)
	}
}

func TestManualOverrideLifecycle(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	err := s.CommitTx(ctx, func(tx *sql.Tx) error {
		return PutManualOverride(ctx, tx, "core/zlib", OverrideAdd)
	})
	if err != nil {
		t.Fatalf("CommitTx: %v", err)
	}
	err = s.CommitTx(ctx, func(tx *sql.Tx) error {
		return DeleteManualOverride(ctx, tx, "core/zlib")
	})
	if err != nil {
		t.Fatalf("CommitTx: %v", err)
	}
	var overrides map[string]ManualOverrideKind
	err = s.PlanningTx(ctx, func(tx *sql.Tx) error {
		var err error
		overrides, err = ListManualOverrides(ctx, tx)
		return err
	})
	if err != nil {
		t.Fatalf("PlanningTx: %v", err)
	}
	if len(overrides) != 0 {
		t.Fatalf("expected no overrides after delete, got %v", overrides)
	}
}

func TestArtifactContextByIdentPicksLatest(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	older := ArtifactContext{Ident: "core/zlib/1.3", BuiltAt: time.Unix(100, 0)}
	newer := ArtifactContext{Ident: "core/zlib/1.3", BuiltAt: time.Unix(200, 0)}
	err := s.CommitTx(ctx, func(tx *sql.Tx) error {
		if err := PutArtifactContext(ctx, tx, "hash-older", older); err != nil {
			return err
		}
		return PutArtifactContext(ctx, tx, "hash-newer", newer)
	})
	if err != nil {
		t.Fatalf("CommitTx: %v", err)
	}
	var hash string
	var ac *ArtifactContext
	err = s.PlanningTx(ctx, func(tx *sql.Tx) error {
		var err error
		hash, ac, err = GetArtifactContextByIdent(ctx, tx, "core/zlib/1.3")
		return err
	})
	if err != nil {
		t.Fatalf("PlanningTx: %v", err)
	}
	if hash != "hash-newer" || ac == nil {
		t.Fatalf("expected the newer artifact context, got hash=%q ac=%+v", hash, ac)
	}
}

func TestUnknownSchemaVersionIsFatal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := s.db.Exec(`UPDATE schema_meta SET version = ?`, schemaVersion+1); err != nil {
		t.Fatal(err)
	}
	s.Close()

	_, err = Open(path)
	if _, ok := err.(*herr.UnknownSchemaVersion); !ok {
		t.Fatalf("expected *herr.UnknownSchemaVersion, got %v (%T)", err, err)
	}
}

func TestCommitTxRollsBackOnError(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	sentinel := errors.New("intentional failure")
	err := s.CommitTx(ctx, func(tx *sql.Tx) error {
		if err := PutFileModification(ctx, tx, FileModification{PlanContextPath: "p", FilePath: "f"}); err != nil {
			return err
		}
		return sentinel
	})
	if err != sentinel {
		t.Fatalf("expected sentinel error, got %v", err)
	}
	var got *FileModification
	_ = s.PlanningTx(ctx, func(tx *sql.Tx) error {
		var err error
		got, err = GetFileModification(ctx, tx, "p", "f")
		return err
	})
	if got != nil {
		t.Fatalf("expected rollback to discard the write, got %+v", got)
	}
}
