// Copyright 2026 The HAB Authors
// SPDX-License-Identifier: Apache-2.0

// Package store implements the persistent state tables backed by an
// embedded, cgo-free modernc.org/sqlite database, with a monotonically
// versioned forward-only migration applied at open time. Built
// (database/sql + modernc.org/sqlite, schema-in-CREATE-TABLE-IF-NOT-EXISTS,
// a sync.RWMutex guarding concurrent access) generalized from one
// event-log table to HAB's five.
package store

import (
	"context"
	"database/sql"
	"sync"

	"github.com/habitat-sh/hab-auto-build/internal/herr"
	"github.com/pkg/errors"

	_ "modernc.org/sqlite"
)

// schemaVersion is this binary's known schema version. Opening a store with
// a newer recorded version is fatal.
const schemaVersion = 1

// Store owns the single on-disk state.db. It is HAB's only truly global,
// single-writer piece of mutable state; every other shared datum
// (graph, plan records) is immutable after construction and threaded
// explicitly rather than captured ambient.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// Open opens (creating if absent) the state database at path, applying
// forward-only migrations as needed.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, &herr.StoreIO{Op: "open", Err: err}
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_meta (version INTEGER NOT NULL)`); err != nil {
		return &herr.StoreIO{Op: "migrate", Err: err}
	}
	var found int
	row := s.db.QueryRow(`SELECT version FROM schema_meta LIMIT 1`)
	switch err := row.Scan(&found); err {
	case sql.ErrNoRows:
		if _, err := s.db.Exec(`INSERT INTO schema_meta (version) VALUES (?)`, schemaVersion); err != nil {
			return &herr.StoreIO{Op: "migrate", Err: err}
		}
		found = schemaVersion
	case nil:
		// fallthrough to version check below
	default:
		return &herr.StoreIO{Op: "migrate", Err: err}
	}
	if found > schemaVersion {
		return &herr.UnknownSchemaVersion{Found: found, Known: schemaVersion}
	}
	if _, err := s.db.Exec(createTablesSQL); err != nil {
		return &herr.StoreIO{Op: "migrate", Err: err}
	}
	return nil
}

const createTablesSQL = `
CREATE TABLE IF NOT EXISTS file_modifications (
	plan_context_path TEXT NOT NULL,
	file_path         TEXT NOT NULL,
	real_mtime        INTEGER NOT NULL,
	alternate_mtime   INTEGER NOT NULL,
	PRIMARY KEY (plan_context_path, file_path)
);
CREATE TABLE IF NOT EXISTS build_times (
	build_ident  TEXT PRIMARY KEY,
	duration_secs REAL NOT NULL
);
CREATE TABLE IF NOT EXISTS artifact_contexts (
	hash TEXT PRIMARY KEY,
	context_blob TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS source_contexts (
	hash TEXT PRIMARY KEY,
	context_blob TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS manual_overrides (
	plan_key TEXT PRIMARY KEY,
	kind     TEXT NOT NULL
);
`

// Close closes the underlying database handle.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return &herr.StoreIO{Op: "close", Err: err}
	}
	return nil
}

// PlanningTx runs fn inside a read-only, snapshot-isolated transaction. It
// always rolls back: the planning phase never writes through this path.
func (s *Store) PlanningTx(ctx context.Context, fn func(*sql.Tx) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return &herr.StoreIO{Op: "begin planning tx", Err: err}
	}
	defer tx.Rollback()
	if err := fn(tx); err != nil {
		return err
	}
	return nil
}

// CommitTx runs fn inside a read-write transaction and commits on success:
// file_modifications,
// artifact_contexts, source_contexts, and build_times are all updated
// atomically. A crash mid-transaction leaves the prior state intact (the
// just-failed plan appears dirty on next invocation), since sqlite rolls the
// transaction back.
func (s *Store) CommitTx(ctx context.Context, fn func(*sql.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &herr.StoreIO{Op: "begin commit tx", Err: err}
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return &herr.StoreIO{Op: "commit", Err: errors.Wrap(err, "committing build result")}
	}
	return nil
}
