// Copyright 2026 The HAB Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/habitat-sh/hab-auto-build/internal/herr"
)

// FileModification is one row of the file_modifications table. RealMtime is
// read from the filesystem; AlternateMtime is the reference value change
// detection compares against (typically the VCS commit time after a
// git-sync). Both are stored as SQLite INTEGER Unix nanoseconds; text
// encodings carry locale/format ambiguity that integers don't.
type FileModification struct {
	PlanContextPath string
	FilePath        string
	RealMtime       time.Time
	AlternateMtime  time.Time
}

// GetFileModification looks up the stored mtime pair for one file, if any.
func GetFileModification(ctx context.Context, tx *sql.Tx, contextPath, filePath string) (*FileModification, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT real_mtime, alternate_mtime FROM file_modifications WHERE plan_context_path = ? AND file_path = ?`,
		contextPath, filePath)
	var real, alt int64
	switch err := row.Scan(&real, &alt); err {
	case sql.ErrNoRows:
		return nil, nil
	case nil:
		return &FileModification{
			PlanContextPath: contextPath,
			FilePath:        filePath,
			RealMtime:       time.Unix(0, real),
			AlternateMtime:  time.Unix(0, alt),
		}, nil
	default:
		return nil, &herr.StoreIO{Op: "get file_modifications", Err: err}
	}
}

// PutFileModification upserts one file_modifications row.
func PutFileModification(ctx context.Context, tx *sql.Tx, fm FileModification) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO file_modifications (plan_context_path, file_path, real_mtime, alternate_mtime)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(plan_context_path, file_path) DO UPDATE SET real_mtime=excluded.real_mtime, alternate_mtime=excluded.alternate_mtime`,
		fm.PlanContextPath, fm.FilePath, fm.RealMtime.UnixNano(), fm.AlternateMtime.UnixNano())
	if err != nil {
		return &herr.StoreIO{Op: "put file_modifications", Err: err}
	}
	return nil
}

// SetAlternateMtime rewrites only the alternate_mtime column, used by the
// git-sync command after rewriting a file's on-disk mtime.
func SetAlternateMtime(ctx context.Context, tx *sql.Tx, contextPath, filePath string, alt time.Time) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE file_modifications SET alternate_mtime = ? WHERE plan_context_path = ? AND file_path = ?`,
		alt.UnixNano(), contextPath, filePath)
	if err != nil {
		return &herr.StoreIO{Op: "set alternate_mtime", Err: err}
	}
	return nil
}

// PutBuildTime upserts the build_times row for one build identifier.
func PutBuildTime(ctx context.Context, tx *sql.Tx, buildIdent string, duration time.Duration) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO build_times (build_ident, duration_secs) VALUES (?, ?)
		 ON CONFLICT(build_ident) DO UPDATE SET duration_secs=excluded.duration_secs`,
		buildIdent, duration.Seconds())
	if err != nil {
		return &herr.StoreIO{Op: "put build_times", Err: err}
	}
	return nil
}

// GetBuildTime returns the last recorded build duration for buildIdent, or
// zero if none is recorded. Used by the scheduler's duration-aware
// tie-breaker.
func GetBuildTime(ctx context.Context, tx *sql.Tx, buildIdent string) (time.Duration, error) {
	row := tx.QueryRowContext(ctx, `SELECT duration_secs FROM build_times WHERE build_ident = ?`, buildIdent)
	var secs float64
	switch err := row.Scan(&secs); err {
	case sql.ErrNoRows:
		return 0, nil
	case nil:
		return time.Duration(secs * float64(time.Second)), nil
	default:
		return 0, &herr.StoreIO{Op: "get build_times", Err: err}
	}
}

// ArtifactContext is the JSON blob stored in the artifact_contexts table:
// the exact inputs that produced a built artifact.
type ArtifactContext struct {
	Ident        string            `json:"ident"`
	ResolvedDeps map[string]string `json:"resolved_deps"` // dep ident -> digest hex
	EnvDigest    string            `json:"env_digest"`
	BuiltAt      time.Time         `json:"built_at"`
	Outputs      []string          `json:"outputs"`
}

// PutArtifactContext upserts the artifact_contexts row keyed by digest hash.
func PutArtifactContext(ctx context.Context, tx *sql.Tx, hash string, ac ArtifactContext) error {
	blob, err := json.Marshal(ac)
	if err != nil {
		return &herr.StoreIO{Op: "encode artifact_contexts", Err: err}
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO artifact_contexts (hash, context_blob) VALUES (?, ?)
		 ON CONFLICT(hash) DO UPDATE SET context_blob=excluded.context_blob`,
		hash, string(blob))
	if err != nil {
		return &herr.StoreIO{Op: "put artifact_contexts", Err: err}
	}
	return nil
}

// GetArtifactContextByIdent returns the most recent artifact_contexts row
// for a plan identifier, if any, used by the change journal to check for
// ArtifactMissing / DependencyRebuilt.
func GetArtifactContextByIdent(ctx context.Context, tx *sql.Tx, ident string) (hash string, ac *ArtifactContext, err error) {
	rows, err := tx.QueryContext(ctx, `SELECT hash, context_blob FROM artifact_contexts`)
	if err != nil {
		return "", nil, &herr.StoreIO{Op: "scan artifact_contexts", Err: err}
	}
	defer rows.Close()
	var bestHash string
	var best *ArtifactContext
	for rows.Next() {
		var h, blob string
		if err := rows.Scan(&h, &blob); err != nil {
			return "", nil, &herr.StoreIO{Op: "scan artifact_contexts", Err: err}
		}
		var ac ArtifactContext
		if err := json.Unmarshal([]byte(blob), &ac); err != nil {
			continue
		}
		if ac.Ident != ident {
			continue
		}
		if best == nil || ac.BuiltAt.After(best.BuiltAt) {
			bestHash, best = h, &ac
		}
	}
	return bestHash, best, nil
}

// SourceContext is the JSON blob stored in the source_contexts table: the
// exact source state observed at build time.
type SourceContext struct {
	Ident             string `json:"ident"`
	SourceFingerprint string `json:"source_fingerprint"`
	PlanFileFingerprint string `json:"plan_file_fingerprint"`
	LicensingSummary  string `json:"licensing_summary"`
}

// ManualOverrideKind distinguishes an `add`-sourced override (ManuallyAdded,
// always satisfiable) from a `remove`-sourced one (clears a plan's reasons
// unless dependency propagation would reintroduce them).
type ManualOverrideKind string

const (
	OverrideAdd    ManualOverrideKind = "add"
	OverrideRemove ManualOverrideKind = "remove"
)

// manual_overrides is a narrowly-scoped bookkeeping table that makes the
// `add`/`remove` CLI commands persist their effect across invocations the
// way `git-sync` persists its own mtime rewrite.

// PutManualOverride upserts plan_key's override kind.
func PutManualOverride(ctx context.Context, tx *sql.Tx, planKey string, kind ManualOverrideKind) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO manual_overrides (plan_key, kind) VALUES (?, ?)
		 ON CONFLICT(plan_key) DO UPDATE SET kind=excluded.kind`,
		planKey, string(kind))
	if err != nil {
		return &herr.StoreIO{Op: "put manual_overrides", Err: err}
	}
	return nil
}

// DeleteManualOverride removes any override recorded for plan_key.
func DeleteManualOverride(ctx context.Context, tx *sql.Tx, planKey string) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM manual_overrides WHERE plan_key = ?`, planKey)
	if err != nil {
		return &herr.StoreIO{Op: "delete manual_overrides", Err: err}
	}
	return nil
}

// ListManualOverrides returns every recorded override, keyed by plan_key.
func ListManualOverrides(ctx context.Context, tx *sql.Tx) (map[string]ManualOverrideKind, error) {
	rows, err := tx.QueryContext(ctx, `SELECT plan_key, kind FROM manual_overrides`)
	if err != nil {
		return nil, &herr.StoreIO{Op: "list manual_overrides", Err: err}
	}
	defer rows.Close()
	out := make(map[string]ManualOverrideKind)
	for rows.Next() {
		var key, kind string
		if err := rows.Scan(&key, &kind); err != nil {
			return nil, &herr.StoreIO{Op: "scan manual_overrides", Err: err}
		}
		out[key] = ManualOverrideKind(kind)
	}
	return out, rows.Err()
}

// PutSourceContext upserts the source_contexts row keyed by digest hash.
func PutSourceContext(ctx context.Context, tx *sql.Tx, hash string, sc SourceContext) error {
	blob, err := json.Marshal(sc)
	if err != nil {
		return &herr.StoreIO{Op: "encode source_contexts", Err: err}
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO source_contexts (hash, context_blob) VALUES (?, ?)
		 ON CONFLICT(hash) DO UPDATE SET context_blob=excluded.context_blob`,
		hash, string(blob))
	if err != nil {
		return &herr.StoreIO{Op: "put source_contexts", Err: err}
	}
	return nil
}
