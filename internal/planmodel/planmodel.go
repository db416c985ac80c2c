// Copyright 2026 The HAB Authors
// SPDX-License-Identifier: Apache-2.0

// Package planmodel defines the in-memory data model shared by every engine
// component: PlanRecord, DepEdge, and ChangeEntry. Nothing in this package
// performs I/O; it is pure data plus small derivation helpers: one plain
// struct per concept, constructed once per invocation and read thereafter.
package planmodel

import (
	"fmt"

	"github.com/habitat-sh/hab-auto-build/internal/ident"
)

// DepKind distinguishes the three edge kinds a plan's dependency strings may
// resolve to.
type DepKind string

const (
	DepKindRuntime DepKind = "runtime"
	// DepKindBuild also covers scaffolding_dep edges, which order the
	// build exactly like a build dependency.
	DepKindBuild DepKind = "build"
	// DepKindScaffolding is recorded on PlanRecord.ScaffoldingDep for
	// provenance, but graph edges for it are created with DepKindBuild.
	DepKindScaffolding DepKind = "scaffolding"
)

// SourceRef describes where a plan's upstream source comes from, when known.
type SourceRef struct {
	URL     string `json:"url,omitempty"`
	Shasum  string `json:"shasum,omitempty"`
}

// PlanRecord is materialized per invocation from the repository scanner and
// metadata extractor; it is never persisted directly (see internal/store for
// what is persisted about it).
type PlanRecord struct {
	ID                ident.PlanIdentifier
	RepoID            string
	ContextPath       string
	PlanFile          string
	IsNative          bool
	Source            *SourceRef
	Licenses          []string
	Deps              []string // raw, possibly-unresolved identifier strings
	BuildDeps         []string
	ScaffoldingDep    string // empty if none
	SourceFingerprint [32]byte

	// Unusable is set when metadata extraction failed for this plan; it is
	// still a graph node (so dependents see a DanglingDependency rather than
	// disappearing silently) but carries no resolved edges of its own.
	Unusable    bool
	UnusableErr error
}

// String renders the plan's canonical identifier form, origin/name[/version[/release]].
func (p *PlanRecord) String() string { return p.ID.String() }

// Key returns the (origin, name) uniqueness key.
func (p *PlanRecord) Key() string { return fmt.Sprintf("%s/%s", p.ID.Origin, p.ID.Name) }

// DepEdge is one resolved edge of the dependency graph. From is the
// dependency (prerequisite); To is the dependent that names it. Edges thus
// point in build order: From must be built before To.
type DepEdge struct {
	From *PlanRecord
	To   *PlanRecord
	Kind DepKind
}

func (e DepEdge) String() string {
	return fmt.Sprintf("%s -%s-> %s", e.From.String(), e.Kind, e.To.String())
}

// ChangeReasonKind enumerates why a plan is considered dirty.
type ChangeReasonKind string

const (
	ReasonSourceModified    ChangeReasonKind = "SourceModified"
	ReasonDependencyRebuilt ChangeReasonKind = "DependencyRebuilt"
	ReasonManuallyAdded     ChangeReasonKind = "ManuallyAdded"
	ReasonArtifactMissing   ChangeReasonKind = "ArtifactMissing"
	ReasonConfigChanged     ChangeReasonKind = "ConfigChanged"
	// ReasonTimestampMismatch marks a file whose comparator timestamp moved
	// away from the stored baseline while its recorded on-disk mtime still
	// matches: the timestamp sources disagree, but the file itself looks
	// untouched.
	ReasonTimestampMismatch ChangeReasonKind = "TimestampMismatch"
	// ReasonRemoveBlocked records a `remove` override that could not take
	// effect because a dependency is still dirty.
	ReasonRemoveBlocked ChangeReasonKind = "RemoveBlocked"
)

// ChangeReason is one cause contributing to a plan's dirtiness. Explain is a
// human-readable sentence consumed by `changes --explain`.
type ChangeReason struct {
	Kind    ChangeReasonKind
	Paths   []string // populated for SourceModified and TimestampMismatch
	Dep     string   // populated for DependencyRebuilt
	Explain string
}

// ChangeEntry holds every reason a single plan is dirty. No entries means
// clean.
type ChangeEntry struct {
	Plan    *PlanRecord
	Reasons []ChangeReason
}

// Dirty reports whether this entry carries any reason.
func (c *ChangeEntry) Dirty() bool { return len(c.Reasons) > 0 }

// SolelyManuallyAdded reports whether ManuallyAdded is the only reason this
// plan is dirty, used by the remove-refusal check.
func (c *ChangeEntry) SolelyManuallyAdded() bool {
	if len(c.Reasons) == 0 {
		return false
	}
	for _, r := range c.Reasons {
		if r.Kind != ReasonManuallyAdded {
			return false
		}
	}
	return true
}
