// Copyright 2026 The HAB Authors
// SPDX-License-Identifier: Apache-2.0

// Package ident implements identity and fingerprint primitives:
// PlanIdentifier parsing/normalization and the BLAKE3-based source and
// artifact fingerprints. PlanIdentifier is one small value type constructed
// by a single entry point, with a canonical-encoding
// approach to content hashing.
package ident

import (
	"strings"

	"github.com/habitat-sh/hab-auto-build/internal/herr"
)

// Dynamic is the version sentinel meaning "computed at build time". Graph
// dependency resolution treats it as a wildcard matching any concrete
// version of the same (origin, name).
const Dynamic = "**DYNAMIC**"

// PlanIdentifier is the tuple (origin, name, version, release, target).
// Target is populated only where a repo scan or CLI selection pins a host
// target; it is not part of the canonical string form.
type PlanIdentifier struct {
	Origin  string
	Name    string
	Version string
	Release string
	Target  string
}

// String renders the canonical form origin/name[/version[/release]].
func (p PlanIdentifier) String() string {
	var b strings.Builder
	b.WriteString(p.Origin)
	b.WriteByte('/')
	b.WriteString(p.Name)
	if p.Version != "" {
		b.WriteByte('/')
		b.WriteString(p.Version)
		if p.Release != "" {
			b.WriteByte('/')
			b.WriteString(p.Release)
		}
	}
	return b.String()
}

// Key returns the (origin, name) uniqueness key; it must be unique across
// all discovered plans.
func (p PlanIdentifier) Key() string { return p.Origin + "/" + p.Name }

// IsDynamic reports whether this identifier carries the **DYNAMIC** version
// sentinel.
func (p PlanIdentifier) IsDynamic() bool { return p.Version == Dynamic }

// Matches reports whether p satisfies a dependency reference other, honoring
// the Dynamic wildcard: a Dynamic version on either side matches any
// concrete version of the same (origin, name).
func (p PlanIdentifier) Matches(other PlanIdentifier) bool {
	if p.Origin != other.Origin || p.Name != other.Name {
		return false
	}
	if p.Version == "" || other.Version == "" {
		return true
	}
	if p.IsDynamic() || other.IsDynamic() {
		return true
	}
	if p.Version != other.Version {
		return false
	}
	if p.Release == "" || other.Release == "" {
		return true
	}
	return p.Release == other.Release
}

// Parse parses a raw origin/name[/version[/release]] string into a
// PlanIdentifier, rejecting malformed forms with *herr.InvalidIdent.
func Parse(raw string) (PlanIdentifier, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return PlanIdentifier{}, &herr.InvalidIdent{Raw: raw}
	}
	parts := strings.Split(trimmed, "/")
	if len(parts) < 2 || len(parts) > 4 {
		return PlanIdentifier{}, &herr.InvalidIdent{Raw: raw}
	}
	for _, p := range parts {
		if p == "" {
			return PlanIdentifier{}, &herr.InvalidIdent{Raw: raw}
		}
	}
	id := PlanIdentifier{Origin: parts[0], Name: parts[1]}
	if len(parts) >= 3 {
		id.Version = parts[2]
	}
	if len(parts) == 4 {
		id.Release = parts[3]
	}
	return id, nil
}

// Normalize is an alias of Parse.
func Normalize(raw string) (PlanIdentifier, error) { return Parse(raw) }
