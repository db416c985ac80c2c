// Copyright 2026 The HAB Authors
// SPDX-License-Identifier: Apache-2.0

// Package rules implements the rule engine: configurable source and
// artifact checks, each carrying a default severity that a per-plan
// .hab-plan-config.toml may override, gated by the invocation's check_level.
// The SPDX corpus used for license matching is embedded, so no network fetch
// happens at runtime.
package rules

import (
	"fmt"

	"github.com/habitat-sh/hab-auto-build/internal/herr"
)

// Severity is a check's outcome classification.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityOff     Severity = "off"
)

// CheckLevel is the CLI's `-l/--check-level` gate.
type CheckLevel string

const (
	LevelStrict        CheckLevel = "strict"
	LevelAllowWarnings CheckLevel = "allow-warnings"
	LevelAllowAll      CheckLevel = "allow-all"
)

// Finding is one rule's verdict against a plan's source or artifact.
type Finding struct {
	Rule     string
	Severity Severity
	Message  string
}

// defaultLevels gives every check its default severity.
var defaultLevels = map[string]Severity{
	"missing-license":            SeverityError,
	"license-not-found":          SeverityWarning,
	"unknown-source-scheme":      SeverityWarning,
	"suspicious-patch":           SeverityWarning,
	"unused-dependency":          SeverityWarning,
	"missing-runtime-dependency": SeverityError,
	"broken-elf":                 SeverityError,
	"empty-package":              SeverityError,
}

// Engine runs every check in the catalog against one plan.
type Engine struct {
	corpus licenseCorpus
}

// New constructs an Engine with the embedded SPDX license corpus loaded.
func New() *Engine {
	return &Engine{corpus: loadCorpus()}
}

// effectiveLevel resolves a check's severity: the per-plan override applies
// unless its source-shasum no longer matches currentFingerprint, in which
// case it is void and the default applies.
func effectiveLevel(rule string, cfg *PlanConfig, currentFingerprint string) Severity {
	def := defaultLevels[rule]
	if cfg == nil {
		return def
	}
	override, ok := cfg.Rules[rule]
	if !ok {
		return def
	}
	if override.SourceShasum != "" && override.SourceShasum != currentFingerprint {
		// Voided: the source has moved since the override was written.
		return def
	}
	switch override.Level {
	case "error":
		return SeverityError
	case "warning":
		return SeverityWarning
	case "off":
		return SeverityOff
	default:
		return def
	}
}

// Gate applies the check_level gate to a set of findings, returning the
// first fatal one as a *herr.RuleViolation, or nil
// if the build may proceed.
func Gate(plan string, findings []Finding, level CheckLevel) error {
	for _, f := range findings {
		if f.Severity == SeverityOff {
			continue
		}
		fatal := false
		switch level {
		case LevelStrict:
			fatal = f.Severity == SeverityError || f.Severity == SeverityWarning
		case LevelAllowWarnings:
			fatal = f.Severity == SeverityError
		case LevelAllowAll:
			fatal = false
		default:
			return fmt.Errorf("unknown check level %q", level)
		}
		if fatal {
			return &herr.RuleViolation{Plan: plan, Rule: f.Rule, Level: string(f.Severity), Message: f.Message}
		}
	}
	return nil
}
