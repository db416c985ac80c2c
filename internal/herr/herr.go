// Copyright 2026 The HAB Authors
// SPDX-License-Identifier: Apache-2.0

// Package herr defines the typed error kinds shared across HAB's engine
// packages. Per-plan failures are attached to the plan they concern and never
// abort sibling plans; cross-cutting failures (config, store schema) abort at
// startup. Callers distinguish kinds with errors.As, not string matching.
package herr

import "fmt"

// ConfigParse indicates hab-auto-build.json or .hab-plan-config.toml could
// not be parsed.
type ConfigParse struct {
	Path string
	Err  error
}

func (e *ConfigParse) Error() string {
	return fmt.Sprintf("parsing config %s: %v", e.Path, e.Err)
}

func (e *ConfigParse) Unwrap() error { return e.Err }

// DuplicateRepoId indicates two repos in the configuration share an id.
type DuplicateRepoId struct {
	Id string
}

func (e *DuplicateRepoId) Error() string {
	return fmt.Sprintf("duplicate repo id %q", e.Id)
}

// MissingRepoSource indicates a configured repo's source path does not exist.
type MissingRepoSource struct {
	Id     string
	Source string
}

func (e *MissingRepoSource) Error() string {
	return fmt.Sprintf("repo %q: source %q does not exist", e.Id, e.Source)
}

// DuplicatePlanIdentity indicates two discovered plans resolved to the same
// (origin, name) across one or more repos.
type DuplicatePlanIdentity struct {
	Origin, Name string
	First, Second string // context paths
}

func (e *DuplicatePlanIdentity) Error() string {
	return fmt.Sprintf("duplicate plan identity %s/%s: %s and %s", e.Origin, e.Name, e.First, e.Second)
}

// ExtractorFailed indicates a helper script exited non-zero for a plan.
// Fatal for the affected plan only.
type ExtractorFailed struct {
	PlanFile string
	Stderr   string
	Err      error
}

func (e *ExtractorFailed) Error() string {
	return fmt.Sprintf("extractor failed for %s: %v\nstderr: %s", e.PlanFile, e.Err, e.Stderr)
}

func (e *ExtractorFailed) Unwrap() error { return e.Err }

// MalformedHelperOutput indicates a helper script's stdout did not parse as
// the documented JSON schema.
type MalformedHelperOutput struct {
	PlanFile string
	Err      error
}

func (e *MalformedHelperOutput) Error() string {
	return fmt.Sprintf("malformed helper output for %s: %v", e.PlanFile, e.Err)
}

func (e *MalformedHelperOutput) Unwrap() error { return e.Err }

// InvalidIdent indicates a plan identifier string did not match
// origin/name[/version[/release]].
type InvalidIdent struct {
	Raw string
}

func (e *InvalidIdent) Error() string {
	return fmt.Sprintf("invalid plan identifier %q", e.Raw)
}

// DanglingDependency is a non-fatal warning: a dep string did not resolve to
// any discovered plan.
type DanglingDependency struct {
	From, Unresolved string
}

func (e *DanglingDependency) Error() string {
	return fmt.Sprintf("%s: dangling dependency %q", e.From, e.Unresolved)
}

// CycleDetected is a non-fatal warning carrying the feedback-edge set chosen
// to linearize the graph.
type CycleDetected struct {
	FeedbackEdges []string // "from -> to" for each removed edge
}

func (e *CycleDetected) Error() string {
	return fmt.Sprintf("cycle detected; %d feedback edge(s) removed", len(e.FeedbackEdges))
}

// UnknownSchemaVersion is fatal: the store file is newer than this binary
// understands.
type UnknownSchemaVersion struct {
	Found, Known int
}

func (e *UnknownSchemaVersion) Error() string {
	return fmt.Sprintf("store schema version %d is newer than supported version %d", e.Found, e.Known)
}

// StoreIO wraps an underlying database/sql error encountered by internal/store.
type StoreIO struct {
	Op  string
	Err error
}

func (e *StoreIO) Error() string { return fmt.Sprintf("store %s: %v", e.Op, e.Err) }

func (e *StoreIO) Unwrap() error { return e.Err }

// BuildFailed indicates a plan's build subprocess exited non-zero or a
// fatal-severity rule finding was raised against its artifact.
type BuildFailed struct {
	Plan   string
	Reason string
}

func (e *BuildFailed) Error() string { return fmt.Sprintf("%s: build failed: %s", e.Plan, e.Reason) }

// Skipped indicates a plan was not attempted because an upstream dependency
// failed.
type Skipped struct {
	Plan     string
	Upstream string
}

func (e *Skipped) Error() string {
	return fmt.Sprintf("%s: skipped, upstream %s failed", e.Plan, e.Upstream)
}

// Cancelled indicates a plan's build was interrupted by cancellation before
// it completed.
type Cancelled struct {
	Plan string
}

func (e *Cancelled) Error() string { return fmt.Sprintf("%s: cancelled", e.Plan) }

// RuleViolation indicates a rule engine check failed at a severity that the
// active check-level gate treats as fatal.
type RuleViolation struct {
	Plan, Rule, Level, Message string
}

func (e *RuleViolation) Error() string {
	return fmt.Sprintf("%s: rule %q (%s): %s", e.Plan, e.Rule, e.Level, e.Message)
}

// RuleConfigInvalid indicates a .hab-plan-config.toml contained an unknown
// key or malformed value.
type RuleConfigInvalid struct {
	Path string
	Err  error
}

func (e *RuleConfigInvalid) Error() string {
	return fmt.Sprintf("invalid rule config %s: %v", e.Path, e.Err)
}

func (e *RuleConfigInvalid) Unwrap() error { return e.Err }

// CannotRemoveDirty indicates a `remove` request was refused because one or
// more plans the target depends on are still dirty.
type CannotRemoveDirty struct {
	Plan         string
	BlockerDeps  []string
}

func (e *CannotRemoveDirty) Error() string {
	return fmt.Sprintf("cannot remove %s: blocked by %v", e.Plan, e.BlockerDeps)
}
