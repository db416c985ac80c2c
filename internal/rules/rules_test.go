// Copyright 2026 The HAB Authors
// SPDX-License-Identifier: Apache-2.0

package rules

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/habitat-sh/hab-auto-build/internal/ident"
	"github.com/habitat-sh/hab-auto-build/internal/planmodel"
)

func TestGate(t *testing.T) {
	tests := []struct {
		name     string
		level    CheckLevel
		findings []Finding
		wantFail bool
	}{
		{"strict/error", LevelStrict, []Finding{{Severity: SeverityError}}, true},
		{"strict/warning", LevelStrict, []Finding{{Severity: SeverityWarning}}, true},
		{"allow-warnings/error", LevelAllowWarnings, []Finding{{Severity: SeverityError}}, true},
		{"allow-warnings/warning", LevelAllowWarnings, []Finding{{Severity: SeverityWarning}}, false},
		{"allow-all/error", LevelAllowAll, []Finding{{Severity: SeverityError}}, false},
		{"off severity never fails", LevelStrict, []Finding{{Severity: SeverityOff}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Gate("plan", tt.findings, tt.level)
			if (err != nil) != tt.wantFail {
				t.Errorf("Gate() = %v, wantFail %v", err, tt.wantFail)
			}
		})
	}
}

func TestCheckSource_MissingLicense(t *testing.T) {
	e := New()
	dir := t.TempDir()
	p := &planmodel.PlanRecord{ID: ident.PlanIdentifier{Origin: "core", Name: "foo"}, ContextPath: dir}
	findings := e.CheckSource(p, nil, "")
	found := false
	for _, f := range findings {
		if f.Rule == "missing-license" {
			found = true
		}
	}
	if !found {
		t.Error("expected missing-license finding")
	}
}

func TestCheckSource_KnownSPDXLicenseSkipsCorpusCheck(t *testing.T) {
	e := New()
	dir := t.TempDir()
	p := &planmodel.PlanRecord{
		ID:          ident.PlanIdentifier{Origin: "core", Name: "foo"},
		ContextPath: dir,
		Licenses:    []string{"MIT"},
	}
	findings := e.CheckSource(p, nil, "")
	for _, f := range findings {
		if f.Rule == "license-not-found" {
			t.Errorf("unexpected license-not-found finding for recognized SPDX id: %+v", f)
		}
	}
}

func TestMatchLicense_ExactCorpusText(t *testing.T) {
	e := New()
	data, err := os.ReadFile(filepath.Join("licenses", "MIT.txt"))
	if err != nil {
		t.Fatal(err)
	}
	id, score := e.MatchLicense(string(data))
	if id != "MIT" {
		t.Errorf("MatchLicense = %q, want MIT", id)
	}
	if score < licenseSimilarityThreshold {
		t.Errorf("score = %v, want >= %v", score, licenseSimilarityThreshold)
	}
}

func TestCheckSource_UnknownSourceScheme(t *testing.T) {
	e := New()
	dir := t.TempDir()
	p := &planmodel.PlanRecord{
		ID:          ident.PlanIdentifier{Origin: "core", Name: "foo"},
		ContextPath: dir,
		Licenses:    []string{"MIT"},
		Source:      &planmodel.SourceRef{URL: "ftp://example.com/foo.tar.gz"},
	}
	findings := e.CheckSource(p, nil, "")
	found := false
	for _, f := range findings {
		if f.Rule == "unknown-source-scheme" {
			found = true
		}
	}
	if !found {
		t.Error("expected unknown-source-scheme finding for ftp:// source")
	}
}

func TestCheckArtifact_EmptyPackage(t *testing.T) {
	e := New()
	dir := t.TempDir()
	p := &planmodel.PlanRecord{ID: ident.PlanIdentifier{Origin: "core", Name: "foo"}}
	findings, err := e.CheckArtifact(p, dir, nil, "", nil)
	if err != nil {
		t.Fatal(err)
	}
	found := false
	for _, f := range findings {
		if f.Rule == "empty-package" {
			found = true
		}
	}
	if !found {
		t.Error("expected empty-package finding for empty output dir")
	}
}

func TestCheckArtifact_UnusedDependency(t *testing.T) {
	e := New()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "readme.txt"), []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}
	p := &planmodel.PlanRecord{
		ID:   ident.PlanIdentifier{Origin: "core", Name: "foo"},
		Deps: []string{"core/bar"},
	}
	findings, err := e.CheckArtifact(p, dir, nil, "", nil)
	if err != nil {
		t.Fatal(err)
	}
	found := false
	for _, f := range findings {
		if f.Rule == "unused-dependency" {
			found = true
		}
	}
	if !found {
		t.Error("expected unused-dependency finding: core/bar is declared but nothing references it")
	}
}

func TestLoadPlanConfig_RejectsUnknownKeys(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".hab-plan-config.toml")
	if err := os.WriteFile(path, []byte("[rules]\nmissing-license = { level = \"off\", bogus-key = 1 }\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadPlanConfig(path); err == nil {
		t.Error("LoadPlanConfig with unknown key = nil error, want RuleConfigInvalid")
	}
}

func TestLoadPlanConfig_OverrideVoidedBySourceChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".hab-plan-config.toml")
	if err := os.WriteFile(path, []byte("[rules]\nmissing-license = { level = \"off\", source-shasum = \"abc123\" }\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadPlanConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if lvl := effectiveLevel("missing-license", cfg, "abc123"); lvl != SeverityOff {
		t.Errorf("effectiveLevel with matching shasum = %v, want off", lvl)
	}
	if lvl := effectiveLevel("missing-license", cfg, "different"); lvl != SeverityError {
		t.Errorf("effectiveLevel with voided override = %v, want error (default)", lvl)
	}
}

func TestLoadPlanConfig_Missing(t *testing.T) {
	cfg, err := LoadPlanConfig(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg != nil {
		t.Error("LoadPlanConfig for missing file = non-nil, want nil")
	}
}
