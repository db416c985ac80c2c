// Copyright 2026 The HAB Authors
// SPDX-License-Identifier: Apache-2.0

package rules

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/habitat-sh/hab-auto-build/internal/planmodel"
)

// knownSourceSchemes lists the URL schemes `unknown-source-scheme` accepts
// without a finding.
var knownSourceSchemes = map[string]bool{
	"http": true, "https": true, "git": true, "git+https": true, "file": true,
}

// suspiciousPatchMarkers flags patch content unlikely to be a legitimate
// source patch: binary diff markers and inline shell that deletes files.
var suspiciousPatchMarkers = []string{"GIT binary patch", "rm -rf /", "curl ", "wget "}

// CheckSource runs every pre-build check against p, gating each finding's
// severity through cfg (a
// plan's parsed .hab-plan-config.toml, or nil) and the plan's current
// source fingerprint (for override voiding).
func (e *Engine) CheckSource(p *planmodel.PlanRecord, cfg *PlanConfig, currentFingerprint string) []Finding {
	var findings []Finding

	if lvl := effectiveLevel("missing-license", cfg, currentFingerprint); lvl != SeverityOff {
		if len(p.Licenses) == 0 {
			findings = append(findings, Finding{Rule: "missing-license", Severity: lvl, Message: fmt.Sprintf("%s declares no licenses", p)})
		}
	}

	if lvl := effectiveLevel("license-not-found", cfg, currentFingerprint); lvl != SeverityOff {
		for _, l := range p.Licenses {
			if isSPDXID(l) {
				continue
			}
			// l is a custom license string, not a recognized SPDX id;
			// compare against the corpus to see if it is a near-verbatim
			// copy of a known license under a nonstandard name.
			id, score := e.MatchLicense(l)
			if score < licenseSimilarityThreshold {
				findings = append(findings, Finding{
					Rule:     "license-not-found",
					Severity: lvl,
					Message:  fmt.Sprintf("%s: license %q does not match any known corpus entry (closest %s, score %.2f)", p, l, id, score),
				})
			}
		}
	}

	if lvl := effectiveLevel("unknown-source-scheme", cfg, currentFingerprint); lvl != SeverityOff {
		if p.Source != nil && p.Source.URL != "" {
			scheme := urlScheme(p.Source.URL)
			if !knownSourceSchemes[scheme] {
				findings = append(findings, Finding{Rule: "unknown-source-scheme", Severity: lvl, Message: fmt.Sprintf("%s: unrecognized source scheme %q", p, scheme)})
			}
		}
	}

	if lvl := effectiveLevel("suspicious-patch", cfg, currentFingerprint); lvl != SeverityOff {
		findings = append(findings, checkSuspiciousPatches(p, lvl)...)
	}

	return findings
}

// isSPDXID reports whether l looks like a recognized SPDX license
// identifier rather than free text requiring corpus matching. The
// recognized ids are the fixed list below, which is wider than the set of
// license texts in the embedded corpus.
func isSPDXID(l string) bool {
	switch l {
	case "MIT", "ISC", "0BSD", "BSD-3-Clause", "BSD-2-Clause", "Apache-2.0",
		"GPL-2.0", "GPL-3.0", "LGPL-2.1", "LGPL-3.0", "MPL-2.0", "Unlicense":
		return true
	}
	return false
}

func urlScheme(u string) string {
	i := strings.Index(u, "://")
	if i < 0 {
		return ""
	}
	return u[:i]
}

// checkSuspiciousPatches scans the plan context for *.patch/*.diff files
// containing one of suspiciousPatchMarkers.
func checkSuspiciousPatches(p *planmodel.PlanRecord, lvl Severity) []Finding {
	var findings []Finding
	_ = filepath.WalkDir(p.ContextPath, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		ext := filepath.Ext(path)
		if ext != ".patch" && ext != ".diff" {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil
		}
		for _, marker := range suspiciousPatchMarkers {
			if strings.Contains(string(data), marker) {
				findings = append(findings, Finding{
					Rule:     "suspicious-patch",
					Severity: lvl,
					Message:  fmt.Sprintf("%s: patch %s contains suspicious content %q", p, filepath.Base(path), marker),
				})
				break
			}
		}
		return nil
	})
	return findings
}
