// Copyright 2026 The HAB Authors
// SPDX-License-Identifier: Apache-2.0

package scan

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/habitat-sh/hab-auto-build/internal/habconfig"
)

func mkPlan(t *testing.T, root, rel string) {
	t.Helper()
	full := filepath.Join(root, rel)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(full, []byte("pkg_name=x\n"), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestScanFindsPlans(t *testing.T) {
	root := t.TempDir()
	mkPlan(t, root, "core/glibc/plan.sh")
	mkPlan(t, root, "core/tools/native-thing/plan.sh")
	mkPlan(t, root, "core/skip-me/plan.sh")
	mkPlan(t, root, "core/habitat-style/habitat/plan.sh")

	repo := habconfig.RepoConfig{
		ID:              "core",
		Source:          root,
		NativePackages:  []string{"core/tools/**"},
		IgnoredPackages: []string{"core/skip-me/**"},
	}
	found, err := Scan([]habconfig.RepoConfig{repo})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(found) != 3 {
		t.Fatalf("expected 3 plans (1 skipped), got %d: %+v", len(found), found)
	}
	var sawNative, sawHabitatStyle bool
	for _, f := range found {
		if f.IsNative {
			sawNative = true
		}
		if filepath.Base(f.PlanFile) == "plan.sh" && filepath.Base(filepath.Dir(f.PlanFile)) == "habitat" {
			sawHabitatStyle = true
		}
	}
	if !sawNative {
		t.Errorf("expected at least one native plan")
	}
	if !sawHabitatStyle {
		t.Errorf("expected the habitat/plan.sh style file to be recognized")
	}
}

func TestScanHonorsGitignore(t *testing.T) {
	root := t.TempDir()
	mkPlan(t, root, "core/kept/plan.sh")
	mkPlan(t, root, "core/vendor/plan.sh")
	if err := os.WriteFile(filepath.Join(root, ".gitignore"), []byte("core/vendor/\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	found, err := Scan([]habconfig.RepoConfig{{ID: "core", Source: root}})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(found) != 1 {
		t.Fatalf("expected gitignore to exclude vendor/, got %d plans: %+v", len(found), found)
	}
}

func TestCheckDuplicateIdentity(t *testing.T) {
	err := CheckDuplicateIdentity([]string{"core", "core"}, []string{"glibc", "glibc"}, []string{"/a", "/b"})
	if err == nil {
		t.Fatalf("expected duplicate identity error")
	}
	if err2 := CheckDuplicateIdentity([]string{"core", "core"}, []string{"glibc", "zlib"}, []string{"/a", "/b"}); err2 != nil {
		t.Errorf("unexpected error for distinct names: %v", err2)
	}
}
