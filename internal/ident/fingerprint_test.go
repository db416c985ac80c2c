// Copyright 2026 The HAB Authors
// SPDX-License-Identifier: Apache-2.0

package ident

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTestContext(t *testing.T, dir string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, "plan.sh"), []byte("pkg_name=foo\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(dir, "patches"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "patches", "fix.patch"), []byte("--- a\n+++ b\n"), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestSourceFingerprintDeterministic(t *testing.T) {
	dirA := t.TempDir()
	dirB := t.TempDir()
	writeTestContext(t, dirA)
	writeTestContext(t, dirB)

	digestA, err := SourceFingerprint(dirA)
	if err != nil {
		t.Fatalf("SourceFingerprint(dirA): %v", err)
	}
	digestB, err := SourceFingerprint(dirB)
	if err != nil {
		t.Fatalf("SourceFingerprint(dirB): %v", err)
	}
	if digestA != digestB {
		t.Errorf("identical contexts produced different fingerprints: %s vs %s", digestA, digestB)
	}
}

func TestSourceFingerprintChangesWithContent(t *testing.T) {
	dir := t.TempDir()
	writeTestContext(t, dir)
	before, err := SourceFingerprint(dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "plan.sh"), []byte("pkg_name=bar\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	after, err := SourceFingerprint(dir)
	if err != nil {
		t.Fatal(err)
	}
	if before == after {
		t.Errorf("modifying file content should change the fingerprint")
	}
}

func TestSourceFingerprintHonorsGitignore(t *testing.T) {
	dir := t.TempDir()
	writeTestContext(t, dir)
	base, err := SourceFingerprint(dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, ".gitignore"), []byte("ignored.txt\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "ignored.txt"), []byte("scratch"), 0o644); err != nil {
		t.Fatal(err)
	}
	withIgnoredFile, err := SourceFingerprint(dir)
	if err != nil {
		t.Fatal(err)
	}
	if base == withIgnoredFile {
		t.Errorf("adding a tracked .gitignore file should change the fingerprint")
	}
	// Un-ignoring the file makes it tracked; the digest must change again,
	// proving ignored.txt's content was excluded from withIgnoredFile above.
	if err := os.WriteFile(filepath.Join(dir, ".gitignore"), []byte(""), 0o644); err != nil {
		t.Fatal(err)
	}
	withoutIgnore, err := SourceFingerprint(dir)
	if err != nil {
		t.Fatal(err)
	}
	if withIgnoredFile == withoutIgnore {
		t.Errorf("un-ignoring a file should change the fingerprint once it becomes tracked")
	}
}

func TestArtifactFingerprintDeterministic(t *testing.T) {
	env := EnvDigest(map[string]string{"HAB_TARGET": "x86_64-linux"})
	deps := []ResolvedDep{
		{Ident: "core/zlib/1.3", Digest: Digest{1, 2, 3}},
		{Ident: "core/openssl/3.2", Digest: Digest{4, 5, 6}},
	}
	d1, err := ArtifactFingerprint("core/curl/8.0", deps, env)
	if err != nil {
		t.Fatal(err)
	}
	// Reverse dep order must not affect the result (sorted internally).
	reversed := []ResolvedDep{deps[1], deps[0]}
	d2, err := ArtifactFingerprint("core/curl/8.0", reversed, env)
	if err != nil {
		t.Fatal(err)
	}
	if d1 != d2 {
		t.Errorf("ArtifactFingerprint must be independent of resolvedDeps order")
	}
}

func TestArtifactFingerprintSensitiveToEnv(t *testing.T) {
	deps := []ResolvedDep{{Ident: "core/zlib/1.3", Digest: Digest{1}}}
	d1, err := ArtifactFingerprint("core/curl/8.0", deps, EnvDigest(map[string]string{"A": "1"}))
	if err != nil {
		t.Fatal(err)
	}
	d2, err := ArtifactFingerprint("core/curl/8.0", deps, EnvDigest(map[string]string{"A": "2"}))
	if err != nil {
		t.Fatal(err)
	}
	if d1 == d2 {
		t.Errorf("different environment digests must produce different artifact fingerprints")
	}
}
