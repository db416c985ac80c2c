// Copyright 2026 The HAB Authors
// SPDX-License-Identifier: Apache-2.0

package extract

import (
	"context"
	"testing"
)

type fakeRunner struct {
	stdout, stderr []byte
	err            error
	gotArgs        []string
	gotEnv         []string
}

func (f *fakeRunner) Run(ctx context.Context, dir string, env []string, name string, args ...string) ([]byte, []byte, error) {
	f.gotArgs = append([]string{name}, args...)
	f.gotEnv = env
	return f.stdout, f.stderr, f.err
}

func TestExtractParsesSchema(t *testing.T) {
	fr := &fakeRunner{stdout: []byte(`{"origin":"core","name":"zlib","version":"1.3","licenses":["Zlib"],"scaffolding_dep":null,"deps":["core/glibc"],"build_deps":["core/make"]}`)}
	e := &Extractor{Runner: fr}
	result, err := e.Extract(context.Background(), HelperSet{ShellScript: "testdata/helper.sh"}, "plan.sh", "/src", "/repo", t.TempDir())
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if result.Origin != "core" || result.Name != "zlib" || result.Version != "1.3" {
		t.Errorf("unexpected result: %+v", result)
	}
	if len(result.Deps) != 1 || result.Deps[0] != "core/glibc" {
		t.Errorf("unexpected deps: %+v", result.Deps)
	}
	if fr.gotArgs[0] != "sh" {
		t.Errorf("expected sh interpreter, got %q", fr.gotArgs[0])
	}
	if len(fr.gotEnv) != 1 {
		t.Errorf("expected scrubbed env with only PATH, got %v", fr.gotEnv)
	}
}

func TestExtractSelectsPowerShellByExtension(t *testing.T) {
	fr := &fakeRunner{stdout: []byte(`{"origin":"core","name":"zlib","version":"1.3","licenses":[],"scaffolding_dep":null,"deps":[],"build_deps":[]}`)}
	e := &Extractor{Runner: fr}
	_, err := e.Extract(context.Background(), HelperSet{PS1Script: "testdata/helper.ps1"}, "plan.ps1", "/src", "/repo", t.TempDir())
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if fr.gotArgs[0] != "pwsh" {
		t.Errorf("expected pwsh interpreter, got %q", fr.gotArgs[0])
	}
}

func TestExtractFailsOnNonZeroExit(t *testing.T) {
	fr := &fakeRunner{stderr: []byte("boom"), err: errExitCode{}}
	e := &Extractor{Runner: fr}
	_, err := e.Extract(context.Background(), HelperSet{ShellScript: "testdata/helper.sh"}, "plan.sh", "/src", "/repo", t.TempDir())
	if err == nil {
		t.Fatal("expected an error")
	}
}

func TestExtractFailsOnMalformedJSON(t *testing.T) {
	fr := &fakeRunner{stdout: []byte("not json")}
	e := &Extractor{Runner: fr}
	_, err := e.Extract(context.Background(), HelperSet{ShellScript: "testdata/helper.sh"}, "plan.sh", "/src", "/repo", t.TempDir())
	if err == nil {
		t.Fatal("expected a malformed-output error")
	}
}

type errExitCode struct{}

func (errExitCode) Error() string { return "exit status 1" }
