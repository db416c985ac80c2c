// Copyright 2026 The HAB Authors
// SPDX-License-Identifier: Apache-2.0

package common

import (
	"testing"

	"github.com/habitat-sh/hab-auto-build/internal/cmdhab/engine"
)

func TestFlagsValidate(t *testing.T) {
	cases := []struct {
		mtime   string
		wantErr bool
	}{
		{"", false},
		{"fs", false},
		{"git", false},
		{"svn", true},
	}
	for _, c := range cases {
		f := Flags{Mtime: c.mtime}
		err := f.Validate()
		if (err != nil) != c.wantErr {
			t.Errorf("Mtime=%q: err=%v, wantErr=%v", c.mtime, err, c.wantErr)
		}
	}
}

func TestFlagsOptions(t *testing.T) {
	f := Flags{ConfigPath: "hab-auto-build.json", StatePath: "state.db", Mtime: "git"}
	opts := f.Options()
	if opts.ConfigPath != f.ConfigPath || opts.StatePath != f.StatePath {
		t.Fatalf("unexpected options: %+v", opts)
	}
	if opts.Mtime != engine.MtimeGit {
		t.Fatalf("expected git mtime mode, got %v", opts.Mtime)
	}
}
