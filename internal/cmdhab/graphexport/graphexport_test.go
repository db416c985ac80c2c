// Copyright 2026 The HAB Authors
// SPDX-License-Identifier: Apache-2.0

package graphexport

import (
	"bytes"
	"strings"
	"testing"

	"github.com/habitat-sh/hab-auto-build/internal/graph"
	"github.com/habitat-sh/hab-auto-build/internal/ident"
	"github.com/habitat-sh/hab-auto-build/internal/planmodel"
)

func rec(t *testing.T, idStr string, deps ...string) *planmodel.PlanRecord {
	t.Helper()
	id, err := ident.Parse(idStr)
	if err != nil {
		t.Fatalf("ident.Parse(%q): %v", idStr, err)
	}
	return &planmodel.PlanRecord{ID: id, Deps: deps}
}

func TestExportConfigValidate(t *testing.T) {
	cases := []struct {
		format  string
		wantErr bool
	}{
		{"json", false},
		{"dot", false},
		{"svg", true},
	}
	for _, c := range cases {
		cfg := ExportConfig{Format: c.format}
		err := cfg.Validate()
		if (err != nil) != c.wantErr {
			t.Errorf("Format=%q: err=%v, wantErr=%v", c.format, err, c.wantErr)
		}
	}
}

func TestWriteDotIncludesEdgesAndFeedback(t *testing.T) {
	b := rec(t, "core/b", "core/c")
	c := rec(t, "core/c")
	// x and y depend on each other, so TopoOrder records one feedback edge.
	x := rec(t, "core/x", "core/y")
	y := rec(t, "core/y", "core/x")
	g := graph.Build([]*planmodel.PlanRecord{b, c, x, y})
	g.TopoOrder()

	var buf bytes.Buffer
	writeDot(&buf, g)
	out := buf.String()
	if !strings.Contains(out, "digraph hab {") {
		t.Fatalf("expected dot header, got %q", out)
	}
	if !strings.Contains(out, `"core/c" -> "core/b"`) {
		t.Fatalf("expected dependency edge core/c -> core/b, got %q", out)
	}
	if !strings.Contains(out, `"core/y" -> "core/x" [label="feedback:runtime"`) {
		t.Fatalf("expected feedback edge core/y -> core/x, got %q", out)
	}
}
