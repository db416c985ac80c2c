// Copyright 2026 The HAB Authors
// SPDX-License-Identifier: Apache-2.0

package graph

import (
	"testing"

	"github.com/google/go-cmp/cmp"
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

// TestLinearRebuildOrder: A depends on B depends on C. The build order must
// be C, B, A (every edge a -> b has a preceding b).
func TestLinearRebuildOrder(t *testing.T) {
	c := rec(t, "core/c")
	b := rec(t, "core/b", "core/c")
	a := rec(t, "core/a", "core/b")
	g := Build([]*planmodel.PlanRecord{a, b, c})
	if len(g.Dangling) != 0 {
		t.Fatalf("unexpected dangling deps: %v", g.Dangling)
	}
	order := g.TopoOrder()
	var got []string
	for _, i := range order {
		got = append(got, g.Record(i).Key())
	}
	want := []string{"core/c", "core/b", "core/a"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("order mismatch (-want +got):\n%s", diff)
	}
}

// TestReverseClosureFindsDependents: reverse_closure(seed) is exactly the
// set of plans transitively depending on seed.
func TestReverseClosureFindsDependents(t *testing.T) {
	c := rec(t, "core/c")
	b := rec(t, "core/b", "core/c")
	a := rec(t, "core/a", "core/b")
	unrelated := rec(t, "core/unrelated")
	g := Build([]*planmodel.PlanRecord{a, b, c, unrelated})
	cIdx, _ := g.IndexOf("core/c")
	closure := g.ReverseClosure([]int{cIdx})
	got := map[string]bool{}
	for _, i := range Indices(closure) {
		got[g.Record(i).Key()] = true
	}
	if !got["core/a"] || !got["core/b"] {
		t.Fatalf("expected core/a and core/b in reverse closure of core/c, got %v", got)
	}
	if got["core/unrelated"] || got["core/c"] {
		t.Fatalf("reverse closure should exclude the seed and unrelated plans, got %v", got)
	}
}

// TestForwardClosureFindsDependencies exercises the forward_closure half: the
// transitive set of plans a seed depends on.
func TestForwardClosureFindsDependencies(t *testing.T) {
	c := rec(t, "core/c")
	b := rec(t, "core/b", "core/c")
	a := rec(t, "core/a", "core/b")
	g := Build([]*planmodel.PlanRecord{a, b, c})
	aIdx, _ := g.IndexOf("core/a")
	closure := g.ForwardClosure([]int{aIdx})
	got := map[string]bool{}
	for _, i := range Indices(closure) {
		got[g.Record(i).Key()] = true
	}
	if !got["core/b"] || !got["core/c"] {
		t.Fatalf("expected core/b and core/c in forward closure of core/a, got %v", got)
	}
	if got["core/a"] {
		t.Fatalf("forward closure should exclude the seed, got %v", got)
	}
}

// TestFeedbackArcBreaksCycle: A depends on B depends on A, a direct cycle.
// TopoOrder must still produce a full
// order over both nodes, removing exactly one edge as feedback.
func TestFeedbackArcBreaksCycle(t *testing.T) {
	a := rec(t, "core/a", "core/b")
	b := rec(t, "core/b", "core/a")
	g := Build([]*planmodel.PlanRecord{a, b})
	order := g.TopoOrder()
	if len(order) != 2 {
		t.Fatalf("expected a full order over both nodes despite the cycle, got %v", order)
	}
	if len(g.Feedback) != 1 {
		t.Fatalf("expected exactly one feedback edge, got %v", g.Feedback)
	}
}

func TestDanglingDependencyIsNonFatal(t *testing.T) {
	a := rec(t, "core/a", "core/missing")
	g := Build([]*planmodel.PlanRecord{a})
	if len(g.Dangling) != 1 {
		t.Fatalf("expected one dangling dependency, got %v", g.Dangling)
	}
	if g.Dangling[0].Unresolved != "core/missing" {
		t.Fatalf("unexpected dangling entry: %+v", g.Dangling[0])
	}
	order := g.TopoOrder()
	if len(order) != 1 {
		t.Fatalf("expected the lone resolvable node in the order, got %v", order)
	}
}

func TestDynamicVersionMatchesConcrete(t *testing.T) {
	dep := rec(t, "core/zlib/1.3")
	dependent := rec(t, "core/app", "core/zlib/"+ident.Dynamic)
	g := Build([]*planmodel.PlanRecord{dep, dependent})
	if len(g.Dangling) != 0 {
		t.Fatalf("expected the Dynamic-versioned dep to resolve, got dangling %v", g.Dangling)
	}
	depIdx, _ := g.IndexOf("core/zlib")
	closure := g.ReverseClosure([]int{depIdx})
	if closure.Count() != 1 {
		t.Fatalf("expected core/app in reverse closure of core/zlib, got count %d", closure.Count())
	}
}
