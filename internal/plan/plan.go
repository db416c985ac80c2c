// Copyright 2026 The HAB Authors
// SPDX-License-Identifier: Apache-2.0

// Package plan implements the dirty-set planner: turning a user
// selection (globs over plan identifiers) plus a change journal into the
// ordered list of plans a `build`/`check`/`changes` invocation should act
// on. Built from internal/graph's bitmap-backed closures and
// internal/glob's ** matcher, the same matcher internal/scan uses for its
// native/ignored filtering of plan file paths.
package plan

import (
	"sort"

	"github.com/habitat-sh/hab-auto-build/internal/bitmap"
	"github.com/habitat-sh/hab-auto-build/internal/glob"
	"github.com/habitat-sh/hab-auto-build/internal/graph"
	"github.com/habitat-sh/hab-auto-build/internal/planmodel"
)

// Plan is the result of one dirty-set computation: the plans to act on, in
// build-valid order, plus the reasons each was selected.
type Plan struct {
	Order   []*planmodel.PlanRecord
	Reasons map[string]*planmodel.ChangeEntry // keyed by PlanRecord.Key()
}

// Options configures one Compute call.
type Options struct {
	// Selection is the list of globs matched against each plan's
	// "origin/name" key. An empty selection means "all plans".
	Selection []string
	// IncludeForwardClosure additionally pulls in forward_closure(S) (every
	// plan S transitively depends on), for the `build` subcommand's "build
	// missing dependencies first" option.
	IncludeForwardClosure bool
}

// Compute derives the dirty set and its build order:
//  1. S = plans matching the selection.
//  2. D = plans with at least one change reason.
//  3. dirty = reverse_closure(S ∩ D) ∪ (S ∩ D), optionally unioned with
//     forward_closure(S).
//  4. order = topo_order() restricted to dirty.
func Compute(g *graph.Graph, entries []*planmodel.ChangeEntry, opts Options) *Plan {
	s := selectionSet(g, opts.Selection)
	d := dirtySet(entries)

	seedIdx := intersect(s, d)
	dirty := bitmap.New(g.Len())
	for _, i := range seedIdx {
		dirty.Set(i)
	}
	dirty.Or(g.ReverseClosure(seedIdx))

	if opts.IncludeForwardClosure {
		sIdx := graph.Indices(s)
		dirty.Or(s)
		dirty.Or(g.ForwardClosure(sIdx))
	}

	order := g.TopoOrderRestricted(dirty)

	p := &Plan{Reasons: make(map[string]*planmodel.ChangeEntry, len(order))}
	for _, i := range order {
		rec := g.Record(i)
		p.Order = append(p.Order, rec)
		p.Reasons[rec.Key()] = entries[i]
	}
	return p
}

// selectionSet resolves the user's glob selection against every plan's
// canonical "origin/name" key. An empty selection
// selects everything.
func selectionSet(g *graph.Graph, selection []string) *bitmap.Bitmap {
	b := bitmap.New(g.Len())
	for i := 0; i < g.Len(); i++ {
		if len(selection) == 0 || glob.MatchAny(selection, g.Record(i).Key()) {
			b.Set(i)
		}
	}
	return b
}

// dirtySet returns every plan index carrying at least one change reason.
func dirtySet(entries []*planmodel.ChangeEntry) *bitmap.Bitmap {
	b := bitmap.New(len(entries))
	for i, e := range entries {
		if e.Dirty() {
			b.Set(i)
		}
	}
	return b
}

// intersect returns the sorted indices present in both bitmaps.
func intersect(a, b *bitmap.Bitmap) []int {
	var out []int
	a.ForEach(func(i int) {
		if b.Get(i) {
			out = append(out, i)
		}
	})
	sort.Ints(out)
	return out
}
