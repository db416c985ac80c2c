// Copyright 2026 The HAB Authors
// SPDX-License-Identifier: Apache-2.0

// Package graph implements the dependency graph: arena-indexed nodes
// (integer handles into a slice) with edges typed
// {runtime, build, scaffolding}, greedy feedback-arc-set cycle tolerance,
// and reverse/forward closure over internal/bitmap bitsets. Ordering is
// Kahn's algorithm with sorted queues for determinism, extended to tolerate
// cycles instead of refusing them.
package graph

import (
	"sort"

	"github.com/habitat-sh/hab-auto-build/internal/bitmap"
	"github.com/habitat-sh/hab-auto-build/internal/herr"
	"github.com/habitat-sh/hab-auto-build/internal/ident"
	"github.com/habitat-sh/hab-auto-build/internal/planmodel"
)

// edgeRef is one endpoint of a DepEdge, seen from the opposite node: "the
// other node index, and what kind of edge connects us".
type edgeRef struct {
	other int
	kind  planmodel.DepKind
}

// Graph is an arena-indexed dependency graph over PlanRecords. DepEdges are
// stored with From = the dependency, To = the dependent, so that following
// an edge forward walks from a plan to the plans that need it, so Kahn's
// algorithm emits dependencies before their dependents without an extra
// reversal step.
type Graph struct {
	records []*planmodel.PlanRecord
	keyIdx  map[string]int // (origin, name) -> node index

	// out[i] holds edges where i is the dependency (From) and other is the
	// dependent (To); used by topo_order and reverse_closure.
	out [][]edgeRef
	// in[i] holds edges where i is the dependent (To) and other is the
	// dependency (From); used by forward_closure.
	in [][]edgeRef

	Dangling []herr.DanglingDependency
	Feedback []planmodel.DepEdge
}

// Build constructs a Graph from the discovered plan records, resolving each
// record's raw dep strings against the others by (origin, name), honoring
// the Dynamic version wildcard (ident.Matches). Unresolved strings are
// recorded as Dangling warnings rather than aborting construction.
func Build(records []*planmodel.PlanRecord) *Graph {
	g := &Graph{
		records: records,
		keyIdx:  make(map[string]int, len(records)),
		out:     make([][]edgeRef, len(records)),
		in:      make([][]edgeRef, len(records)),
	}
	for i, r := range records {
		g.keyIdx[r.Key()] = i
	}
	for i, r := range records {
		g.addDeps(i, r.Deps, planmodel.DepKindRuntime)
		g.addDeps(i, r.BuildDeps, planmodel.DepKindBuild)
		if r.ScaffoldingDep != "" {
			g.addDeps(i, []string{r.ScaffoldingDep}, planmodel.DepKindBuild)
		}
	}
	return g
}

func (g *Graph) addDeps(dependentIdx int, raw []string, kind planmodel.DepKind) {
	dependent := g.records[dependentIdx]
	for _, rawDep := range raw {
		depIdent, err := ident.Parse(rawDep)
		if err != nil {
			g.Dangling = append(g.Dangling, herr.DanglingDependency{From: dependent.String(), Unresolved: rawDep})
			continue
		}
		j, ok := g.keyIdx[depIdent.Key()]
		if !ok || !g.records[j].ID.Matches(depIdent) {
			g.Dangling = append(g.Dangling, herr.DanglingDependency{From: dependent.String(), Unresolved: rawDep})
			continue
		}
		g.out[j] = append(g.out[j], edgeRef{other: dependentIdx, kind: kind})
		g.in[dependentIdx] = append(g.in[dependentIdx], edgeRef{other: j, kind: kind})
	}
}

// Len returns the number of nodes in the graph.
func (g *Graph) Len() int { return len(g.records) }

// Record returns the plan record at arena index i.
func (g *Graph) Record(i int) *planmodel.PlanRecord { return g.records[i] }

// IndexOf returns the arena index of a plan by (origin, name) key, if present.
func (g *Graph) IndexOf(key string) (int, bool) {
	i, ok := g.keyIdx[key]
	return i, ok
}

// Edges returns every resolved DepEdge in the graph, for the visualization
// feed and `hab graph export`.
func (g *Graph) Edges() []planmodel.DepEdge {
	var edges []planmodel.DepEdge
	for i, outs := range g.out {
		for _, e := range outs {
			edges = append(edges, planmodel.DepEdge{From: g.records[i], To: g.records[e.other], Kind: e.kind})
		}
	}
	return edges
}

// bitmapFromIndices builds a Bitmap over the graph's arena with the given
// indices set.
func (g *Graph) bitmapFromIndices(indices []int) *bitmap.Bitmap {
	b := bitmap.New(g.Len())
	for _, i := range indices {
		b.Set(i)
	}
	return b
}

// ReverseClosure returns the set of node indices transitively depending on
// any seed, excluding the seeds themselves; callers union with the seed set
// when they want it included.
func (g *Graph) ReverseClosure(seeds []int) *bitmap.Bitmap {
	return g.closure(seeds, g.out)
}

// ForwardClosure returns the set of node indices any seed transitively
// depends on, excluding the seeds themselves.
func (g *Graph) ForwardClosure(seeds []int) *bitmap.Bitmap {
	return g.closure(seeds, g.in)
}

func (g *Graph) closure(seeds []int, adj [][]edgeRef) *bitmap.Bitmap {
	visited := bitmap.New(g.Len())
	frontier := g.bitmapFromIndices(seeds)
	result := bitmap.New(g.Len())
	for _, s := range seeds {
		visited.Set(s)
	}
	for frontier.Count() > 0 {
		next := bitmap.New(g.Len())
		frontier.ForEach(func(i int) {
			for _, e := range adj[i] {
				if !visited.Get(e.other) {
					visited.Set(e.other)
					result.Set(e.other)
					next.Set(e.other)
				}
			}
		})
		frontier = next
	}
	return result
}

// ImmediateDependencies returns the arena indices of the plans node i
// directly depends on (one hop), used by internal/journal's
// DependencyRebuilt fixpoint to report the specific dependency responsible
// for propagated dirtiness rather than a flattened transitive set.
func (g *Graph) ImmediateDependencies(i int) []int {
	var out []int
	for _, e := range g.in[i] {
		out = append(out, e.other)
	}
	sort.Ints(out)
	return out
}

// ImmediateDependents returns the arena indices of the plans that directly
// depend on node i (one hop), sorted ascending; the one-hop counterpart of
// ReverseClosure.
func (g *Graph) ImmediateDependents(i int) []int {
	var out []int
	for _, e := range g.out[i] {
		out = append(out, e.other)
	}
	sort.Ints(out)
	return out
}

// Indices converts a Bitmap into a sorted slice of node indices.
func Indices(b *bitmap.Bitmap) []int {
	var out []int
	b.ForEach(func(i int) { out = append(out, i) })
	return out
}

// TopoOrder returns a full topological order over the graph, tolerating
// cycles by first computing a greedy feedback-arc set and
// running Kahn's algorithm over the DAG induced by removing those edges.
// Feedback edges removed this way are recorded on g.Feedback.
func (g *Graph) TopoOrder() []int {
	removed := g.computeFeedbackEdges()
	return g.kahn(removed)
}

// TopoOrderRestricted returns the topological order restricted to the given
// node-index set, used by the dirty-set planner.
func (g *Graph) TopoOrderRestricted(allowed *bitmap.Bitmap) []int {
	full := g.TopoOrder()
	var out []int
	for _, i := range full {
		if allowed.Get(i) {
			out = append(out, i)
		}
	}
	return out
}

type feedbackEdge struct{ from, to int }

// computeFeedbackEdges is the greedy feedback-arc-set heuristic:
// repeatedly pick the edge whose removal produces the greatest reduction in
// cycle count, ties broken by lexicographic edge order. This is approximated
// here by repeatedly removing, from the current cycle-detection failure, the
// lexicographically-smallest back edge found by a DFS, a standard and
// cheap approximation of greedy FAS that always terminates since each
// removal strictly shrinks the remaining cyclic subgraph.
func (g *Graph) computeFeedbackEdges() map[feedbackEdge]bool {
	removed := make(map[feedbackEdge]bool)
	g.Feedback = nil
	for {
		cyc := g.findBackEdges(removed)
		if len(cyc) == 0 {
			return removed
		}
		sort.Slice(cyc, func(i, j int) bool {
			if cyc[i].from != cyc[j].from {
				return cyc[i].from < cyc[j].from
			}
			return cyc[i].to < cyc[j].to
		})
		pick := cyc[0]
		removed[pick] = true
		g.Feedback = append(g.Feedback, planmodel.DepEdge{
			From: g.records[pick.from],
			To:   g.records[pick.to],
			Kind: g.edgeKind(pick.from, pick.to),
		})
	}
}

func (g *Graph) edgeKind(from, to int) planmodel.DepKind {
	for _, e := range g.out[from] {
		if e.other == to {
			return e.kind
		}
	}
	return planmodel.DepKindRuntime
}

// findBackEdges runs one DFS over the graph (honoring already-removed
// edges) and returns every back edge found, i.e. every edge pointing into
// a node currently on the recursion stack, which is exactly a cycle-closing
// edge.
func (g *Graph) findBackEdges(removed map[feedbackEdge]bool) []feedbackEdge {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make([]int, g.Len())
	var backEdges []feedbackEdge
	var visit func(i int)
	visit = func(i int) {
		color[i] = gray
		neighbors := append([]edgeRef(nil), g.out[i]...)
		sort.Slice(neighbors, func(a, b int) bool { return neighbors[a].other < neighbors[b].other })
		for _, e := range neighbors {
			if removed[feedbackEdge{i, e.other}] {
				continue
			}
			switch color[e.other] {
			case white:
				visit(e.other)
			case gray:
				backEdges = append(backEdges, feedbackEdge{i, e.other})
			}
		}
		color[i] = black
	}
	var roots []int
	for i := range g.records {
		roots = append(roots, i)
	}
	sort.Ints(roots)
	for _, i := range roots {
		if color[i] == white {
			visit(i)
		}
	}
	return backEdges
}

func (g *Graph) kahn(removed map[feedbackEdge]bool) []int {
	inDegree := make([]int, g.Len())
	for i := range g.records {
		for _, e := range g.in[i] {
			if !removed[feedbackEdge{e.other, i}] {
				inDegree[i]++
			}
		}
	}
	var queue []int
	for i, d := range inDegree {
		if d == 0 {
			queue = append(queue, i)
		}
	}
	sort.Ints(queue)
	var order []int
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		order = append(order, cur)
		neighbors := append([]edgeRef(nil), g.out[cur]...)
		sort.Slice(neighbors, func(a, b int) bool { return neighbors[a].other < neighbors[b].other })
		var newlyReady []int
		for _, e := range neighbors {
			if removed[feedbackEdge{cur, e.other}] {
				continue
			}
			inDegree[e.other]--
			if inDegree[e.other] == 0 {
				newlyReady = append(newlyReady, e.other)
			}
		}
		sort.Ints(newlyReady)
		queue = append(queue, newlyReady...)
		sort.Ints(queue)
	}
	return order
}
