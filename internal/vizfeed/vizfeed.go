// Copyright 2026 The HAB Authors
// SPDX-License-Identifier: Apache-2.0

// Package vizfeed serves the visualization data feed: a local net/http
// endpoint returning the graph's nodes, edges, and feedback edges as JSON,
// computed from the in-memory internal/graph.Graph, plus a single embedded
// placeholder page.
package vizfeed

import (
	"embed"
	"encoding/json"
	"net/http"

	"github.com/habitat-sh/hab-auto-build/internal/graph"
)

//go:embed static/index.html
var staticFS embed.FS

// nodeIdent is the {origin,name,version} shape emitted for each node.
type nodeIdent struct {
	Origin  string `json:"origin"`
	Name    string `json:"name"`
	Version string `json:"version"`
}

type node struct {
	Ident nodeIdent `json:"ident"`
}

// edge is emitted as a 3-element array [src_idx, tgt_idx, dep_type].
// dep_type carries the edge kind string, not a node index.
type edge [3]any

// feed is the full /data response body.
type feed struct {
	Nodes         []node `json:"nodes"`
	Edges         []edge `json:"edges"`
	FeedbackEdges []edge `json:"feedback_edges"`
}

// Build computes the feed payload from g. Exported separately from the
// HTTP handler so `hab graph export` can reuse it for a one-shot offline
// dump.
func Build(g *graph.Graph) feed {
	f := feed{}
	idx := make(map[string]int, g.Len())
	for i := 0; i < g.Len(); i++ {
		rec := g.Record(i)
		idx[rec.Key()] = i
		f.Nodes = append(f.Nodes, node{Ident: nodeIdent{
			Origin:  rec.ID.Origin,
			Name:    rec.ID.Name,
			Version: rec.ID.Version,
		}})
	}
	for _, e := range g.Edges() {
		srcIdx, tgtIdx := idx[e.From.Key()], idx[e.To.Key()]
		f.Edges = append(f.Edges, edge{srcIdx, tgtIdx, string(e.Kind)})
	}
	for _, e := range g.Feedback {
		srcIdx, tgtIdx := idx[e.From.Key()], idx[e.To.Key()]
		f.FeedbackEdges = append(f.FeedbackEdges, edge{srcIdx, tgtIdx, string(e.Kind)})
	}
	return f
}

// Handler serves the live graph feed from a snapshot function, so callers
// can rebuild the graph between requests (e.g. after a `build` run changes
// the change journal) without restarting the server.
type Handler struct {
	Snapshot func() *graph.Graph
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/data":
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(Build(h.Snapshot())); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	case "/", "/index.html":
		data, err := staticFS.ReadFile("static/index.html")
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write(data)
	default:
		http.NotFound(w, r)
	}
}
