// Copyright 2026 The HAB Authors
// SPDX-License-Identifier: Apache-2.0

package vizfeed

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/habitat-sh/hab-auto-build/internal/graph"
	"github.com/habitat-sh/hab-auto-build/internal/ident"
	"github.com/habitat-sh/hab-auto-build/internal/planmodel"
)

func testGraph() *graph.Graph {
	a := &planmodel.PlanRecord{ID: ident.PlanIdentifier{Origin: "core", Name: "zlib", Version: "1.3"}}
	b := &planmodel.PlanRecord{ID: ident.PlanIdentifier{Origin: "core", Name: "app", Version: "1.0"}, Deps: []string{"core/zlib/1.3"}}
	return graph.Build([]*planmodel.PlanRecord{a, b})
}

func TestBuildEmitsRealEdgeKind(t *testing.T) {
	f := Build(testGraph())
	wantNodes := []node{
		{Ident: nodeIdent{Origin: "core", Name: "zlib", Version: "1.3"}},
		{Ident: nodeIdent{Origin: "core", Name: "app", Version: "1.0"}},
	}
	if diff := cmp.Diff(wantNodes, f.Nodes); diff != "" {
		t.Fatalf("nodes mismatch (-want +got):\n%s", diff)
	}
	if len(f.Edges) != 1 {
		t.Fatalf("expected 1 edge, got %d", len(f.Edges))
	}
	kind, ok := f.Edges[0][2].(string)
	if !ok || kind != "runtime" {
		t.Fatalf("expected dep_type %q, got %v", "runtime", f.Edges[0][2])
	}
}

func TestHandlerServesData(t *testing.T) {
	g := testGraph()
	h := &Handler{Snapshot: func() *graph.Graph { return g }}
	req := httptest.NewRequest(http.MethodGet, "/data", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var got feed
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if len(got.Nodes) != 2 {
		t.Fatalf("expected 2 nodes in response, got %d", len(got.Nodes))
	}
}
