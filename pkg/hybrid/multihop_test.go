package hybrid

import (
	"context"
	"errors"
	"testing"

	"github.com/liliang-cn/sqgraph/pkg/core"
)

// multiHopChain builds a -> b -> c with distinct texts and returns the ids.
func multiHopChain(t *testing.T, env *testEnv) (string, string, string) {
	t.Helper()
	ctx := context.Background()
	a := env.addNode(t, "alpha anchor text")
	b := env.addNode(t, "bravo middle text")
	c := env.addNode(t, "charlie far text")
	if _, err := env.graph.CreateEdge(ctx, a, b, "related", 1.0, nil); err != nil {
		t.Fatalf("CreateEdge failed: %v", err)
	}
	if _, err := env.graph.CreateEdge(ctx, b, c, "follows", 1.0, nil); err != nil {
		t.Fatalf("CreateEdge failed: %v", err)
	}
	return a, b, c
}

func TestMultiHopChain(t *testing.T) {
	env, cleanup := newTestEnv(t)
	defer cleanup()
	ctx := context.Background()
	a, b, c := multiHopChain(t, env)

	results, err := env.engine.MultiHop(ctx, "alpha anchor text", MultiHopOptions{TopK: 10, MaxDepth: 2})
	if err != nil {
		t.Fatalf("MultiHop failed: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}

	if results[0].NodeID != a {
		t.Errorf("start node should rank first, got %s", results[0].NodeID)
	}
	if results[0].Relevance != 1.0 {
		t.Errorf("start relevance = %v, want 1.0", results[0].Relevance)
	}
	if results[0].Combined < 0.99 {
		t.Errorf("start combined score = %v, want ~1.0", results[0].Combined)
	}

	byID := make(map[string]PathResult)
	for _, r := range results {
		byID[r.NodeID] = r
	}
	if byID[b].Distance != 1 || byID[c].Distance != 2 {
		t.Errorf("distances = %d/%d, want 1/2", byID[b].Distance, byID[c].Distance)
	}

	wantPath := []string{a, b, c}
	gotPath := byID[c].Path
	if len(gotPath) != 3 {
		t.Fatalf("path to far node = %v, want %v", gotPath, wantPath)
	}
	for i := range wantPath {
		if gotPath[i] != wantPath[i] {
			t.Fatalf("path to far node = %v, want %v", gotPath, wantPath)
		}
	}
	wantTypes := []string{"related", "follows"}
	gotTypes := byID[c].EdgeTypes
	if len(gotTypes) != 2 || gotTypes[0] != wantTypes[0] || gotTypes[1] != wantTypes[1] {
		t.Errorf("edge types = %v, want %v", gotTypes, wantTypes)
	}

	// Full text comes back untruncated for multi-hop results.
	if byID[a].Text != "alpha anchor text" {
		t.Errorf("text = %q", byID[a].Text)
	}
}

func TestMultiHopDepthLimit(t *testing.T) {
	env, cleanup := newTestEnv(t)
	defer cleanup()
	_, _, c := multiHopChain(t, env)

	results, err := env.engine.MultiHop(context.Background(), "alpha anchor text", MultiHopOptions{TopK: 10, MaxDepth: 1})
	if err != nil {
		t.Fatalf("MultiHop failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results at depth 1, want 2", len(results))
	}
	for _, r := range results {
		if r.NodeID == c {
			t.Error("node beyond the depth limit should not appear")
		}
	}
}

func TestMultiHopTopK(t *testing.T) {
	env, cleanup := newTestEnv(t)
	defer cleanup()
	a, _, _ := multiHopChain(t, env)

	results, err := env.engine.MultiHop(context.Background(), "alpha anchor text", MultiHopOptions{TopK: 1, MaxDepth: 3})
	if err != nil {
		t.Fatalf("MultiHop failed: %v", err)
	}
	if len(results) != 1 || results[0].NodeID != a {
		t.Errorf("topK=1 should keep only the start node, got %v", results)
	}
}

func TestMultiHopEmptyQuery(t *testing.T) {
	env, cleanup := newTestEnv(t)
	defer cleanup()

	if _, err := env.engine.MultiHop(context.Background(), "", MultiHopOptions{}); !errors.Is(err, core.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestMultiHopEmptyIndex(t *testing.T) {
	env, cleanup := newTestEnv(t)
	defer cleanup()

	results, err := env.engine.MultiHop(context.Background(), "anything", MultiHopOptions{})
	if err != nil {
		t.Fatalf("MultiHop failed: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected no results on an empty index, got %d", len(results))
	}
}

func TestMultiHopVectorWithoutGraphNode(t *testing.T) {
	env, cleanup := newTestEnv(t)
	defer cleanup()
	ctx := context.Background()

	vec, _ := env.embedder.Embed(ctx, "floating text")
	if _, err := env.vectors.Add(ctx, "ghost-node", vec, nil); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	results, err := env.engine.MultiHop(ctx, "floating text", MultiHopOptions{})
	if err != nil {
		t.Fatalf("MultiHop failed: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("a start node missing from the graph should yield nothing, got %v", results)
	}
}

func TestMultiHopDeterminism(t *testing.T) {
	env, cleanup := newTestEnv(t)
	defer cleanup()
	multiHopChain(t, env)
	ctx := context.Background()

	first, err := env.engine.MultiHop(ctx, "alpha anchor text", MultiHopOptions{TopK: 10, MaxDepth: 3})
	if err != nil {
		t.Fatalf("MultiHop failed: %v", err)
	}
	for i := 0; i < 5; i++ {
		again, err := env.engine.MultiHop(ctx, "alpha anchor text", MultiHopOptions{TopK: 10, MaxDepth: 3})
		if err != nil {
			t.Fatalf("MultiHop failed: %v", err)
		}
		if len(again) != len(first) {
			t.Fatalf("result count changed: %d vs %d", len(again), len(first))
		}
		for j := range again {
			if again[j].NodeID != first[j].NodeID || again[j].Combined != first[j].Combined {
				t.Fatalf("run %d differs at position %d", i, j)
			}
		}
	}
}

func TestPathResultToResult(t *testing.T) {
	p := PathResult{
		NodeID:    "n1",
		Text:      "some text",
		Relevance: 0.8,
		Distance:  1,
		Combined:  0.71,
		Metadata:  map[string]any{"k": "v"},
	}
	r := p.ToResult()

	if r.NodeID != "n1" || r.Text != "some text" || r.Score != 0.71 {
		t.Errorf("conversion lost fields: %+v", r)
	}
	if r.Breakdown.VectorSimilarity != 0.8 {
		t.Errorf("vector slot = %v, want relevance 0.8", r.Breakdown.VectorSimilarity)
	}
	if r.Breakdown.GraphCentrality != 0.5 {
		t.Errorf("centrality slot = %v, want 1/(1+1)", r.Breakdown.GraphCentrality)
	}
	if r.Breakdown.NeighborBoost != 0 {
		t.Errorf("boost slot = %v, want 0", r.Breakdown.NeighborBoost)
	}
	if r.Metadata["k"] != "v" {
		t.Errorf("metadata lost: %v", r.Metadata)
	}

	atStart := PathResult{NodeID: "n0", Distance: 0, Relevance: 1, Combined: 1}
	if got := atStart.ToResult().Breakdown.GraphCentrality; got != 1.0 {
		t.Errorf("centrality at distance 0 = %v, want 1.0", got)
	}
}
