package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/liliang-cn/sqgraph"
)

func newTestServer(t *testing.T) (*httptest.Server, *sqgraph.DB) {
	t.Helper()

	db, err := sqgraph.OpenDefault(context.Background(), t.TempDir())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}

	srv := NewServer(db, zap.NewNop())
	ts := httptest.NewServer(srv.Routes())

	t.Cleanup(func() {
		ts.Close()
		if err := db.Close(); err != nil {
			t.Errorf("failed to close database: %v", err)
		}
	})
	return ts, db
}

func doRequest(t *testing.T, ts *httptest.Server, method, path string, body any) (int, []byte) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal request body: %v", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequest(method, ts.URL+path, reader)
	if err != nil {
		t.Fatalf("failed to build request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s failed: %v", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response body: %v", err)
	}
	return resp.StatusCode, data
}

func unmarshalBody(t *testing.T, data []byte, v any) {
	t.Helper()
	if err := json.Unmarshal(data, v); err != nil {
		t.Fatalf("failed to unmarshal %q: %v", data, err)
	}
}

func createTestNode(t *testing.T, ts *httptest.Server, text string, metadata map[string]any) nodeResponse {
	t.Helper()

	status, body := doRequest(t, ts, http.MethodPost, "/nodes", map[string]any{
		"text":     text,
		"metadata": metadata,
	})
	if status != http.StatusOK {
		t.Fatalf("create node returned status %d: %s", status, body)
	}
	var node nodeResponse
	unmarshalBody(t, body, &node)
	return node
}

func createTestEdge(t *testing.T, ts *httptest.Server, sourceID, targetID, edgeType string) string {
	t.Helper()

	payload := map[string]any{"source_id": sourceID, "target_id": targetID}
	if edgeType != "" {
		payload["edge_type"] = edgeType
	}
	status, body := doRequest(t, ts, http.MethodPost, "/edges", payload)
	if status != http.StatusOK {
		t.Fatalf("create edge returned status %d: %s", status, body)
	}
	var edge struct {
		ID string `json:"id"`
	}
	unmarshalBody(t, body, &edge)
	return edge.ID
}

func TestNodeLifecycle(t *testing.T) {
	ts, _ := newTestServer(t)

	created := createTestNode(t, ts, "the quick brown fox", map[string]any{"kind": "note"})
	if created.ID == "" {
		t.Fatal("expected a node ID")
	}
	if len(created.Embedding) == 0 {
		t.Error("create response should echo the generated embedding")
	}
	if len(created.Edges) != 0 {
		t.Errorf("new node should have no edges, got %v", created.Edges)
	}

	status, body := doRequest(t, ts, http.MethodGet, "/nodes/"+created.ID, nil)
	if status != http.StatusOK {
		t.Fatalf("get node returned status %d: %s", status, body)
	}
	var fetched nodeResponse
	unmarshalBody(t, body, &fetched)
	if fetched.Text != "the quick brown fox" {
		t.Errorf("unexpected text %q", fetched.Text)
	}
	if fetched.Metadata["kind"] != "note" {
		t.Errorf("unexpected metadata %v", fetched.Metadata)
	}

	var raw map[string]any
	unmarshalBody(t, body, &raw)
	if _, present := raw["embedding"]; present {
		t.Error("read response should not include the embedding")
	}

	status, body = doRequest(t, ts, http.MethodPut, "/nodes/"+created.ID, map[string]any{"text": "the slow brown fox"})
	if status != http.StatusOK {
		t.Fatalf("update node returned status %d: %s", status, body)
	}
	var updated nodeResponse
	unmarshalBody(t, body, &updated)
	if updated.Text != "the slow brown fox" {
		t.Errorf("update did not apply, got %q", updated.Text)
	}
	if updated.UpdatedAt.Before(updated.CreatedAt) {
		t.Error("updated_at should not precede created_at")
	}

	status, body = doRequest(t, ts, http.MethodDelete, "/nodes/"+created.ID, nil)
	if status != http.StatusOK {
		t.Fatalf("delete node returned status %d: %s", status, body)
	}

	status, _ = doRequest(t, ts, http.MethodGet, "/nodes/"+created.ID, nil)
	if status != http.StatusNotFound {
		t.Errorf("expected 404 after delete, got %d", status)
	}
}

func TestCreateNodeValidation(t *testing.T) {
	ts, _ := newTestServer(t)

	status, body := doRequest(t, ts, http.MethodPost, "/nodes", map[string]any{"metadata": map[string]any{}})
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing text, got %d: %s", status, body)
	}
	var errResp errorResponse
	unmarshalBody(t, body, &errResp)
	if !errResp.Error || errResp.Code != http.StatusBadRequest {
		t.Errorf("unexpected error envelope %+v", errResp)
	}
	if !strings.Contains(errResp.Message, "Text") {
		t.Errorf("message should name the failing field, got %q", errResp.Message)
	}

	status, _ = doRequest(t, ts, http.MethodPost, "/nodes", nil)
	if status != http.StatusBadRequest {
		t.Errorf("expected 400 for empty body, got %d", status)
	}
}

func TestNodeNotFound(t *testing.T) {
	ts, _ := newTestServer(t)

	for _, method := range []string{http.MethodGet, http.MethodDelete} {
		status, _ := doRequest(t, ts, method, "/nodes/no-such-node", nil)
		if status != http.StatusNotFound {
			t.Errorf("%s unknown node: expected 404, got %d", method, status)
		}
	}

	status, _ := doRequest(t, ts, http.MethodPut, "/nodes/no-such-node", map[string]any{"text": "x"})
	if status != http.StatusNotFound {
		t.Errorf("PUT unknown node: expected 404, got %d", status)
	}
}

func TestEdgeLifecycle(t *testing.T) {
	ts, _ := newTestServer(t)

	a := createTestNode(t, ts, "first node", nil)
	b := createTestNode(t, ts, "second node", nil)

	status, body := doRequest(t, ts, http.MethodPost, "/edges", map[string]any{
		"source_id": a.ID,
		"target_id": b.ID,
	})
	if status != http.StatusOK {
		t.Fatalf("create edge returned status %d: %s", status, body)
	}
	var edge struct {
		ID       string  `json:"id"`
		SourceID string  `json:"source_id"`
		TargetID string  `json:"target_id"`
		EdgeType string  `json:"edge_type"`
		Weight   float64 `json:"weight"`
	}
	unmarshalBody(t, body, &edge)
	if edge.EdgeType != "related" {
		t.Errorf("expected default edge type, got %q", edge.EdgeType)
	}
	if edge.Weight != 1.0 {
		t.Errorf("expected default weight 1.0, got %v", edge.Weight)
	}
	if edge.SourceID != a.ID || edge.TargetID != b.ID {
		t.Errorf("endpoints do not match: %+v", edge)
	}

	status, _ = doRequest(t, ts, http.MethodGet, "/edges/"+edge.ID, nil)
	if status != http.StatusOK {
		t.Errorf("get edge returned status %d", status)
	}

	status, _ = doRequest(t, ts, http.MethodDelete, "/edges/"+edge.ID, nil)
	if status != http.StatusOK {
		t.Errorf("delete edge returned status %d", status)
	}

	status, _ = doRequest(t, ts, http.MethodGet, "/edges/"+edge.ID, nil)
	if status != http.StatusNotFound {
		t.Errorf("expected 404 after delete, got %d", status)
	}
}

func TestCreateEdgeValidation(t *testing.T) {
	ts, _ := newTestServer(t)

	a := createTestNode(t, ts, "only node", nil)

	status, _ := doRequest(t, ts, http.MethodPost, "/edges", map[string]any{
		"source_id": a.ID,
		"target_id": "ghost",
	})
	if status != http.StatusBadRequest {
		t.Errorf("ghost target: expected 400, got %d", status)
	}

	b := createTestNode(t, ts, "other node", nil)
	status, _ = doRequest(t, ts, http.MethodPost, "/edges", map[string]any{
		"source_id": a.ID,
		"target_id": b.ID,
		"weight":    1.5,
	})
	if status != http.StatusBadRequest {
		t.Errorf("weight out of range: expected 400, got %d", status)
	}

	status, _ = doRequest(t, ts, http.MethodPost, "/edges", map[string]any{"source_id": a.ID})
	if status != http.StatusBadRequest {
		t.Errorf("missing target_id: expected 400, got %d", status)
	}
}

func TestVectorSearchEndpoint(t *testing.T) {
	ts, _ := newTestServer(t)

	target := createTestNode(t, ts, "distributed consensus protocols", nil)
	createTestNode(t, ts, "gardening tips for spring", nil)

	status, body := doRequest(t, ts, http.MethodPost, "/search/vector", map[string]any{
		"query_text": "distributed consensus protocols",
	})
	if status != http.StatusOK {
		t.Fatalf("vector search returned status %d: %s", status, body)
	}
	var results []struct {
		NodeID string  `json:"node_id"`
		Text   string  `json:"node_text"`
		Score  float64 `json:"similarity_score"`
	}
	unmarshalBody(t, body, &results)
	if len(results) == 0 {
		t.Fatal("expected at least one result")
	}
	if results[0].NodeID != target.ID {
		t.Errorf("expected exact text match first, got %q", results[0].NodeID)
	}
	if results[0].Score < 0.99 {
		t.Errorf("exact match should score near 1.0, got %v", results[0].Score)
	}

	status, _ = doRequest(t, ts, http.MethodPost, "/search/vector", map[string]any{"top_k": 5})
	if status != http.StatusBadRequest {
		t.Errorf("missing query_text: expected 400, got %d", status)
	}

	status, _ = doRequest(t, ts, http.MethodPost, "/search/vector", map[string]any{
		"query_text": "x",
		"top_k":      500,
	})
	if status != http.StatusBadRequest {
		t.Errorf("top_k out of range: expected 400, got %d", status)
	}
}

func TestGraphTraversalEndpoint(t *testing.T) {
	ts, _ := newTestServer(t)

	a := createTestNode(t, ts, "node a", nil)
	b := createTestNode(t, ts, "node b", nil)
	c := createTestNode(t, ts, "node c", nil)
	createTestEdge(t, ts, a.ID, b.ID, "related")
	createTestEdge(t, ts, b.ID, c.ID, "follows")

	status, body := doRequest(t, ts, http.MethodGet, "/search/graph?start_id="+a.ID+"&depth=2", nil)
	if status != http.StatusOK {
		t.Fatalf("traversal returned status %d: %s", status, body)
	}
	var results []traversalResult
	unmarshalBody(t, body, &results)
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if results[0].NodeID != a.ID || results[0].Distance != 0 {
		t.Errorf("start node should come first at distance 0, got %+v", results[0])
	}
	if results[2].NodeID != c.ID || results[2].Distance != 2 {
		t.Errorf("expected c at distance 2, got %+v", results[2])
	}
	wantPath := []string{a.ID, b.ID, c.ID}
	for i, id := range wantPath {
		if results[2].Path[i] != id {
			t.Fatalf("unexpected path %v, want %v", results[2].Path, wantPath)
		}
	}

	status, body = doRequest(t, ts, http.MethodGet, "/search/graph?start_id="+a.ID+"&depth=2&edge_types=related", nil)
	if status != http.StatusOK {
		t.Fatalf("filtered traversal returned status %d: %s", status, body)
	}
	unmarshalBody(t, body, &results)
	if len(results) != 2 {
		t.Errorf("type filter should stop at b, got %d results", len(results))
	}

	status, _ = doRequest(t, ts, http.MethodGet, "/search/graph?start_id=ghost", nil)
	if status != http.StatusNotFound {
		t.Errorf("unknown start: expected 404, got %d", status)
	}

	status, _ = doRequest(t, ts, http.MethodGet, "/search/graph", nil)
	if status != http.StatusBadRequest {
		t.Errorf("missing start_id: expected 400, got %d", status)
	}

	status, _ = doRequest(t, ts, http.MethodGet, "/search/graph?start_id="+a.ID+"&depth=99", nil)
	if status != http.StatusBadRequest {
		t.Errorf("depth out of range: expected 400, got %d", status)
	}
}

func TestHybridSearchEndpoint(t *testing.T) {
	ts, _ := newTestServer(t)

	target := createTestNode(t, ts, "vector databases store embeddings", nil)
	other := createTestNode(t, ts, "unrelated cooking recipe", nil)
	createTestEdge(t, ts, target.ID, other.ID, "")

	status, body := doRequest(t, ts, http.MethodPost, "/search/hybrid", map[string]any{
		"query": "vector databases store embeddings",
	})
	if status != http.StatusOK {
		t.Fatalf("hybrid search returned status %d: %s", status, body)
	}
	var results []map[string]any
	unmarshalBody(t, body, &results)
	if len(results) == 0 {
		t.Fatal("expected at least one result")
	}
	if results[0]["node_id"] != target.ID {
		t.Errorf("expected exact text match first, got %v", results[0]["node_id"])
	}
	breakdown, ok := results[0]["breakdown"].(map[string]any)
	if !ok {
		t.Fatalf("missing breakdown in %v", results[0])
	}
	for _, key := range []string{"vector_similarity", "graph_centrality", "neighbor_boost"} {
		if _, present := breakdown[key]; !present {
			t.Errorf("breakdown missing %q: %v", key, breakdown)
		}
	}

	status, _ = doRequest(t, ts, http.MethodPost, "/search/hybrid", map[string]any{
		"query": "x",
		"alpha": 1.2,
	})
	if status != http.StatusBadRequest {
		t.Errorf("alpha out of range: expected 400, got %d", status)
	}
}

func TestMultiHopEndpoint(t *testing.T) {
	ts, _ := newTestServer(t)

	a := createTestNode(t, ts, "alpha anchor text", nil)
	b := createTestNode(t, ts, "bravo middle text", nil)
	createTestEdge(t, ts, a.ID, b.ID, "related")

	params := url.Values{}
	params.Set("query_text", "alpha anchor text")
	params.Set("top_k", "5")
	params.Set("depth", "2")

	status, body := doRequest(t, ts, http.MethodPost, "/search/multihop?"+params.Encode(), nil)
	if status != http.StatusOK {
		t.Fatalf("multi-hop returned status %d: %s", status, body)
	}
	var results []map[string]any
	unmarshalBody(t, body, &results)
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0]["node_id"] != a.ID {
		t.Errorf("expected anchor first, got %v", results[0]["node_id"])
	}
	for _, key := range []string{"score", "text", "breakdown", "metadata"} {
		if _, present := results[0][key]; !present {
			t.Errorf("result missing %q: %v", key, results[0])
		}
	}
	breakdown, ok := results[0]["breakdown"].(map[string]any)
	if !ok {
		t.Fatalf("missing breakdown in %v", results[0])
	}
	if got := breakdown["graph_centrality"]; got != 1.0 {
		t.Errorf("start node proximity should be 1.0, got %v", got)
	}
	if got := breakdown["neighbor_boost"]; got != 0.0 {
		t.Errorf("multi-hop results carry no neighbor boost, got %v", got)
	}

	status, _ = doRequest(t, ts, http.MethodPost, "/search/multihop", nil)
	if status != http.StatusBadRequest {
		t.Errorf("missing query_text: expected 400, got %d", status)
	}

	params.Set("depth", "50")
	status, _ = doRequest(t, ts, http.MethodPost, "/search/multihop?"+params.Encode(), nil)
	if status != http.StatusBadRequest {
		t.Errorf("depth out of range: expected 400, got %d", status)
	}
}

func TestBulkIngestEndpoint(t *testing.T) {
	ts, _ := newTestServer(t)

	existing := createTestNode(t, ts, "pre-existing node", nil)

	status, body := doRequest(t, ts, http.MethodPost, "/bulk/ingest", map[string]any{
		"nodes": []map[string]any{
			{"text": "bulk node one"},
			{"text": "bulk node two"},
		},
		"edges": []map[string]any{
			{"source_id": existing.ID, "target_id": existing.ID},
			{"source_id": existing.ID, "target_id": "ghost"},
		},
	})
	if status != http.StatusOK {
		t.Fatalf("bulk ingest returned status %d: %s", status, body)
	}
	var resp bulkIngestResponse
	unmarshalBody(t, body, &resp)
	if resp.Status != "success" {
		t.Errorf("unexpected status %q", resp.Status)
	}
	if resp.NodesCreated != 2 {
		t.Errorf("expected 2 nodes created, got %d", resp.NodesCreated)
	}
	if resp.EdgesCreated != 1 || resp.EdgesSkipped != 1 {
		t.Errorf("expected 1 created / 1 skipped edge, got %d / %d", resp.EdgesCreated, resp.EdgesSkipped)
	}
	if len(resp.NodeIDs) != 2 {
		t.Errorf("expected 2 node IDs, got %v", resp.NodeIDs)
	}

	status, _ = doRequest(t, ts, http.MethodPost, "/bulk/ingest", map[string]any{
		"nodes": []map[string]any{{"metadata": map[string]any{}}},
	})
	if status != http.StatusBadRequest {
		t.Errorf("node without text: expected 400, got %d", status)
	}
}

func TestStatusEndpoint(t *testing.T) {
	ts, _ := newTestServer(t)

	a := createTestNode(t, ts, "status node a", nil)
	b := createTestNode(t, ts, "status node b", nil)
	createTestEdge(t, ts, a.ID, b.ID, "")

	status, body := doRequest(t, ts, http.MethodGet, "/status", nil)
	if status != http.StatusOK {
		t.Fatalf("status returned %d: %s", status, body)
	}
	var resp struct {
		TotalNodes      int    `json:"total_nodes"`
		TotalEdges      int    `json:"total_edges"`
		TotalVectors    int    `json:"total_vectors"`
		VectorDimension int    `json:"vector_dimension"`
		StorageType     string `json:"storage_type"`
		Version         string `json:"version"`
	}
	unmarshalBody(t, body, &resp)
	if resp.TotalNodes != 2 || resp.TotalEdges != 1 || resp.TotalVectors != 2 {
		t.Errorf("unexpected counts: %+v", resp)
	}
	if resp.VectorDimension == 0 || resp.Version == "" || resp.StorageType == "" {
		t.Errorf("status is missing fields: %+v", resp)
	}
}

func TestHealthAndRoot(t *testing.T) {
	ts, _ := newTestServer(t)

	status, body := doRequest(t, ts, http.MethodGet, "/health", nil)
	if status != http.StatusOK {
		t.Fatalf("health returned %d", status)
	}
	var health map[string]string
	unmarshalBody(t, body, &health)
	if health["status"] != "healthy" {
		t.Errorf("unexpected health payload %v", health)
	}

	status, body = doRequest(t, ts, http.MethodGet, "/", nil)
	if status != http.StatusOK {
		t.Fatalf("root returned %d", status)
	}
	var root map[string]string
	unmarshalBody(t, body, &root)
	if root["message"] == "" || root["version"] == "" {
		t.Errorf("unexpected root payload %v", root)
	}
}

func TestRequestIDHeader(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := ts.Client().Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("health request failed: %v", err)
	}
	defer resp.Body.Close()
	if _, err := io.Copy(io.Discard, resp.Body); err != nil {
		t.Fatalf("failed to drain body: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("health returned %d", resp.StatusCode)
	}
}

func TestDeleteNodeCleansSearch(t *testing.T) {
	ts, db := newTestServer(t)

	node := createTestNode(t, ts, "ephemeral entry", nil)

	status, _ := doRequest(t, ts, http.MethodDelete, "/nodes/"+node.ID, nil)
	if status != http.StatusOK {
		t.Fatalf("delete returned %d", status)
	}

	st := db.Status()
	if st.TotalNodes != 0 || st.TotalVectors != 0 {
		t.Errorf("stores should be empty after delete, got %+v", st)
	}

	status, body := doRequest(t, ts, http.MethodPost, "/search/vector", map[string]any{
		"query_text": "ephemeral entry",
	})
	if status != http.StatusOK {
		t.Fatalf("vector search returned %d", status)
	}
	var results []json.RawMessage
	unmarshalBody(t, body, &results)
	if len(results) != 0 {
		t.Errorf("expected no results after delete, got %d", len(results))
	}
}

func TestQueryIntBounds(t *testing.T) {
	ts, _ := newTestServer(t)
	a := createTestNode(t, ts, "bounds node", nil)

	cases := []struct {
		raw  string
		want int
	}{
		{"", http.StatusOK},
		{"&depth=1", http.StatusOK},
		{"&depth=10", http.StatusOK},
		{"&depth=0", http.StatusBadRequest},
		{"&depth=11", http.StatusBadRequest},
		{"&depth=abc", http.StatusBadRequest},
	}
	for _, tc := range cases {
		status, _ := doRequest(t, ts, http.MethodGet, fmt.Sprintf("/search/graph?start_id=%s%s", a.ID, tc.raw), nil)
		if status != tc.want {
			t.Errorf("depth param %q: expected %d, got %d", tc.raw, tc.want, status)
		}
	}
}
