// Package sqgraph is an embeddable hybrid retrieval engine that pairs a
// vector index with a property graph, both persisted in SQLite using
// modernc.org/sqlite (no CGO required).
//
// Text units are stored as graph nodes with typed, weighted, directed
// edges between them; each node's embedding lives in a vector index keyed
// by the same node id. Retrieval blends three signals:
//
//   - vector similarity between the query and node embeddings
//   - graph centrality (weighted PageRank, with a degree fallback)
//   - a boost for direct neighbors of the strongest vector matches
//
// # Quick Start
//
//	ctx := context.Background()
//	db, err := sqgraph.OpenDefault(ctx, "data")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	cats, _ := db.CreateNode(ctx, "cats are wonderful pets", nil, nil)
//	dogs, _ := db.CreateNode(ctx, "dogs are loyal companions", nil, nil)
//	db.Graph().CreateEdge(ctx, cats.Node.ID, dogs.Node.ID, "related", 0.9, nil)
//
//	results, _ := db.Hybrid().Search(ctx, "tell me about pets", hybrid.SearchOptions{TopK: 5})
//	for _, r := range results {
//	    fmt.Printf("%.3f  %s\n", r.Score, r.Text)
//	}
//
// Embeddings come from a pluggable provider (see pkg/embed): a
// deterministic mock for offline use and tests, or an Ollama-backed client
// for real models. When a provider fails, queries degrade to deterministic
// placeholder vectors instead of erroring.
//
// The stores can also be used on their own: pkg/core is the vector index,
// pkg/graph the graph store, and pkg/hybrid the ranking engine. An HTTP
// server over the whole engine lives in cmd/sqgraph.
package sqgraph
