package graph

import (
	"fmt"
	"math"
)

type link struct {
	to     int
	weight float64
}

// Topology is an immutable index-based snapshot of the graph structure,
// detached from the store so ranking can run without holding its lock.
// Node order matches creation order.
type Topology struct {
	nodes     []string
	index     map[string]int
	out       [][]link
	outWeight []float64
	inDegree  []int
	edgeCount int
}

// Snapshot captures the current nodes and edges as a Topology.
func (s *Store) Snapshot() *Topology {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t := &Topology{
		nodes:     make([]string, len(s.nodeOrder)),
		index:     make(map[string]int, len(s.nodeOrder)),
		out:       make([][]link, len(s.nodeOrder)),
		outWeight: make([]float64, len(s.nodeOrder)),
		inDegree:  make([]int, len(s.nodeOrder)),
		edgeCount: len(s.edgeOrder),
	}
	for i, id := range s.nodeOrder {
		t.nodes[i] = id
		t.index[id] = i
	}
	for _, edgeID := range s.edgeOrder {
		edge := s.edges[edgeID]
		u := t.index[edge.SourceID]
		v := t.index[edge.TargetID]
		t.out[u] = append(t.out[u], link{to: v, weight: edge.Weight})
		t.outWeight[u] += edge.Weight
		t.inDegree[v]++
	}
	return t
}

// NodeIDs returns the snapshot's node ids in creation order.
func (t *Topology) NodeIDs() []string {
	return append([]string{}, t.nodes...)
}

// Contains reports whether the snapshot holds the given node.
func (t *Topology) Contains(id string) bool {
	_, ok := t.index[id]
	return ok
}

// NodeCount returns the number of nodes in the snapshot.
func (t *Topology) NodeCount() int {
	return len(t.nodes)
}

// EdgeCount returns the number of edges in the snapshot.
func (t *Topology) EdgeCount() int {
	return t.edgeCount
}

// PageRank computes weighted PageRank over the snapshot. Each node starts
// at 1/N; per iteration a node's rank flows along its outgoing edges in
// proportion to edge weight, and the rank of dangling nodes (zero total
// outgoing weight) is spread uniformly. Iteration stops when the L1 change
// drops below N*tol; if maxIter passes without that, an error is returned
// so callers can fall back to a cheaper measure.
func (t *Topology) PageRank(damping float64, maxIter int, tol float64) (map[string]float64, error) {
	n := len(t.nodes)
	if n == 0 {
		return map[string]float64{}, nil
	}
	if damping <= 0 || damping > 1 {
		damping = 0.85
	}
	if maxIter <= 0 {
		maxIter = 100
	}
	if tol <= 0 {
		tol = 1e-6
	}

	nodeCount := float64(n)
	rank := make([]float64, n)
	next := make([]float64, n)
	for i := range rank {
		rank[i] = 1.0 / nodeCount
	}

	for iter := 0; iter < maxIter; iter++ {
		dangling := 0.0
		for i := 0; i < n; i++ {
			if t.outWeight[i] == 0 {
				dangling += rank[i]
			}
		}

		base := (1.0-damping)/nodeCount + damping*dangling/nodeCount
		for i := range next {
			next[i] = base
		}
		for i := 0; i < n; i++ {
			if t.outWeight[i] == 0 {
				continue
			}
			share := damping * rank[i] / t.outWeight[i]
			for _, l := range t.out[i] {
				next[l.to] += share * l.weight
			}
		}

		err := 0.0
		for i := 0; i < n; i++ {
			err += math.Abs(next[i] - rank[i])
		}
		rank, next = next, rank
		if err < nodeCount*tol {
			scores := make(map[string]float64, n)
			for i, id := range t.nodes {
				scores[id] = rank[i]
			}
			return scores, nil
		}
	}

	return nil, fmt.Errorf("pagerank failed to converge in %d iterations", maxIter)
}

// DegreeCentrality returns (outDegree+inDegree)/N per node. It always
// succeeds and serves as the fallback when PageRank does not converge.
func (t *Topology) DegreeCentrality() map[string]float64 {
	n := len(t.nodes)
	scores := make(map[string]float64, n)
	if n == 0 {
		return scores
	}
	for i, id := range t.nodes {
		scores[id] = float64(len(t.out[i])+t.inDegree[i]) / float64(n)
	}
	return scores
}
