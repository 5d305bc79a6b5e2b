package graph

// Visit describes how a traversal reached one node: hop distance from the
// start, the node ids along the path that discovered it, and the edge types
// walked on that path. Order is the discovery sequence within the traversal
// and gives callers a deterministic iteration order over the result map.
type Visit struct {
	Distance  int      `json:"distance"`
	Path      []string `json:"path"`
	EdgeTypes []string `json:"edge_types"`
	Order     int      `json:"-"`
}

// TraverseBFS explores the graph breadth-first from startID, following
// outgoing edges only, up to maxDepth hops. When edgeTypes is non-empty,
// only edges of those types are followed. Each reachable node maps to the
// shortest path that first discovered it; with maxDepth 0 only the start
// node is returned. An unknown startID yields an empty map.
func (s *Store) TraverseBFS(startID string, maxDepth int, edgeTypes []string) map[string]Visit {
	s.mu.RLock()
	defer s.mu.RUnlock()

	visited := make(map[string]Visit)
	if _, ok := s.nodes[startID]; !ok {
		return visited
	}

	allow := typeSet(edgeTypes)
	visited[startID] = Visit{Distance: 0, Path: []string{startID}, EdgeTypes: []string{}}

	queue := []struct {
		id    string
		depth int
	}{{startID, 0}}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		if current.depth >= maxDepth {
			continue
		}

		base := visited[current.id]
		for _, edgeID := range s.adjacency[current.id] {
			edge := s.edges[edgeID]
			if allow != nil && !allow[edge.Type] {
				continue
			}
			if _, seen := visited[edge.TargetID]; seen {
				continue
			}
			visited[edge.TargetID] = Visit{
				Distance:  current.depth + 1,
				Path:      appendPath(base.Path, edge.TargetID),
				EdgeTypes: appendPath(base.EdgeTypes, edge.Type),
				Order:     len(visited),
			}
			queue = append(queue, struct {
				id    string
				depth int
			}{edge.TargetID, current.depth + 1})
		}
	}

	return visited
}

// TraverseDFS explores the graph depth-first from startID with the same
// depth and edge-type rules as TraverseBFS. Paths reflect depth-first
// discovery, so they are not necessarily shortest. Outgoing edges are
// pushed in reverse so the first-created branch is explored first.
func (s *Store) TraverseDFS(startID string, maxDepth int, edgeTypes []string) map[string]Visit {
	s.mu.RLock()
	defer s.mu.RUnlock()

	visited := make(map[string]Visit)
	if _, ok := s.nodes[startID]; !ok {
		return visited
	}

	allow := typeSet(edgeTypes)

	type frame struct {
		id        string
		depth     int
		path      []string
		edgeTypes []string
	}
	stack := []frame{{id: startID, depth: 0, path: []string{startID}, edgeTypes: []string{}}}

	for len(stack) > 0 {
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if _, seen := visited[current.id]; seen {
			continue
		}
		visited[current.id] = Visit{
			Distance:  current.depth,
			Path:      current.path,
			EdgeTypes: current.edgeTypes,
			Order:     len(visited),
		}
		if current.depth >= maxDepth {
			continue
		}

		out := s.adjacency[current.id]
		for i := len(out) - 1; i >= 0; i-- {
			edge := s.edges[out[i]]
			if allow != nil && !allow[edge.Type] {
				continue
			}
			if _, seen := visited[edge.TargetID]; seen {
				continue
			}
			stack = append(stack, frame{
				id:        edge.TargetID,
				depth:     current.depth + 1,
				path:      appendPath(current.path, edge.TargetID),
				edgeTypes: appendPath(current.edgeTypes, edge.Type),
			})
		}
	}

	return visited
}

// appendPath copies before appending so sibling branches never share a
// backing array.
func appendPath(path []string, next string) []string {
	out := make([]string, len(path)+1)
	copy(out, path)
	out[len(path)] = next
	return out
}
