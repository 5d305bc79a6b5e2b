package graph

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/liliang-cn/sqgraph/internal/encoding"
	"github.com/liliang-cn/sqgraph/pkg/core"
)

// DefaultEdgeType is assigned to edges created without an explicit type.
const DefaultEdgeType = "related"

// Node is a stored text unit. Metadata holds free-form JSON values.
type Node struct {
	ID        string         `json:"id"`
	Text      string         `json:"text"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Edge is a directed, typed relationship between two nodes.
// Weight lives in [0, 1].
type Edge struct {
	ID        string         `json:"id"`
	SourceID  string         `json:"source_id"`
	TargetID  string         `json:"target_id"`
	Type      string         `json:"edge_type"`
	Weight    float64        `json:"weight"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// Neighbor is one outgoing connection of a node.
type Neighbor struct {
	TargetID string  `json:"target_id"`
	Type     string  `json:"edge_type"`
	Weight   float64 `json:"weight"`
}

// Option configures a Store.
type Option func(*Store)

// WithLogger attaches a logger. The default discards everything.
func WithLogger(l core.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// Store keeps nodes, edges, and both adjacency directions in memory, with
// SQLite underneath for durability. Mutations hit the database first and the
// memory copy is updated only after the write succeeds. Adjacency lists hold
// edge ids in creation order; that order is what traversal and search
// tie-breaks are built on, so it is persisted via rowid and restored on load.
type Store struct {
	mu     sync.RWMutex
	db     *sql.DB
	path   string
	logger core.Logger

	nodes     map[string]*Node
	nodeOrder []string
	edges     map[string]*Edge
	edgeOrder []string
	adjacency map[string][]string // node id -> outgoing edge ids
	reverse   map[string][]string // node id -> incoming edge ids
	closed    bool
}

const graphSchema = `
CREATE TABLE IF NOT EXISTS nodes (
	id TEXT PRIMARY KEY,
	text TEXT NOT NULL,
	metadata TEXT NOT NULL DEFAULT '{}',
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS edges (
	id TEXT PRIMARY KEY,
	source_id TEXT NOT NULL,
	target_id TEXT NOT NULL,
	edge_type TEXT NOT NULL DEFAULT 'related',
	weight REAL NOT NULL DEFAULT 1.0,
	metadata TEXT NOT NULL DEFAULT '{}',
	created_at TIMESTAMP NOT NULL,
	FOREIGN KEY (source_id) REFERENCES nodes(id),
	FOREIGN KEY (target_id) REFERENCES nodes(id)
);

CREATE INDEX IF NOT EXISTS idx_edges_source ON edges(source_id);
CREATE INDEX IF NOT EXISTS idx_edges_target ON edges(target_id);
`

// New opens (creating if necessary) the store at path and loads every node
// and edge into memory before returning.
func New(ctx context.Context, path string, opts ...Option) (*Store, error) {
	s := &Store{
		path:      path,
		logger:    core.NopLogger(),
		nodes:     make(map[string]*Node),
		edges:     make(map[string]*Edge),
		adjacency: make(map[string][]string),
		reverse:   make(map[string][]string),
	}
	for _, opt := range opts {
		opt(s)
	}

	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_cache_size=-2000", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open graph store: %w", err)
	}
	db.SetMaxOpenConns(1)
	s.db = db

	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("open graph store: %w", err)
	}
	if _, err := db.ExecContext(ctx, graphSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("open graph store: create schema: %w", err)
	}

	if err := s.loadAll(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("open graph store: %w", err)
	}

	s.logger.Info("graph store ready", "path", path, "nodes", len(s.nodeOrder), "edges", len(s.edgeOrder))
	return s, nil
}

// loadAll reads nodes and then edges in rowid order, so the in-memory
// ordering matches the original creation sequence.
func (s *Store) loadAll(ctx context.Context) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, text, metadata, created_at, updated_at FROM nodes ORDER BY rowid`)
	if err != nil {
		return fmt.Errorf("load nodes: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var id, text, metaJSON, createdRaw, updatedRaw string
		if err := rows.Scan(&id, &text, &metaJSON, &createdRaw, &updatedRaw); err != nil {
			return fmt.Errorf("scan node row: %w", err)
		}
		meta, err := encoding.DecodeMetadata(metaJSON)
		if err != nil {
			return fmt.Errorf("corrupt metadata for node %s: %w", id, err)
		}
		s.nodes[id] = &Node{
			ID:        id,
			Text:      text,
			Metadata:  meta,
			CreatedAt: encoding.ParseTime(createdRaw),
			UpdatedAt: encoding.ParseTime(updatedRaw),
		}
		s.nodeOrder = append(s.nodeOrder, id)
		s.adjacency[id] = []string{}
		s.reverse[id] = []string{}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	edgeRows, err := s.db.QueryContext(ctx,
		`SELECT id, source_id, target_id, edge_type, weight, metadata, created_at FROM edges ORDER BY rowid`)
	if err != nil {
		return fmt.Errorf("load edges: %w", err)
	}
	defer func() { _ = edgeRows.Close() }()

	for edgeRows.Next() {
		var (
			id, sourceID, targetID, edgeType, metaJSON, createdRaw string
			weight                                                 float64
		)
		if err := edgeRows.Scan(&id, &sourceID, &targetID, &edgeType, &weight, &metaJSON, &createdRaw); err != nil {
			return fmt.Errorf("scan edge row: %w", err)
		}
		meta, err := encoding.DecodeMetadata(metaJSON)
		if err != nil {
			return fmt.Errorf("corrupt metadata for edge %s: %w", id, err)
		}
		s.edges[id] = &Edge{
			ID:        id,
			SourceID:  sourceID,
			TargetID:  targetID,
			Type:      edgeType,
			Weight:    weight,
			Metadata:  meta,
			CreatedAt: encoding.ParseTime(createdRaw),
		}
		s.edgeOrder = append(s.edgeOrder, id)
		if _, ok := s.adjacency[sourceID]; ok {
			s.adjacency[sourceID] = append(s.adjacency[sourceID], id)
		}
		if _, ok := s.reverse[targetID]; ok {
			s.reverse[targetID] = append(s.reverse[targetID], id)
		}
	}
	return edgeRows.Err()
}

// CreateNode stores a new node and returns its id.
func (s *Store) CreateNode(ctx context.Context, text string, metadata map[string]any) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", fmt.Errorf("create node: %w", ErrClosed)
	}

	now := time.Now().UTC()
	node := &Node{
		ID:        uuid.New().String(),
		Text:      text,
		Metadata:  cloneMeta(metadata),
		CreatedAt: now,
		UpdatedAt: now,
	}

	metaJSON, err := encoding.EncodeMetadata(node.Metadata)
	if err != nil {
		return "", fmt.Errorf("create node: %w", err)
	}

	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO nodes (id, text, metadata, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		node.ID, node.Text, metaJSON, encoding.FormatTime(now), encoding.FormatTime(now)); err != nil {
		return "", fmt.Errorf("create node: %w", err)
	}

	s.nodes[node.ID] = node
	s.nodeOrder = append(s.nodeOrder, node.ID)
	s.adjacency[node.ID] = []string{}
	s.reverse[node.ID] = []string{}

	s.logger.Debug("node created", "id", node.ID)
	return node.ID, nil
}

// GetNode returns a copy of the node, or false when the id is unknown.
func (s *Store) GetNode(id string) (*Node, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	node, ok := s.nodes[id]
	if !ok {
		return nil, false
	}
	return copyNode(node), true
}

// UpdateNode applies the provided fields: a nil text keeps the stored text,
// a nil metadata keeps the stored mapping, a non-nil metadata replaces it
// wholesale. UpdatedAt is refreshed on success. Reports false when the id
// is unknown.
func (s *Store) UpdateNode(ctx context.Context, id string, text *string, metadata map[string]any) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false, fmt.Errorf("update node: %w", ErrClosed)
	}

	node, ok := s.nodes[id]
	if !ok {
		return false, nil
	}

	newText := node.Text
	if text != nil {
		newText = *text
	}
	newMeta := node.Metadata
	if metadata != nil {
		newMeta = cloneMeta(metadata)
	}
	now := time.Now().UTC()

	metaJSON, err := encoding.EncodeMetadata(newMeta)
	if err != nil {
		return false, fmt.Errorf("update node: %w", err)
	}

	if _, err := s.db.ExecContext(ctx,
		`UPDATE nodes SET text = ?, metadata = ?, updated_at = ? WHERE id = ?`,
		newText, metaJSON, encoding.FormatTime(now), id); err != nil {
		return false, fmt.Errorf("update node: %w", err)
	}

	node.Text = newText
	node.Metadata = newMeta
	node.UpdatedAt = now

	s.logger.Debug("node updated", "id", id)
	return true, nil
}

// DeleteNode removes a node together with every edge that touches it, in a
// single transaction. Reports false when the id is unknown.
func (s *Store) DeleteNode(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false, fmt.Errorf("delete node: %w", ErrClosed)
	}

	if _, ok := s.nodes[id]; !ok {
		return false, nil
	}

	// Self-loops appear in both adjacency directions; dedupe so the memory
	// cleanup below runs once per edge.
	incident := make([]string, 0, len(s.adjacency[id])+len(s.reverse[id]))
	seen := make(map[string]bool)
	for _, edgeID := range append(append([]string{}, s.adjacency[id]...), s.reverse[id]...) {
		if !seen[edgeID] {
			seen[edgeID] = true
			incident = append(incident, edgeID)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("delete node: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM edges WHERE source_id = ? OR target_id = ?`, id, id); err != nil {
		return false, fmt.Errorf("delete node: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM nodes WHERE id = ?`, id); err != nil {
		return false, fmt.Errorf("delete node: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("delete node: %w", err)
	}

	for _, edgeID := range incident {
		s.removeEdgeLocked(edgeID)
	}
	delete(s.nodes, id)
	delete(s.adjacency, id)
	delete(s.reverse, id)
	for i, nid := range s.nodeOrder {
		if nid == id {
			s.nodeOrder = append(s.nodeOrder[:i], s.nodeOrder[i+1:]...)
			break
		}
	}

	s.logger.Debug("node deleted", "id", id, "edges_removed", len(incident))
	return true, nil
}

// CreateEdge stores a directed edge from sourceID to targetID. Both
// endpoints must already exist; a violation fails before any state changes.
// An empty edgeType becomes DefaultEdgeType. Weight must be in [0, 1].
func (s *Store) CreateEdge(ctx context.Context, sourceID, targetID, edgeType string, weight float64, metadata map[string]any) (string, error) {
	if edgeType == "" {
		edgeType = DefaultEdgeType
	}
	if weight < 0 || weight > 1 {
		return "", fmt.Errorf("create edge: %w: got %v", ErrInvalidWeight, weight)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", fmt.Errorf("create edge: %w", ErrClosed)
	}

	if _, ok := s.nodes[sourceID]; !ok {
		return "", fmt.Errorf("create edge: source %s: %w", sourceID, ErrEndpointNotFound)
	}
	if _, ok := s.nodes[targetID]; !ok {
		return "", fmt.Errorf("create edge: target %s: %w", targetID, ErrEndpointNotFound)
	}

	now := time.Now().UTC()
	edge := &Edge{
		ID:        uuid.New().String(),
		SourceID:  sourceID,
		TargetID:  targetID,
		Type:      edgeType,
		Weight:    weight,
		Metadata:  cloneMeta(metadata),
		CreatedAt: now,
	}

	metaJSON, err := encoding.EncodeMetadata(edge.Metadata)
	if err != nil {
		return "", fmt.Errorf("create edge: %w", err)
	}

	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO edges (id, source_id, target_id, edge_type, weight, metadata, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		edge.ID, edge.SourceID, edge.TargetID, edge.Type, edge.Weight, metaJSON, encoding.FormatTime(now)); err != nil {
		return "", fmt.Errorf("create edge: %w", err)
	}

	s.edges[edge.ID] = edge
	s.edgeOrder = append(s.edgeOrder, edge.ID)
	s.adjacency[sourceID] = append(s.adjacency[sourceID], edge.ID)
	s.reverse[targetID] = append(s.reverse[targetID], edge.ID)

	s.logger.Debug("edge created", "id", edge.ID, "source", sourceID, "target", targetID, "type", edgeType)
	return edge.ID, nil
}

// GetEdge returns a copy of the edge, or false when the id is unknown.
func (s *Store) GetEdge(id string) (*Edge, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	edge, ok := s.edges[id]
	if !ok {
		return nil, false
	}
	return copyEdge(edge), true
}

// DeleteEdge removes one edge. Reports false when the id is unknown.
func (s *Store) DeleteEdge(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false, fmt.Errorf("delete edge: %w", ErrClosed)
	}

	if _, ok := s.edges[id]; !ok {
		return false, nil
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM edges WHERE id = ?`, id); err != nil {
		return false, fmt.Errorf("delete edge: %w", err)
	}

	s.removeEdgeLocked(id)
	s.logger.Debug("edge deleted", "id", id)
	return true, nil
}

// Neighbors lists the direct outgoing connections of a node in adjacency
// order, optionally restricted to the given edge types. Unknown nodes get
// an empty list.
func (s *Store) Neighbors(nodeID string, types []string) []Neighbor {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.nodes[nodeID]; !ok {
		return nil
	}

	allow := typeSet(types)
	neighbors := make([]Neighbor, 0, len(s.adjacency[nodeID]))
	for _, edgeID := range s.adjacency[nodeID] {
		edge := s.edges[edgeID]
		if allow != nil && !allow[edge.Type] {
			continue
		}
		neighbors = append(neighbors, Neighbor{
			TargetID: edge.TargetID,
			Type:     edge.Type,
			Weight:   edge.Weight,
		})
	}
	return neighbors
}

// OutgoingEdgeIDs returns the ids of a node's outgoing edges in creation
// order.
func (s *Store) OutgoingEdgeIDs(nodeID string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string{}, s.adjacency[nodeID]...)
}

// NodeCount returns the number of stored nodes.
func (s *Store) NodeCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.nodeOrder)
}

// EdgeCount returns the number of stored edges.
func (s *Store) EdgeCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.edgeOrder)
}

// Clear removes every node and edge.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("clear: %w", ErrClosed)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("clear: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM edges`); err != nil {
		return fmt.Errorf("clear: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM nodes`); err != nil {
		return fmt.Errorf("clear: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("clear: %w", err)
	}

	s.nodes = make(map[string]*Node)
	s.nodeOrder = s.nodeOrder[:0]
	s.edges = make(map[string]*Edge)
	s.edgeOrder = s.edgeOrder[:0]
	s.adjacency = make(map[string][]string)
	s.reverse = make(map[string][]string)

	s.logger.Info("graph store cleared")
	return nil
}

// Close releases the database handle. The store rejects calls afterwards.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

// removeEdgeLocked drops an edge from the edge set and both adjacency
// directions. Callers hold the write lock.
func (s *Store) removeEdgeLocked(id string) {
	edge, ok := s.edges[id]
	if !ok {
		return
	}
	s.adjacency[edge.SourceID] = removeID(s.adjacency[edge.SourceID], id)
	s.reverse[edge.TargetID] = removeID(s.reverse[edge.TargetID], id)
	delete(s.edges, id)
	for i, eid := range s.edgeOrder {
		if eid == id {
			s.edgeOrder = append(s.edgeOrder[:i], s.edgeOrder[i+1:]...)
			break
		}
	}
}

func removeID(ids []string, id string) []string {
	for i, v := range ids {
		if v == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}

func typeSet(types []string) map[string]bool {
	if len(types) == 0 {
		return nil
	}
	set := make(map[string]bool, len(types))
	for _, t := range types {
		set[t] = true
	}
	return set
}

func copyNode(n *Node) *Node {
	return &Node{
		ID:        n.ID,
		Text:      n.Text,
		Metadata:  cloneMeta(n.Metadata),
		CreatedAt: n.CreatedAt,
		UpdatedAt: n.UpdatedAt,
	}
}

func copyEdge(e *Edge) *Edge {
	return &Edge{
		ID:        e.ID,
		SourceID:  e.SourceID,
		TargetID:  e.TargetID,
		Type:      e.Type,
		Weight:    e.Weight,
		Metadata:  cloneMeta(e.Metadata),
		CreatedAt: e.CreatedAt,
	}
}

func cloneMeta(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
