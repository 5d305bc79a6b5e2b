package core

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/liliang-cn/sqgraph/internal/encoding"
)

// VectorRecord is one stored embedding together with the node it belongs to.
// NodeID is mirrored into Metadata under the "node_id" key so the metadata
// alone is enough to resolve the owning node.
type VectorRecord struct {
	ID        string         `json:"id"`
	NodeID    string         `json:"node_id"`
	Embedding []float32      `json:"embedding"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// SearchResult pairs a stored record with its similarity to the query.
type SearchResult struct {
	ID     string  `json:"id"`
	NodeID string  `json:"node_id"`
	Score  float64 `json:"score"`
}

// Option configures a VectorIndex.
type Option func(*VectorIndex)

// WithSimilarity overrides the scoring function used by Search.
// The default is CosineSimilarity.
func WithSimilarity(fn SimilarityFunc) Option {
	return func(x *VectorIndex) {
		if fn != nil {
			x.simFn = fn
		}
	}
}

// WithLogger attaches a logger. The default discards everything.
func WithLogger(l Logger) Option {
	return func(x *VectorIndex) {
		if l != nil {
			x.logger = l
		}
	}
}

// VectorIndex stores fixed-dimension embeddings in SQLite and keeps a full
// in-memory copy for exact similarity search. Every mutation is written to
// the database first and committed to memory only after the transaction
// succeeds, so a failed write never leaves the cache ahead of the file.
//
// A node owns at most one live record: adding a vector for a node that
// already has one replaces the old record in the same transaction.
type VectorIndex struct {
	mu     sync.RWMutex
	db     *sql.DB
	path   string
	dim    int
	simFn  SimilarityFunc
	logger Logger

	vectors map[string]*VectorRecord
	order   []string          // insertion order, authoritative for search tie-breaks
	byNode  map[string]string // node id -> live vector id
	closed  bool
}

const vectorSchema = `
CREATE TABLE IF NOT EXISTS vectors (
	id TEXT PRIMARY KEY,
	node_id TEXT NOT NULL UNIQUE,
	embedding BLOB NOT NULL,
	metadata TEXT NOT NULL DEFAULT '{}',
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL
);
`

// New opens (creating if necessary) the index at path and loads every
// persisted record into memory before returning. dim fixes the embedding
// dimension; every vector accepted afterwards must have exactly dim values.
func New(ctx context.Context, path string, dim int, opts ...Option) (*VectorIndex, error) {
	if dim <= 0 {
		return nil, wrapError("open", fmt.Errorf("%w: dimensions must be positive, got %d", ErrInvalidInput, dim))
	}

	x := &VectorIndex{
		path:    path,
		dim:     dim,
		simFn:   CosineSimilarity,
		logger:  NopLogger(),
		vectors: make(map[string]*VectorRecord),
		byNode:  make(map[string]string),
	}
	for _, opt := range opts {
		opt(x)
	}

	// _journal_mode=WAL: better concurrency
	// _synchronous=NORMAL: good balance of safety and speed
	// _busy_timeout=5000: wait up to 5s for a lock instead of failing
	// _cache_size=-2000: 2MB page cache
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_cache_size=-2000", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, wrapError("open", fmt.Errorf("failed to open database: %w", err))
	}
	// Mutations are serialized by the store mutex; one connection keeps the
	// write path and the snapshot reads on the same handle.
	db.SetMaxOpenConns(1)
	x.db = db

	if _, err := db.ExecContext(ctx, vectorSchema); err != nil {
		_ = db.Close()
		return nil, wrapError("open", fmt.Errorf("failed to create schema: %w", err))
	}

	if err := x.loadAll(ctx); err != nil {
		_ = db.Close()
		return nil, wrapError("open", err)
	}

	x.logger.Info("vector index ready", "path", path, "dimensions", dim, "records", len(x.order))
	return x, nil
}

// loadAll reads every persisted record into the cache in rowid order, which
// preserves the original insertion order across restarts.
func (x *VectorIndex) loadAll(ctx context.Context) error {
	rows, err := x.db.QueryContext(ctx,
		`SELECT id, node_id, embedding, metadata, created_at, updated_at FROM vectors ORDER BY rowid`)
	if err != nil {
		return fmt.Errorf("failed to load vectors: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var (
			id, nodeID, metaJSON   string
			blob                   []byte
			createdRaw, updatedRaw string
		)
		if err := rows.Scan(&id, &nodeID, &blob, &metaJSON, &createdRaw, &updatedRaw); err != nil {
			return fmt.Errorf("failed to scan vector row: %w", err)
		}

		vec, err := encoding.DecodeVector(blob)
		if err != nil {
			return fmt.Errorf("corrupt embedding for vector %s: %w", id, err)
		}
		meta, err := encoding.DecodeMetadata(metaJSON)
		if err != nil {
			return fmt.Errorf("corrupt metadata for vector %s: %w", id, err)
		}

		rec := &VectorRecord{
			ID:        id,
			NodeID:    nodeID,
			Embedding: vec,
			Metadata:  meta,
			CreatedAt: encoding.ParseTime(createdRaw),
			UpdatedAt: encoding.ParseTime(updatedRaw),
		}
		x.vectors[id] = rec
		x.order = append(x.order, id)
		x.byNode[nodeID] = id
	}

	return rows.Err()
}

// Add stores an embedding for nodeID and returns the fresh vector id.
// A node that already has a live record gets it replaced atomically.
func (x *VectorIndex) Add(ctx context.Context, nodeID string, embedding []float32, metadata map[string]any) (string, error) {
	if len(embedding) == 0 {
		return "", wrapError("add", fmt.Errorf("%w: embedding is empty", ErrInvalidInput))
	}
	if len(embedding) != x.dim {
		return "", wrapError("add", fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(embedding), x.dim))
	}
	if err := encoding.ValidateVector(embedding); err != nil {
		return "", wrapError("add", fmt.Errorf("%w: embedding has non-finite values", ErrInvalidInput))
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	if x.closed {
		return "", wrapError("add", ErrClosed)
	}

	now := time.Now().UTC()
	meta := cloneMeta(metadata)
	meta["node_id"] = nodeID

	rec := &VectorRecord{
		ID:        uuid.New().String(),
		NodeID:    nodeID,
		Embedding: cloneVec(embedding),
		Metadata:  meta,
		CreatedAt: now,
		UpdatedAt: now,
	}

	blob, err := encoding.EncodeVector(rec.Embedding)
	if err != nil {
		return "", wrapError("add", err)
	}
	metaJSON, err := encoding.EncodeMetadata(rec.Metadata)
	if err != nil {
		return "", wrapError("add", err)
	}

	oldID, replacing := x.byNode[nodeID]

	tx, err := x.db.BeginTx(ctx, nil)
	if err != nil {
		return "", wrapError("add", err)
	}
	defer func() { _ = tx.Rollback() }()

	if replacing {
		if _, err := tx.ExecContext(ctx, `DELETE FROM vectors WHERE id = ?`, oldID); err != nil {
			return "", wrapError("add", err)
		}
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO vectors (id, node_id, embedding, metadata, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.NodeID, blob, metaJSON, encoding.FormatTime(now), encoding.FormatTime(now)); err != nil {
		return "", wrapError("add", err)
	}
	if err := tx.Commit(); err != nil {
		return "", wrapError("add", err)
	}

	if replacing {
		x.removeLocked(oldID)
		x.logger.Debug("vector replaced", "node", nodeID, "old", oldID, "new", rec.ID)
	}
	x.vectors[rec.ID] = rec
	x.order = append(x.order, rec.ID)
	x.byNode[nodeID] = rec.ID

	x.logger.Debug("vector added", "id", rec.ID, "node", nodeID)
	return rec.ID, nil
}

// Update replaces the embedding of an existing record and merges metadata
// over the stored mapping. It reports false when the id is unknown. The
// record's node binding never changes.
func (x *VectorIndex) Update(ctx context.Context, id string, embedding []float32, metadata map[string]any) (bool, error) {
	if len(embedding) == 0 {
		return false, wrapError("update", fmt.Errorf("%w: embedding is empty", ErrInvalidInput))
	}
	if len(embedding) != x.dim {
		return false, wrapError("update", fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(embedding), x.dim))
	}
	if err := encoding.ValidateVector(embedding); err != nil {
		return false, wrapError("update", fmt.Errorf("%w: embedding has non-finite values", ErrInvalidInput))
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	if x.closed {
		return false, wrapError("update", ErrClosed)
	}

	rec, ok := x.vectors[id]
	if !ok {
		return false, nil
	}

	now := time.Now().UTC()
	newMeta := cloneMeta(rec.Metadata)
	for k, v := range metadata {
		newMeta[k] = v
	}
	newMeta["node_id"] = rec.NodeID

	newVec := cloneVec(embedding)
	blob, err := encoding.EncodeVector(newVec)
	if err != nil {
		return false, wrapError("update", err)
	}
	metaJSON, err := encoding.EncodeMetadata(newMeta)
	if err != nil {
		return false, wrapError("update", err)
	}

	if _, err := x.db.ExecContext(ctx,
		`UPDATE vectors SET embedding = ?, metadata = ?, updated_at = ? WHERE id = ?`,
		blob, metaJSON, encoding.FormatTime(now), id); err != nil {
		return false, wrapError("update", err)
	}

	rec.Embedding = newVec
	rec.Metadata = newMeta
	rec.UpdatedAt = now

	x.logger.Debug("vector updated", "id", id)
	return true, nil
}

// Get returns a copy of the record, or false when the id is unknown.
func (x *VectorIndex) Get(id string) (*VectorRecord, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	rec, ok := x.vectors[id]
	if !ok {
		return nil, false
	}
	return copyRecord(rec), true
}

// FindByNode returns the id of the live vector bound to nodeID, if any.
func (x *VectorIndex) FindByNode(nodeID string) (string, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	id, ok := x.byNode[nodeID]
	return id, ok
}

// Delete removes a record from the database and the cache.
// It reports false when the id is unknown.
func (x *VectorIndex) Delete(ctx context.Context, id string) (bool, error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.closed {
		return false, wrapError("delete", ErrClosed)
	}

	if _, ok := x.vectors[id]; !ok {
		return false, nil
	}

	if _, err := x.db.ExecContext(ctx, `DELETE FROM vectors WHERE id = ?`, id); err != nil {
		return false, wrapError("delete", err)
	}

	x.removeLocked(id)
	x.logger.Debug("vector deleted", "id", id)
	return true, nil
}

// Search scores every stored record against query and returns the topK best,
// sorted by descending score. Equal scores keep insertion order. The query
// length is validated against the configured dimension before anything else,
// including on an empty index.
func (x *VectorIndex) Search(query []float32, topK int) ([]SearchResult, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.searchLocked(query, topK)
}

// SearchAll is Search over every stored record.
func (x *VectorIndex) SearchAll(query []float32) ([]SearchResult, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.searchLocked(query, len(x.order))
}

func (x *VectorIndex) searchLocked(query []float32, topK int) ([]SearchResult, error) {
	if x.closed {
		return nil, wrapError("search", ErrClosed)
	}
	if len(query) != x.dim {
		return nil, wrapError("search", fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(query), x.dim))
	}

	results := make([]SearchResult, 0, len(x.order))
	if topK <= 0 {
		return results, nil
	}

	for _, id := range x.order {
		rec := x.vectors[id]
		results = append(results, SearchResult{
			ID:     id,
			NodeID: rec.NodeID,
			Score:  x.simFn(query, rec.Embedding),
		})
	}

	// Stable keeps the scan (insertion) order for equal scores.
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// Count returns the number of live records.
func (x *VectorIndex) Count() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.order)
}

// Dim returns the embedding dimension the index was created with.
func (x *VectorIndex) Dim() int {
	return x.dim
}

// Clear removes every record.
func (x *VectorIndex) Clear(ctx context.Context) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.closed {
		return wrapError("clear", ErrClosed)
	}

	if _, err := x.db.ExecContext(ctx, `DELETE FROM vectors`); err != nil {
		return wrapError("clear", err)
	}

	removed := len(x.order)
	x.vectors = make(map[string]*VectorRecord)
	x.order = x.order[:0]
	x.byNode = make(map[string]string)

	x.logger.Info("vector index cleared", "removed", removed)
	return nil
}

// Close releases the database handle. The index rejects calls afterwards.
func (x *VectorIndex) Close() error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.closed {
		return nil
	}
	x.closed = true
	return x.db.Close()
}

// removeLocked drops a record from all in-memory structures.
// Callers hold the write lock.
func (x *VectorIndex) removeLocked(id string) {
	rec, ok := x.vectors[id]
	if !ok {
		return
	}
	delete(x.vectors, id)
	if x.byNode[rec.NodeID] == id {
		delete(x.byNode, rec.NodeID)
	}
	for i, oid := range x.order {
		if oid == id {
			x.order = append(x.order[:i], x.order[i+1:]...)
			break
		}
	}
}

func copyRecord(rec *VectorRecord) *VectorRecord {
	return &VectorRecord{
		ID:        rec.ID,
		NodeID:    rec.NodeID,
		Embedding: cloneVec(rec.Embedding),
		Metadata:  cloneMeta(rec.Metadata),
		CreatedAt: rec.CreatedAt,
		UpdatedAt: rec.UpdatedAt,
	}
}

func cloneVec(v []float32) []float32 {
	out := make([]float32, len(v))
	copy(out, v)
	return out
}

func cloneMeta(m map[string]any) map[string]any {
	out := make(map[string]any, len(m)+1)
	for k, v := range m {
		out[k] = v
	}
	return out
}
