// Package vectorindex adapts chromem-go as the optional in-process vector
// index over embedding chunks. The badgerhold rows remain the source of
// truth; losing or disabling the index degrades search to a brute-force
// scan, it never loses data.
package vectorindex

import (
	"context"
	"fmt"
	"sync"

	chromem "github.com/philippgille/chromem-go"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/indicium/internal/interfaces"
	"github.com/ternarybob/indicium/internal/models"
)

// Compile-time interface assertion
var _ interfaces.VectorIndex = (*ChromemIndex)(nil)

// ChromemIndex implements interfaces.VectorIndex with one chromem collection
// per tenant, so a query can never cross a tenant boundary.
type ChromemIndex struct {
	db     *chromem.DB
	logger arbor.ILogger

	mu          sync.Mutex
	collections map[string]*chromem.Collection
}

// NewChromemIndex opens (or creates) a persistent index at path. An empty
// path returns (nil, nil): the caller runs without an index.
func NewChromemIndex(path string, logger arbor.ILogger) (*ChromemIndex, error) {
	if path == "" {
		return nil, nil
	}
	db, err := chromem.NewPersistentDB(path, false)
	if err != nil {
		return nil, fmt.Errorf("failed to open vector index: %w", err)
	}
	return &ChromemIndex{
		db:          db,
		logger:      logger,
		collections: make(map[string]*chromem.Collection),
	}, nil
}

// Available reports whether the index can serve queries
func (x *ChromemIndex) Available() bool {
	return x != nil && x.db != nil
}

// collection returns the per-tenant collection, creating it on first use.
// Embeddings are always supplied precomputed, so the embedding func is a
// guard that rejects accidental text-only adds.
func (x *ChromemIndex) collection(tenantID string) (*chromem.Collection, error) {
	x.mu.Lock()
	defer x.mu.Unlock()

	if c, ok := x.collections[tenantID]; ok {
		return c, nil
	}
	c, err := x.db.GetOrCreateCollection("tenant-"+tenantID, nil, rejectEmbeddingFunc)
	if err != nil {
		return nil, fmt.Errorf("failed to open tenant collection: %w", err)
	}
	x.collections[tenantID] = c
	return c, nil
}

func rejectEmbeddingFunc(ctx context.Context, text string) ([]float32, error) {
	return nil, fmt.Errorf("vector index requires precomputed embeddings")
}

func (x *ChromemIndex) Upsert(ctx context.Context, tenantID string, chunk *models.EmbeddingChunk) error {
	c, err := x.collection(tenantID)
	if err != nil {
		return err
	}
	content := chunk.Text
	if content == "" {
		content = chunk.ID
	}
	return c.AddDocument(ctx, chromem.Document{
		ID:        chunk.ID,
		Embedding: chunk.Embedding,
		Content:   content,
		Metadata: map[string]string{
			"version_id": chunk.DocumentVersionID,
			"span_id":    chunk.SpanID,
		},
	})
}

func (x *ChromemIndex) Delete(ctx context.Context, tenantID string, chunkIDs []string) error {
	if len(chunkIDs) == 0 {
		return nil
	}
	c, err := x.collection(tenantID)
	if err != nil {
		return err
	}
	return c.Delete(ctx, nil, nil, chunkIDs...)
}

func (x *ChromemIndex) Query(ctx context.Context, tenantID string, vector []float32, limit int) ([]interfaces.VectorHit, error) {
	c, err := x.collection(tenantID)
	if err != nil {
		return nil, err
	}
	if c.Count() == 0 {
		return nil, nil
	}
	if limit > c.Count() {
		limit = c.Count()
	}

	results, err := c.QueryEmbedding(ctx, vector, limit, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("vector query failed: %w", err)
	}

	hits := make([]interfaces.VectorHit, len(results))
	for i, r := range results {
		hits[i] = interfaces.VectorHit{
			ChunkID:    r.ID,
			Similarity: float64(r.Similarity),
		}
	}
	return hits, nil
}
