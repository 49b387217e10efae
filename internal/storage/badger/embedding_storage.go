package badger

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/indicium/internal/interfaces"
	"github.com/ternarybob/indicium/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// EmbeddingStorage implements interfaces.EmbeddingStorage for Badger
type EmbeddingStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewEmbeddingStorage creates a new EmbeddingStorage instance
func NewEmbeddingStorage(db *BadgerDB, logger arbor.ILogger) *EmbeddingStorage {
	return &EmbeddingStorage{db: db, logger: logger}
}

func (s *EmbeddingStorage) SaveChunk(ctx context.Context, chunk *models.EmbeddingChunk) error {
	if chunk.ID == "" {
		return fmt.Errorf("chunk ID is required")
	}
	if chunk.TenantID == "" {
		return fmt.Errorf("chunk tenant ID is required")
	}
	if chunk.CreatedAt.IsZero() {
		chunk.CreatedAt = time.Now()
	}
	if err := s.db.Store().Upsert(chunk.ID, chunk); err != nil {
		return fmt.Errorf("failed to save embedding chunk: %w", err)
	}
	return nil
}

func (s *EmbeddingStorage) GetChunkBySpan(ctx context.Context, tenantID, spanID string) (*models.EmbeddingChunk, error) {
	var chunks []models.EmbeddingChunk
	err := s.db.Store().Find(&chunks, badgerhold.
		Where("SpanID").Eq(spanID).Index("SpanID").
		And("TenantID").Eq(tenantID))
	if err != nil {
		return nil, fmt.Errorf("failed to find chunk by span: %w", err)
	}
	if len(chunks) == 0 {
		return nil, interfaces.ErrNotFound
	}
	return &chunks[0], nil
}

func (s *EmbeddingStorage) ListChunks(ctx context.Context, tenantID string) ([]*models.EmbeddingChunk, error) {
	var chunks []models.EmbeddingChunk
	err := s.db.Store().Find(&chunks, badgerhold.
		Where("TenantID").Eq(tenantID).Index("TenantID"))
	if err != nil {
		return nil, fmt.Errorf("failed to list chunks: %w", err)
	}
	return chunkPtrs(chunks), nil
}

func (s *EmbeddingStorage) ListChunksForVersion(ctx context.Context, tenantID, versionID string) ([]*models.EmbeddingChunk, error) {
	var chunks []models.EmbeddingChunk
	err := s.db.Store().Find(&chunks, badgerhold.
		Where("DocumentVersionID").Eq(versionID).Index("DocumentVersionID").
		And("TenantID").Eq(tenantID).
		SortBy("ChunkIndex"))
	if err != nil {
		return nil, fmt.Errorf("failed to list chunks for version: %w", err)
	}
	return chunkPtrs(chunks), nil
}

func (s *EmbeddingStorage) ListChunksForVersions(ctx context.Context, tenantID string, versionIDs []string) ([]*models.EmbeddingChunk, error) {
	if len(versionIDs) == 0 {
		return nil, nil
	}
	ids := make([]interface{}, len(versionIDs))
	for i, id := range versionIDs {
		ids[i] = id
	}
	var chunks []models.EmbeddingChunk
	err := s.db.Store().Find(&chunks, badgerhold.
		Where("DocumentVersionID").In(ids...).Index("DocumentVersionID").
		And("TenantID").Eq(tenantID))
	if err != nil {
		return nil, fmt.Errorf("failed to list chunks for versions: %w", err)
	}
	return chunkPtrs(chunks), nil
}

func (s *EmbeddingStorage) DeleteChunksForVersion(ctx context.Context, tenantID, versionID string) (int, error) {
	chunks, err := s.ListChunksForVersion(ctx, tenantID, versionID)
	if err != nil {
		return 0, err
	}
	deleted := 0
	for _, c := range chunks {
		if err := s.db.Store().Delete(c.ID, &models.EmbeddingChunk{}); err != nil && err != badgerhold.ErrNotFound {
			return deleted, fmt.Errorf("failed to delete chunk %s: %w", c.ID, err)
		}
		deleted++
	}
	return deleted, nil
}

func (s *EmbeddingStorage) CountChunksForVersion(ctx context.Context, tenantID, versionID string) (int, error) {
	count, err := s.db.Store().Count(&models.EmbeddingChunk{}, badgerhold.
		Where("DocumentVersionID").Eq(versionID).Index("DocumentVersionID").
		And("TenantID").Eq(tenantID))
	if err != nil {
		return 0, fmt.Errorf("failed to count chunks: %w", err)
	}
	return int(count), nil
}

func chunkPtrs(chunks []models.EmbeddingChunk) []*models.EmbeddingChunk {
	result := make([]*models.EmbeddingChunk, len(chunks))
	for i := range chunks {
		result[i] = &chunks[i]
	}
	return result
}
