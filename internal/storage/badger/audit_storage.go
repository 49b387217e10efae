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

// AuditStorage implements interfaces.AuditStorage for Badger. Entries are
// append-only; there is deliberately no update or delete.
type AuditStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewAuditStorage creates a new AuditStorage instance
func NewAuditStorage(db *BadgerDB, logger arbor.ILogger) *AuditStorage {
	return &AuditStorage{db: db, logger: logger}
}

func (s *AuditStorage) Append(ctx context.Context, entry *models.AuditLog) error {
	if entry.ID == "" {
		return fmt.Errorf("audit entry ID is required")
	}
	if entry.TenantID == "" {
		return fmt.Errorf("audit entry tenant ID is required")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	if err := s.db.Store().Insert(entry.ID, entry); err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}
	return nil
}

func (s *AuditStorage) ListForTenant(ctx context.Context, tenantID string, opts *interfaces.ListOptions) ([]*models.AuditLog, error) {
	query := badgerhold.Where("TenantID").Eq(tenantID).Index("TenantID").
		SortBy("CreatedAt").Reverse()
	if opts != nil {
		if opts.Limit > 0 {
			query = query.Limit(opts.Limit)
		}
		if opts.Offset > 0 {
			query = query.Skip(opts.Offset)
		}
	}
	var entries []models.AuditLog
	if err := s.db.Store().Find(&entries, query); err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	result := make([]*models.AuditLog, len(entries))
	for i := range entries {
		result[i] = &entries[i]
	}
	return result, nil
}
