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

// TenantStorage implements interfaces.TenantStorage for Badger
type TenantStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewTenantStorage creates a new TenantStorage instance
func NewTenantStorage(db *BadgerDB, logger arbor.ILogger) *TenantStorage {
	return &TenantStorage{db: db, logger: logger}
}

func (s *TenantStorage) SaveTenant(ctx context.Context, tenant *models.Tenant) error {
	if tenant.ID == "" {
		return fmt.Errorf("tenant ID is required")
	}
	if tenant.Slug == "" {
		return fmt.Errorf("tenant slug is required")
	}

	// Slug is unique across tenants
	if existing, err := s.GetTenantBySlug(ctx, tenant.Slug); err == nil && existing.ID != tenant.ID {
		return fmt.Errorf("tenant slug %q taken: %w", tenant.Slug, interfaces.ErrConflict)
	}

	now := time.Now()
	if tenant.CreatedAt.IsZero() {
		tenant.CreatedAt = now
	}
	tenant.UpdatedAt = now
	if err := s.db.Store().Upsert(tenant.ID, tenant); err != nil {
		return fmt.Errorf("failed to save tenant: %w", err)
	}
	return nil
}

func (s *TenantStorage) GetTenant(ctx context.Context, id string) (*models.Tenant, error) {
	var tenant models.Tenant
	if err := s.db.Store().Get(id, &tenant); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, interfaces.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get tenant: %w", err)
	}
	return &tenant, nil
}

func (s *TenantStorage) GetTenantBySlug(ctx context.Context, slug string) (*models.Tenant, error) {
	var tenants []models.Tenant
	err := s.db.Store().Find(&tenants, badgerhold.Where("Slug").Eq(slug).Index("Slug"))
	if err != nil {
		return nil, fmt.Errorf("failed to find tenant by slug: %w", err)
	}
	if len(tenants) == 0 {
		return nil, interfaces.ErrNotFound
	}
	return &tenants[0], nil
}

func (s *TenantStorage) UpdateTenant(ctx context.Context, tenant *models.Tenant) error {
	tenant.UpdatedAt = time.Now()
	if err := s.db.Store().Update(tenant.ID, tenant); err != nil {
		return fmt.Errorf("failed to update tenant: %w", err)
	}
	return nil
}

func (s *TenantStorage) ListTenants(ctx context.Context, opts *interfaces.ListOptions) ([]*models.Tenant, error) {
	query := badgerhold.Where("ID").Ne("").SortBy("CreatedAt").Reverse()
	if opts != nil {
		if opts.Limit > 0 {
			query = query.Limit(opts.Limit)
		}
		if opts.Offset > 0 {
			query = query.Skip(opts.Offset)
		}
	}
	var tenants []models.Tenant
	if err := s.db.Store().Find(&tenants, query); err != nil {
		return nil, fmt.Errorf("failed to list tenants: %w", err)
	}
	result := make([]*models.Tenant, len(tenants))
	for i := range tenants {
		result[i] = &tenants[i]
	}
	return result, nil
}

func (s *TenantStorage) SaveAPIKey(ctx context.Context, key *models.TenantAPIKey) error {
	if key.ID == "" || key.TenantID == "" {
		return fmt.Errorf("API key ID and tenant ID are required")
	}
	if key.KeyHash == "" {
		return fmt.Errorf("API key hash is required")
	}
	now := time.Now()
	if key.CreatedAt.IsZero() {
		key.CreatedAt = now
	}
	key.UpdatedAt = now
	if err := s.db.Store().Upsert(key.ID, key); err != nil {
		return fmt.Errorf("failed to save API key: %w", err)
	}
	return nil
}

func (s *TenantStorage) GetAPIKeyByHash(ctx context.Context, keyHash string) (*models.TenantAPIKey, error) {
	var keys []models.TenantAPIKey
	err := s.db.Store().Find(&keys, badgerhold.Where("KeyHash").Eq(keyHash).Index("KeyHash"))
	if err != nil {
		return nil, fmt.Errorf("failed to find API key: %w", err)
	}
	if len(keys) == 0 {
		return nil, interfaces.ErrNotFound
	}
	return &keys[0], nil
}

func (s *TenantStorage) UpdateAPIKey(ctx context.Context, key *models.TenantAPIKey) error {
	key.UpdatedAt = time.Now()
	if err := s.db.Store().Update(key.ID, key); err != nil {
		return fmt.Errorf("failed to update API key: %w", err)
	}
	return nil
}

func (s *TenantStorage) ListAPIKeys(ctx context.Context, tenantID string) ([]*models.TenantAPIKey, error) {
	var keys []models.TenantAPIKey
	err := s.db.Store().Find(&keys, badgerhold.
		Where("TenantID").Eq(tenantID).Index("TenantID"))
	if err != nil {
		return nil, fmt.Errorf("failed to list API keys: %w", err)
	}
	result := make([]*models.TenantAPIKey, len(keys))
	for i := range keys {
		result[i] = &keys[i]
	}
	return result, nil
}
