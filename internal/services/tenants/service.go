// Package tenants implements tenant management and API key issuance.
package tenants

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/indicium/internal/common"
	"github.com/ternarybob/indicium/internal/interfaces"
	"github.com/ternarybob/indicium/internal/models"
)

// Service manages tenants and their API keys
type Service struct {
	tenantStorage interfaces.TenantStorage
	logger        arbor.ILogger
}

// NewService creates a tenant service
func NewService(tenantStorage interfaces.TenantStorage, logger arbor.ILogger) *Service {
	return &Service{tenantStorage: tenantStorage, logger: logger}
}

// Create creates a tenant
func (s *Service) Create(ctx context.Context, name, slug, ownerEmail string) (*models.Tenant, error) {
	if name == "" || slug == "" || ownerEmail == "" {
		return nil, fmt.Errorf("tenant name, slug and owner email are required")
	}
	tenant := &models.Tenant{
		ID:         common.NewID(common.PrefixTenant),
		Name:       name,
		Slug:       strings.ToLower(slug),
		OwnerEmail: ownerEmail,
		IsActive:   true,
	}
	if err := s.tenantStorage.SaveTenant(ctx, tenant); err != nil {
		return nil, err
	}
	return tenant, nil
}

// Get returns one tenant
func (s *Service) Get(ctx context.Context, tenantID string) (*models.Tenant, error) {
	return s.tenantStorage.GetTenant(ctx, tenantID)
}

// List returns all tenants
func (s *Service) List(ctx context.Context, opts *interfaces.ListOptions) ([]*models.Tenant, error) {
	return s.tenantStorage.ListTenants(ctx, opts)
}

// Update applies edits to a tenant
func (s *Service) Update(ctx context.Context, tenant *models.Tenant) error {
	return s.tenantStorage.UpdateTenant(ctx, tenant)
}

// Suspend deactivates a tenant; its API keys stop authenticating
func (s *Service) Suspend(ctx context.Context, tenantID, reason string) error {
	tenant, err := s.tenantStorage.GetTenant(ctx, tenantID)
	if err != nil {
		return err
	}
	now := time.Now()
	tenant.IsActive = false
	tenant.SuspendedAt = &now
	tenant.SuspensionReason = reason
	return s.tenantStorage.UpdateTenant(ctx, tenant)
}

// IssueKey creates an API key. The plaintext is returned exactly once.
func (s *Service) IssueKey(ctx context.Context, tenantID, name string, scopes []string, createdBy string, expiresAt *time.Time) (*models.TenantAPIKey, string, error) {
	if _, err := s.tenantStorage.GetTenant(ctx, tenantID); err != nil {
		return nil, "", err
	}
	if len(scopes) == 0 {
		scopes = []string{models.ScopeRead, models.ScopeWrite, models.ScopeDelete}
	}

	plaintext := models.GenerateAPIKey()
	key := &models.TenantAPIKey{
		ID:        common.NewID(common.PrefixAPIKey),
		TenantID:  tenantID,
		Name:      name,
		KeyHash:   models.HashAPIKey(plaintext),
		KeyPrefix: plaintext[:models.APIKeyPrefixLength],
		Scopes:    scopes,
		IsActive:  true,
		CreatedBy: createdBy,
		ExpiresAt: expiresAt,
	}
	if err := s.tenantStorage.SaveAPIKey(ctx, key); err != nil {
		return nil, "", err
	}

	s.logger.Info().
		Str("tenant_id", tenantID).
		Str("key_prefix", key.KeyPrefix).
		Msg("API key issued")
	return key, plaintext, nil
}

// RevokeKey deactivates an API key
func (s *Service) RevokeKey(ctx context.Context, tenantID, keyID, revokedBy string) error {
	keys, err := s.tenantStorage.ListAPIKeys(ctx, tenantID)
	if err != nil {
		return err
	}
	for _, key := range keys {
		if key.ID != keyID {
			continue
		}
		now := time.Now()
		key.IsActive = false
		key.RevokedAt = &now
		key.RevokedBy = revokedBy
		return s.tenantStorage.UpdateAPIKey(ctx, key)
	}
	return interfaces.ErrNotFound
}

// ListKeys lists a tenant's API keys (hashes and prefixes only)
func (s *Service) ListKeys(ctx context.Context, tenantID string) ([]*models.TenantAPIKey, error) {
	return s.tenantStorage.ListAPIKeys(ctx, tenantID)
}

// BootstrapKeys registers config-supplied "slug:plaintext" keys at startup,
// creating the tenant when the slug is unknown. Existing hashes are reused.
func (s *Service) BootstrapKeys(ctx context.Context, entries []string) error {
	for _, entry := range entries {
		parts := strings.SplitN(strings.TrimSpace(entry), ":", 2)
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			return fmt.Errorf("invalid bootstrap key entry %q (want slug:key)", entry)
		}
		slug, plaintext := strings.ToLower(parts[0]), parts[1]

		tenant, err := s.tenantStorage.GetTenantBySlug(ctx, slug)
		if err == interfaces.ErrNotFound {
			tenant, err = s.Create(ctx, slug, slug, slug+"@bootstrap.local")
		}
		if err != nil {
			return err
		}

		hash := models.HashAPIKey(plaintext)
		if _, err := s.tenantStorage.GetAPIKeyByHash(ctx, hash); err == nil {
			continue
		} else if err != interfaces.ErrNotFound {
			return err
		}

		key := &models.TenantAPIKey{
			ID:        common.NewID(common.PrefixAPIKey),
			TenantID:  tenant.ID,
			Name:      "bootstrap",
			KeyHash:   hash,
			KeyPrefix: plaintext[:min(len(plaintext), models.APIKeyPrefixLength)],
			Scopes:    []string{models.ScopeRead, models.ScopeWrite, models.ScopeDelete, models.ScopeAdmin},
			IsActive:  true,
			CreatedBy: "bootstrap",
		}
		if err := s.tenantStorage.SaveAPIKey(ctx, key); err != nil {
			return err
		}
		s.logger.Info().Str("tenant_slug", slug).Msg("Bootstrap API key registered")
	}
	return nil
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
