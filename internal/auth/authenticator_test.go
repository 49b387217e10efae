package auth

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/indicium/internal/common"
	"github.com/ternarybob/indicium/internal/models"
	badgerstore "github.com/ternarybob/indicium/internal/storage/badger"
)

func newTestAuthenticator(t *testing.T) (*Authenticator, *badgerstore.Manager) {
	t.Helper()
	manager, err := badgerstore.NewManager(common.GetLogger(), &common.BadgerConfig{Path: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { manager.Close() })
	return NewAuthenticator(manager.TenantStorage(), common.GetLogger()), manager
}

func seedKey(t *testing.T, manager *badgerstore.Manager, active bool, expires *time.Time) (string, *models.Tenant) {
	t.Helper()
	ctx := context.Background()

	tenant := &models.Tenant{
		ID:         common.NewID(common.PrefixTenant),
		Name:       "Acme",
		Slug:       "acme-" + common.NewID("s")[:8],
		OwnerEmail: "o@acme.test",
		IsActive:   true,
	}
	require.NoError(t, manager.TenantStorage().SaveTenant(ctx, tenant))

	plaintext := models.GenerateAPIKey()
	key := &models.TenantAPIKey{
		ID:        common.NewID(common.PrefixAPIKey),
		TenantID:  tenant.ID,
		Name:      "test",
		KeyHash:   models.HashAPIKey(plaintext),
		KeyPrefix: plaintext[:models.APIKeyPrefixLength],
		Scopes:    []string{models.ScopeRead, models.ScopeWrite},
		IsActive:  active,
		ExpiresAt: expires,
	}
	require.NoError(t, manager.TenantStorage().SaveAPIKey(ctx, key))
	return plaintext, tenant
}

func TestAuthenticateValidKey(t *testing.T) {
	authenticator, manager := newTestAuthenticator(t)
	plaintext, tenant := seedKey(t, manager, true, nil)

	r := httptest.NewRequest("GET", "/api/documents", nil)
	r.Header.Set(APIKeyHeader, plaintext)

	principal, err := authenticator.Authenticate(context.Background(), r)
	require.NoError(t, err)
	assert.Equal(t, tenant.ID, principal.TenantID)
	assert.True(t, principal.HasScope(models.ScopeRead))
	assert.Contains(t, principal.ActorID, "key:")
}

func TestAuthenticateMissingCredential(t *testing.T) {
	authenticator, _ := newTestAuthenticator(t)
	r := httptest.NewRequest("GET", "/api/documents", nil)

	_, err := authenticator.Authenticate(context.Background(), r)
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestAuthenticateWrongKey(t *testing.T) {
	authenticator, manager := newTestAuthenticator(t)
	seedKey(t, manager, true, nil)

	r := httptest.NewRequest("GET", "/api/documents", nil)
	r.Header.Set(APIKeyHeader, "not-a-real-key")

	_, err := authenticator.Authenticate(context.Background(), r)
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestAuthenticateRevokedKey(t *testing.T) {
	authenticator, manager := newTestAuthenticator(t)
	plaintext, _ := seedKey(t, manager, false, nil)

	r := httptest.NewRequest("GET", "/api/documents", nil)
	r.Header.Set(APIKeyHeader, plaintext)

	_, err := authenticator.Authenticate(context.Background(), r)
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestAuthenticateExpiredKey(t *testing.T) {
	authenticator, manager := newTestAuthenticator(t)
	expired := time.Now().Add(-time.Hour)
	plaintext, _ := seedKey(t, manager, true, &expired)

	r := httptest.NewRequest("GET", "/api/documents", nil)
	r.Header.Set(APIKeyHeader, plaintext)

	_, err := authenticator.Authenticate(context.Background(), r)
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestAuthenticateBearerReserved(t *testing.T) {
	authenticator, _ := newTestAuthenticator(t)
	r := httptest.NewRequest("GET", "/api/documents", nil)
	r.Header.Set("Authorization", "Bearer some-jwt")

	_, err := authenticator.Authenticate(context.Background(), r)
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestPrincipalContext(t *testing.T) {
	principal := models.Principal{TenantID: "t1", ActorID: "a1"}
	ctx := WithPrincipal(context.Background(), principal)

	got, ok := PrincipalFrom(ctx)
	assert.True(t, ok)
	assert.Equal(t, principal, got)

	_, ok = PrincipalFrom(context.Background())
	assert.False(t, ok)
}
