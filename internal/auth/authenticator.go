// Package auth resolves request credentials to a Principal. API keys are the
// supported mechanism; bearer tokens are a reserved surface for a future
// identity provider and are rejected as unauthenticated.
package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/indicium/internal/interfaces"
	"github.com/ternarybob/indicium/internal/models"
)

// ErrUnauthenticated is returned for missing or invalid credentials
var ErrUnauthenticated = errors.New("unauthenticated")

// APIKeyHeader carries the tenant API key
const APIKeyHeader = "X-API-Key"

// Authenticator resolves credentials to principals
type Authenticator struct {
	tenantStorage interfaces.TenantStorage
	logger        arbor.ILogger
}

// NewAuthenticator creates an authenticator
func NewAuthenticator(tenantStorage interfaces.TenantStorage, logger arbor.ILogger) *Authenticator {
	return &Authenticator{tenantStorage: tenantStorage, logger: logger}
}

// Authenticate resolves the request's credential to a Principal
func (a *Authenticator) Authenticate(ctx context.Context, r *http.Request) (models.Principal, error) {
	if key := r.Header.Get(APIKeyHeader); key != "" {
		return a.authenticateAPIKey(ctx, key)
	}
	if authz := r.Header.Get("Authorization"); strings.HasPrefix(authz, "Bearer ") {
		// Bearer tokens are reserved for a future identity provider; until
		// one is wired they do not authenticate
		return models.Principal{}, ErrUnauthenticated
	}
	return models.Principal{}, ErrUnauthenticated
}

func (a *Authenticator) authenticateAPIKey(ctx context.Context, plaintext string) (models.Principal, error) {
	key, err := a.tenantStorage.GetAPIKeyByHash(ctx, models.HashAPIKey(plaintext))
	if err != nil {
		if err == interfaces.ErrNotFound {
			return models.Principal{}, ErrUnauthenticated
		}
		return models.Principal{}, err
	}

	now := time.Now()
	if !key.IsUsable(now) {
		return models.Principal{}, ErrUnauthenticated
	}

	tenant, err := a.tenantStorage.GetTenant(ctx, key.TenantID)
	if err != nil {
		return models.Principal{}, ErrUnauthenticated
	}
	if !tenant.IsActive {
		return models.Principal{}, ErrUnauthenticated
	}

	key.LastUsedAt = &now
	if err := a.tenantStorage.UpdateAPIKey(ctx, key); err != nil {
		a.logger.Warn().Err(err).Str("key_prefix", key.KeyPrefix).Msg("Failed to record key usage")
	}

	return models.Principal{
		TenantID: tenant.ID,
		ActorID:  "key:" + key.KeyPrefix,
		Scopes:   key.Scopes,
	}, nil
}

type principalContextKey struct{}

// WithPrincipal stores the principal on the context
func WithPrincipal(ctx context.Context, principal models.Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, principal)
}

// PrincipalFrom reads the principal stored by the auth middleware
func PrincipalFrom(ctx context.Context) (models.Principal, bool) {
	principal, ok := ctx.Value(principalContextKey{}).(models.Principal)
	return principal, ok
}
