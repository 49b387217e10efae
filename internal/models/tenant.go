package models

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Tenant is the top-level isolation boundary. Every data row carries a
// tenant reference and every read predicates on it.
type Tenant struct {
	ID string `json:"id" badgerhold:"key"`

	Name string `json:"name"`
	Slug string `json:"slug" badgerhold:"index"`

	OwnerEmail   string `json:"owner_email"`
	BillingEmail string `json:"billing_email,omitempty"`

	IsActive         bool       `json:"is_active"`
	SuspendedAt      *time.Time `json:"suspended_at,omitempty"`
	SuspensionReason string     `json:"suspension_reason,omitempty"`

	Settings map[string]interface{} `json:"settings,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// APIKeyPrefixLength is how many plaintext characters are kept for display
const APIKeyPrefixLength = 12

// TenantAPIKey is a long-lived tenant-scoped credential. Only the SHA-256
// hash and a 12-character display prefix are stored; the plaintext key is
// returned exactly once, at creation time.
type TenantAPIKey struct {
	ID       string `json:"id" badgerhold:"key"`
	TenantID string `json:"tenant_id" badgerhold:"index"`

	Name      string `json:"name"`
	KeyHash   string `json:"key_hash" badgerhold:"index"`
	KeyPrefix string `json:"key_prefix"`

	Scopes []string `json:"scopes"`

	IsActive   bool       `json:"is_active"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`

	CreatedBy string     `json:"created_by,omitempty"`
	RevokedAt *time.Time `json:"revoked_at,omitempty"`
	RevokedBy string     `json:"revoked_by,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsUsable reports whether the key authenticates requests right now
func (k *TenantAPIKey) IsUsable(now time.Time) bool {
	if !k.IsActive || k.RevokedAt != nil {
		return false
	}
	if k.ExpiresAt != nil && now.After(*k.ExpiresAt) {
		return false
	}
	return true
}

// HashAPIKey hashes a plaintext API key for storage and lookup
func HashAPIKey(plaintext string) string {
	h := sha256.Sum256([]byte(plaintext))
	return hex.EncodeToString(h[:])
}

// GenerateAPIKey returns a new 64-character hex API key
func GenerateAPIKey() string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		panic("crypto/rand unavailable: " + err.Error())
	}
	return hex.EncodeToString(buf)
}
