package domain

import (
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Permission is a capability an API key can be scoped to.
type Permission string

const (
	PermissionRead     Permission = "read"
	PermissionDeposit  Permission = "deposit"
	PermissionTransfer Permission = "transfer"
)

// AllPermissions is the fixed permission vocabulary.
var AllPermissions = []Permission{PermissionRead, PermissionDeposit, PermissionTransfer}

// DefaultMaxActiveKeys is the per-user quota of simultaneously active keys.
const DefaultMaxActiveKeys = 5

// NormalizePermissions lowercases, deduplicates and filters raw permission
// names against AllPermissions. Input order is preserved.
func NormalizePermissions(raw []string) []Permission {
	out := make([]Permission, 0, len(raw))
	for _, r := range raw {
		p := Permission(strings.ToLower(strings.TrimSpace(r)))
		if !slices.Contains(AllPermissions, p) || slices.Contains(out, p) {
			continue
		}
		out = append(out, p)
	}
	return out
}

// ExpiryToken is one of the fixed lifetimes a key can be issued with.
type ExpiryToken string

const (
	ExpiryOneHour  ExpiryToken = "1H"
	ExpiryOneDay   ExpiryToken = "1D"
	ExpiryOneMonth ExpiryToken = "1M"
	ExpiryOneYear  ExpiryToken = "1Y"
)

var expiryDurations = map[ExpiryToken]time.Duration{
	ExpiryOneHour:  time.Hour,
	ExpiryOneDay:   24 * time.Hour,
	ExpiryOneMonth: 30 * 24 * time.Hour,
	ExpiryOneYear:  365 * 24 * time.Hour,
}

// ParseExpiry maps an expiry token (case-insensitive) to an absolute expiry
// relative to now. ok is false for unknown tokens.
func ParseExpiry(token string, now time.Time) (expiresAt time.Time, ok bool) {
	d, ok := expiryDurations[ExpiryToken(strings.ToUpper(strings.TrimSpace(token)))]
	if !ok {
		return time.Time{}, false
	}
	return now.Add(d), true
}

// APIKey is a scoped, time-boxed credential. Only a digest of the secret is stored.
type APIKey struct {
	ID          uuid.UUID    `json:"id"`
	UserID      uuid.UUID    `json:"user_id"`
	Name        string       `json:"name"`
	KeyHash     string       `json:"-"`
	KeyPrefix   string       `json:"key_prefix"`
	Permissions []Permission `json:"permissions"`
	Revoked     bool         `json:"revoked"`
	ExpiresAt   time.Time    `json:"expires_at"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// IsExpired reports whether the key has reached its expiry at now.
func (k *APIKey) IsExpired(now time.Time) bool {
	return !now.Before(k.ExpiresAt)
}

// IsActive reports whether the key counts against the quota at now.
func (k *APIKey) IsActive(now time.Time) bool {
	return !k.Revoked && !k.IsExpired(now)
}

// HasPermission reports whether the key is scoped to p.
func (k *APIKey) HasPermission(p Permission) bool {
	return slices.Contains(k.Permissions, p)
}
