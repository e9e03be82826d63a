package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestNormalizePermissions(t *testing.T) {
	tests := []struct {
		name string
		raw  []string
		want []Permission
	}{
		{"already clean", []string{"read", "transfer"}, []Permission{PermissionRead, PermissionTransfer}},
		{"case and whitespace", []string{" READ ", "Deposit"}, []Permission{PermissionRead, PermissionDeposit}},
		{"duplicates collapse", []string{"read", "READ", "read"}, []Permission{PermissionRead}},
		{"unknown filtered", []string{"admin", "transfer", "withdraw"}, []Permission{PermissionTransfer}},
		{"nothing valid", []string{"admin", ""}, []Permission{}},
		{"nil input", nil, []Permission{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizePermissions(tt.raw))
		})
	}
}

func TestParseExpiry(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		token  string
		want   time.Duration
		wantOK bool
	}{
		{"1H", time.Hour, true},
		{"1d", 24 * time.Hour, true},
		{" 1M ", 30 * 24 * time.Hour, true},
		{"1Y", 365 * 24 * time.Hour, true},
		{"2H", 0, false},
		{"", 0, false},
		{"1W", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.token, func(t *testing.T) {
			got, ok := ParseExpiry(tt.token, now)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, now.Add(tt.want), got)
			}
		})
	}
}

func TestAPIKey_ActiveAndExpired(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name        string
		key         APIKey
		wantExpired bool
		wantActive  bool
	}{
		{"fresh", APIKey{ExpiresAt: now.Add(time.Hour)}, false, true},
		{"revoked", APIKey{ExpiresAt: now.Add(time.Hour), Revoked: true}, false, false},
		{"expired", APIKey{ExpiresAt: now.Add(-time.Second)}, true, false},
		{"expires exactly now", APIKey{ExpiresAt: now}, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantExpired, tt.key.IsExpired(now))
			assert.Equal(t, tt.wantActive, tt.key.IsActive(now))
		})
	}
}

func TestPrincipal_Can(t *testing.T) {
	readOnly := &APIKey{Permissions: []Permission{PermissionRead}}

	tests := []struct {
		name string
		p    *Principal
		perm Permission
		want bool
	}{
		{"user has everything", &Principal{Kind: PrincipalUser}, PermissionTransfer, true},
		{"key scoped read", &Principal{Kind: PrincipalAPIKey, Key: readOnly}, PermissionRead, true},
		{"key missing transfer", &Principal{Kind: PrincipalAPIKey, Key: readOnly}, PermissionTransfer, false},
		{"key principal without key", &Principal{Kind: PrincipalAPIKey}, PermissionRead, false},
		{"nil principal", nil, PermissionRead, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.p.Can(tt.perm))
		})
	}
}

func TestTransaction_IsTerminal(t *testing.T) {
	tests := []struct {
		status TransactionStatus
		want   bool
	}{
		{TransactionStatusPending, false},
		{TransactionStatusSuccess, true},
		{TransactionStatusFailed, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			tx := &Transaction{Status: tt.status}
			assert.Equal(t, tt.want, tx.IsTerminal())
		})
	}
}

func TestTransaction_DirectionFor(t *testing.T) {
	alice, bob := uuid.New(), uuid.New()
	transfer := &Transaction{Type: TransactionTypeTransfer, FromUserID: &alice, ToUserID: &bob}
	deposit := &Transaction{Type: TransactionTypeDeposit, UserID: &alice}

	assert.Equal(t, DirectionDebit, transfer.DirectionFor(alice))
	assert.Equal(t, DirectionCredit, transfer.DirectionFor(bob))
	assert.Equal(t, DirectionCredit, deposit.DirectionFor(alice))

	assert.True(t, transfer.BelongsTo(bob))
	assert.True(t, deposit.BelongsTo(alice))
	assert.False(t, deposit.BelongsTo(bob))
}

func TestIsValidWalletNumber(t *testing.T) {
	assert.True(t, IsValidWalletNumber("012345678901"))
	assert.False(t, IsValidWalletNumber("12345678901"))
	assert.False(t, IsValidWalletNumber("1234567890123"))
	assert.False(t, IsValidWalletNumber("12345678901a"))
}

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "ada@example.com", NormalizeEmail("  Ada@Example.COM "))
}

func TestBuildTransferIdempotencyKey(t *testing.T) {
	id := uuid.MustParse("550e8400-e29b-41d4-a716-446655440000")
	assert.Equal(t, "550e8400-e29b-41d4-a716-446655440000:transfer:retry-1", BuildTransferIdempotencyKey(id, "retry-1"))
}
