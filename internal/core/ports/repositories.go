package ports

import (
	"context"
	"time"

	"custodial-wallet/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Repository methods that accept a pgx.Tx run inside that transaction, or
// directly against the pool when tx is nil. Lookups return (nil, nil) when
// the row does not exist.

// UserRepository defines persistence operations for users.
type UserRepository interface {
	// CreateIfAbsent inserts the user unless the email is already registered.
	// It reports whether a row was inserted.
	CreateIfAbsent(ctx context.Context, tx pgx.Tx, user *domain.User) (bool, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	List(ctx context.Context, page, pageSize int) ([]domain.User, error)
}

// WalletRepository defines persistence operations for wallets.
type WalletRepository interface {
	// Create inserts the wallet unless the user already has one or the wallet
	// number is taken. It reports whether a row was inserted.
	Create(ctx context.Context, tx pgx.Tx, wallet *domain.Wallet) (bool, error)
	GetByUserID(ctx context.Context, userID uuid.UUID) (*domain.Wallet, error)
	GetByNumber(ctx context.Context, number string) (*domain.Wallet, error)
	NumberExists(ctx context.Context, number string) (bool, error)
	// LockForUpdate locks the given wallets in id order and returns them.
	LockForUpdate(ctx context.Context, tx pgx.Tx, walletIDs ...uuid.UUID) ([]domain.Wallet, error)
	// AdjustBalance applies balance = balance + delta atomically and returns the
	// new balance. Returns domain.ErrBalanceUnderflow if the result would be negative.
	AdjustBalance(ctx context.Context, tx pgx.Tx, userID uuid.UUID, delta int64) (int64, error)
}

// TransactionRepository defines persistence operations for ledger transactions.
type TransactionRepository interface {
	Create(ctx context.Context, tx pgx.Tx, transaction *domain.Transaction) error
	GetByReference(ctx context.Context, reference string) (*domain.Transaction, error)
	GetByReferenceForUpdate(ctx context.Context, tx pgx.Tx, reference string) (*domain.Transaction, error)
	ReferenceExists(ctx context.Context, reference string) (bool, error)
	Update(ctx context.Context, tx pgx.Tx, reference string, update domain.TransactionUpdate) error
	ListByUser(ctx context.Context, params TransactionListParams) ([]domain.Transaction, error)
	// FailStalePending marks pending deposits created before cutoff as failed.
	FailStalePending(ctx context.Context, cutoff time.Time, reason string) (int64, error)
}

// TransactionListParams holds filter + pagination for a user's history.
type TransactionListParams struct {
	UserID   uuid.UUID
	Type     *domain.TransactionType
	Status   *domain.TransactionStatus
	Page     int
	PageSize int
}

// APIKeyRepository defines persistence operations for API keys.
type APIKeyRepository interface {
	Create(ctx context.Context, tx pgx.Tx, key *domain.APIKey) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.APIKey, error)
	GetByHash(ctx context.Context, keyHash string) (*domain.APIKey, error)
	ListActive(ctx context.Context, userID uuid.UUID, now time.Time) ([]domain.APIKey, error)
	CountActive(ctx context.Context, tx pgx.Tx, userID uuid.UUID, now time.Time) (int, error)
	// Revoke flips revoked to true. It reports false if the key was already revoked.
	Revoke(ctx context.Context, id uuid.UUID) (bool, error)
}

// IdempotencyRepository is the durable record of client-keyed requests.
type IdempotencyRepository interface {
	Create(ctx context.Context, tx pgx.Tx, log *domain.IdempotencyLog) error
	Get(ctx context.Context, key string) (*domain.IdempotencyLog, error)
}

// GatewayEventRepository stores authenticated gateway callbacks.
type GatewayEventRepository interface {
	Create(ctx context.Context, event *domain.GatewayEvent) error
	ListByReference(ctx context.Context, reference string) ([]domain.GatewayEvent, error)
}

// AuditRepository persists audit entries.
type AuditRepository interface {
	Create(ctx context.Context, log *domain.AuditLog) error
}

// DBTransactor provides database transaction management.
type DBTransactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}
