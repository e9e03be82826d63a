package postgres

import (
	"context"
	"errors"
	"fmt"

	"custodial-wallet/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const walletColumns = `id, user_id, wallet_number, balance, created_at, updated_at`

// WalletRepo implements ports.WalletRepository.
type WalletRepo struct {
	pool Pool
}

// NewWalletRepo creates a new WalletRepo.
func NewWalletRepo(pool Pool) *WalletRepo {
	return &WalletRepo{pool: pool}
}

// Create inserts a wallet. Collisions on user_id or wallet_number are
// reported as (false, nil) so the caller can decide whether to retry.
func (r *WalletRepo) Create(ctx context.Context, tx pgx.Tx, w *domain.Wallet) (bool, error) {
	query := `INSERT INTO wallets (` + walletColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT DO NOTHING`

	tag, err := conn(r.pool, tx).Exec(ctx, query,
		w.ID, w.UserID, w.WalletNumber, w.Balance, w.CreatedAt, w.UpdatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("insert wallet: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// GetByUserID fetches a user's wallet (non-locking read).
func (r *WalletRepo) GetByUserID(ctx context.Context, userID uuid.UUID) (*domain.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE user_id = $1`
	return scanWallet(r.pool.QueryRow(ctx, query, userID))
}

// GetByNumber fetches a wallet by its public number (non-locking read).
func (r *WalletRepo) GetByNumber(ctx context.Context, number string) (*domain.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE wallet_number = $1`
	return scanWallet(r.pool.QueryRow(ctx, query, number))
}

// NumberExists reports whether a wallet number is already allocated.
func (r *WalletRepo) NumberExists(ctx context.Context, number string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM wallets WHERE wallet_number = $1)`, number).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check wallet number: %w", err)
	}
	return exists, nil
}

// LockForUpdate locks the given wallets with pessimistic locking.
// Rows are locked in id order within one statement, so two transfers
// touching the same pair of wallets cannot deadlock.
// This MUST be called within a transaction.
func (r *WalletRepo) LockForUpdate(ctx context.Context, tx pgx.Tx, walletIDs ...uuid.UUID) ([]domain.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE id = ANY($1) ORDER BY id FOR UPDATE`

	rows, err := conn(r.pool, tx).Query(ctx, query, walletIDs)
	if err != nil {
		return nil, fmt.Errorf("lock wallets: %w", err)
	}
	defer rows.Close()

	var wallets []domain.Wallet
	for rows.Next() {
		var w domain.Wallet
		if err := rows.Scan(&w.ID, &w.UserID, &w.WalletNumber, &w.Balance, &w.CreatedAt, &w.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan locked wallet: %w", err)
		}
		wallets = append(wallets, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate locked wallets: %w", err)
	}
	return wallets, nil
}

// AdjustBalance applies delta in a single conditional UPDATE. The
// balance >= 0 guard lives in the WHERE clause, so an underflow touches no
// row and surfaces as domain.ErrBalanceUnderflow.
func (r *WalletRepo) AdjustBalance(ctx context.Context, tx pgx.Tx, userID uuid.UUID, delta int64) (int64, error) {
	query := `UPDATE wallets SET balance = balance + $1, updated_at = NOW()
		WHERE user_id = $2 AND balance + $1 >= 0
		RETURNING balance`

	var balance int64
	err := conn(r.pool, tx).QueryRow(ctx, query, delta, userID).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, domain.ErrBalanceUnderflow
		}
		return 0, fmt.Errorf("adjust wallet balance: %w", err)
	}
	return balance, nil
}

func scanWallet(row pgx.Row) (*domain.Wallet, error) {
	w := &domain.Wallet{}
	err := row.Scan(&w.ID, &w.UserID, &w.WalletNumber, &w.Balance, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan wallet: %w", err)
	}
	return w, nil
}
