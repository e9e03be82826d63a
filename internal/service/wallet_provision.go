package service

import (
	"context"
	"fmt"
	"time"

	"custodial-wallet/internal/core/domain"
	"custodial-wallet/internal/core/ports"
	"custodial-wallet/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// provisionWallet inserts a zero-balance wallet for userID under a freshly
// generated number, retrying up to retries times on collision.
//
// Outside a transaction (tx == nil) a skipped insert may also mean a
// concurrent request already created the user's wallet, so it is re-read.
// Inside a transaction the user row was just written by the caller and a
// skipped insert can only be a number collision.
func provisionWallet(ctx context.Context, wallets ports.WalletRepository, tx pgx.Tx, userID uuid.UUID, retries int) (*domain.Wallet, error) {
	for attempt := 0; attempt < retries; attempt++ {
		number, err := newWalletNumber()
		if err != nil {
			return nil, apperror.InternalError(err)
		}

		if tx == nil {
			exists, err := wallets.NumberExists(ctx, number)
			if err != nil {
				return nil, apperror.InternalError(fmt.Errorf("check wallet number: %w", err))
			}
			if exists {
				continue
			}
		}

		now := time.Now().UTC()
		wallet := &domain.Wallet{
			ID:           uuid.New(),
			UserID:       userID,
			WalletNumber: number,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		inserted, err := wallets.Create(ctx, tx, wallet)
		if err != nil {
			return nil, apperror.InternalError(fmt.Errorf("create wallet: %w", err))
		}
		if inserted {
			return wallet, nil
		}

		if tx == nil {
			existing, err := wallets.GetByUserID(ctx, userID)
			if err != nil {
				return nil, apperror.InternalError(fmt.Errorf("get wallet: %w", err))
			}
			if existing != nil {
				return existing, nil
			}
		}
	}
	return nil, apperror.ErrUniqueValueExhausted("wallet number", retries)
}

// ensureWallet returns the user's wallet, creating it on first access.
func ensureWallet(ctx context.Context, wallets ports.WalletRepository, userID uuid.UUID, retries int) (*domain.Wallet, error) {
	wallet, err := wallets.GetByUserID(ctx, userID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get wallet: %w", err))
	}
	if wallet != nil {
		return wallet, nil
	}
	return provisionWallet(ctx, wallets, nil, userID, retries)
}
