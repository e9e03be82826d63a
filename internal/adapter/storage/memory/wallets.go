package memory

import (
	"context"
	"slices"
	"time"

	"custodial-wallet/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// WalletRepo implements ports.WalletRepository.
type WalletRepo struct {
	s *Store
}

func (r *WalletRepo) Create(ctx context.Context, tx pgx.Tx, w *domain.Wallet) (bool, error) {
	mt, release, err := r.s.enter(tx)
	if err != nil {
		return false, err
	}
	defer release()

	if _, taken := r.s.walletByUser[w.UserID]; taken {
		return false, nil
	}
	if _, taken := r.s.walletByNumber[w.WalletNumber]; taken {
		return false, nil
	}
	cp := *w
	r.s.wallets[w.ID] = &cp
	r.s.walletByUser[w.UserID] = w.ID
	r.s.walletByNumber[w.WalletNumber] = w.ID
	mt.onRollback(func() {
		delete(r.s.wallets, w.ID)
		delete(r.s.walletByUser, w.UserID)
		delete(r.s.walletByNumber, w.WalletNumber)
	})
	return true, nil
}

func (r *WalletRepo) GetByUserID(ctx context.Context, userID uuid.UUID) (*domain.Wallet, error) {
	_, release, err := r.s.enter(nil)
	if err != nil {
		return nil, err
	}
	defer release()

	id, ok := r.s.walletByUser[userID]
	if !ok {
		return nil, nil
	}
	cp := *r.s.wallets[id]
	return &cp, nil
}

func (r *WalletRepo) GetByNumber(ctx context.Context, number string) (*domain.Wallet, error) {
	_, release, err := r.s.enter(nil)
	if err != nil {
		return nil, err
	}
	defer release()

	id, ok := r.s.walletByNumber[number]
	if !ok {
		return nil, nil
	}
	cp := *r.s.wallets[id]
	return &cp, nil
}

func (r *WalletRepo) NumberExists(ctx context.Context, number string) (bool, error) {
	_, release, err := r.s.enter(nil)
	if err != nil {
		return false, err
	}
	defer release()

	_, ok := r.s.walletByNumber[number]
	return ok, nil
}

// LockForUpdate returns the wallets in id order. The transaction already
// holds the whole store, so no per-row locking is needed.
func (r *WalletRepo) LockForUpdate(ctx context.Context, tx pgx.Tx, walletIDs ...uuid.UUID) ([]domain.Wallet, error) {
	_, release, err := r.s.enter(tx)
	if err != nil {
		return nil, err
	}
	defer release()

	ids := slices.Clone(walletIDs)
	slices.SortFunc(ids, func(a, b uuid.UUID) int { return slices.Compare(a[:], b[:]) })
	ids = slices.Compact(ids)

	var out []domain.Wallet
	for _, id := range ids {
		if w, ok := r.s.wallets[id]; ok {
			out = append(out, *w)
		}
	}
	return out, nil
}

func (r *WalletRepo) AdjustBalance(ctx context.Context, tx pgx.Tx, userID uuid.UUID, delta int64) (int64, error) {
	mt, release, err := r.s.enter(tx)
	if err != nil {
		return 0, err
	}
	defer release()

	id, ok := r.s.walletByUser[userID]
	if !ok {
		return 0, domain.ErrBalanceUnderflow
	}
	w := r.s.wallets[id]
	if w.Balance+delta < 0 {
		return 0, domain.ErrBalanceUnderflow
	}
	prevBalance, prevUpdated := w.Balance, w.UpdatedAt
	w.Balance += delta
	w.UpdatedAt = time.Now().UTC()
	mt.onRollback(func() {
		w.Balance = prevBalance
		w.UpdatedAt = prevUpdated
	})
	return w.Balance, nil
}
