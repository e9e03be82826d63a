package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"custodial-wallet/internal/core/domain"
	"custodial-wallet/internal/core/ports"

	"github.com/jackc/pgx/v5"
)

// TransactionRepo implements ports.TransactionRepository.
type TransactionRepo struct {
	s *Store
}

func (r *TransactionRepo) Create(ctx context.Context, tx pgx.Tx, t *domain.Transaction) error {
	mt, release, err := r.s.enter(tx)
	if err != nil {
		return err
	}
	defer release()

	if _, taken := r.s.transactions[t.Reference]; taken {
		return fmt.Errorf("insert transaction: duplicate reference %s", t.Reference)
	}
	cp := *t
	r.s.transactions[t.Reference] = &cp
	r.s.txnOrder = append(r.s.txnOrder, t.Reference)
	mt.onRollback(func() {
		delete(r.s.transactions, t.Reference)
		r.s.txnOrder = r.s.txnOrder[:len(r.s.txnOrder)-1]
	})
	return nil
}

func (r *TransactionRepo) GetByReference(ctx context.Context, reference string) (*domain.Transaction, error) {
	_, release, err := r.s.enter(nil)
	if err != nil {
		return nil, err
	}
	defer release()
	return r.get(reference), nil
}

func (r *TransactionRepo) GetByReferenceForUpdate(ctx context.Context, tx pgx.Tx, reference string) (*domain.Transaction, error) {
	_, release, err := r.s.enter(tx)
	if err != nil {
		return nil, err
	}
	defer release()
	return r.get(reference), nil
}

func (r *TransactionRepo) ReferenceExists(ctx context.Context, reference string) (bool, error) {
	_, release, err := r.s.enter(nil)
	if err != nil {
		return false, err
	}
	defer release()

	_, ok := r.s.transactions[reference]
	return ok, nil
}

func (r *TransactionRepo) Update(ctx context.Context, tx pgx.Tx, reference string, u domain.TransactionUpdate) error {
	mt, release, err := r.s.enter(tx)
	if err != nil {
		return err
	}
	defer release()

	t, ok := r.s.transactions[reference]
	if !ok {
		return fmt.Errorf("transaction not found: %s", reference)
	}
	prev := *t
	mt.onRollback(func() { *t = prev })

	t.Status = u.Status
	if u.Amount != nil {
		t.Amount = *u.Amount
	}
	if u.WebhookEvent != nil {
		t.WebhookEvent = u.WebhookEvent
	}
	if u.GatewayResponse != nil {
		t.GatewayResponse = u.GatewayResponse
	}
	if u.ErrorMessage != nil {
		t.ErrorMessage = u.ErrorMessage
	}
	t.UpdatedAt = time.Now().UTC()
	return nil
}

// ListByUser returns up to PageSize+1 rows, newest first.
func (r *TransactionRepo) ListByUser(ctx context.Context, params ports.TransactionListParams) ([]domain.Transaction, error) {
	_, release, err := r.s.enter(nil)
	if err != nil {
		return nil, err
	}
	defer release()

	var matched []domain.Transaction
	for i := len(r.s.txnOrder) - 1; i >= 0; i-- {
		t := r.s.transactions[r.s.txnOrder[i]]
		if !t.BelongsTo(params.UserID) {
			continue
		}
		if params.Type != nil && t.Type != *params.Type {
			continue
		}
		if params.Status != nil && t.Status != *params.Status {
			continue
		}
		matched = append(matched, *t)
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	return paginate(matched, params.Page, params.PageSize, 1), nil
}

func (r *TransactionRepo) FailStalePending(ctx context.Context, cutoff time.Time, reason string) (int64, error) {
	_, release, err := r.s.enter(nil)
	if err != nil {
		return 0, err
	}
	defer release()

	var n int64
	now := time.Now().UTC()
	for _, t := range r.s.transactions {
		if t.Type != domain.TransactionTypeDeposit || t.Status != domain.TransactionStatusPending {
			continue
		}
		if !t.CreatedAt.Before(cutoff) {
			continue
		}
		msg := reason
		t.Status = domain.TransactionStatusFailed
		t.ErrorMessage = &msg
		t.UpdatedAt = now
		n++
	}
	return n, nil
}

func (r *TransactionRepo) get(reference string) *domain.Transaction {
	t, ok := r.s.transactions[reference]
	if !ok {
		return nil
	}
	cp := *t
	return &cp
}
