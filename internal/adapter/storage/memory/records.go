package memory

import (
	"context"
	"fmt"
	"slices"

	"custodial-wallet/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

// IdempotencyRepo implements ports.IdempotencyRepository.
type IdempotencyRepo struct {
	s *Store
}

func (r *IdempotencyRepo) Create(ctx context.Context, tx pgx.Tx, log *domain.IdempotencyLog) error {
	mt, release, err := r.s.enter(tx)
	if err != nil {
		return err
	}
	defer release()

	if _, taken := r.s.idempotency[log.Key]; taken {
		return fmt.Errorf("insert idempotency log %s: %w", log.Key, domain.ErrDuplicateIdempotencyKey)
	}
	cp := *log
	cp.ResponseJSON = slices.Clone(log.ResponseJSON)
	r.s.idempotency[log.Key] = &cp
	mt.onRollback(func() { delete(r.s.idempotency, log.Key) })
	return nil
}

func (r *IdempotencyRepo) Get(ctx context.Context, key string) (*domain.IdempotencyLog, error) {
	_, release, err := r.s.enter(nil)
	if err != nil {
		return nil, err
	}
	defer release()

	log, ok := r.s.idempotency[key]
	if !ok {
		return nil, nil
	}
	cp := *log
	cp.ResponseJSON = slices.Clone(log.ResponseJSON)
	return &cp, nil
}

// GatewayEventRepo implements ports.GatewayEventRepository.
type GatewayEventRepo struct {
	s *Store
}

func (r *GatewayEventRepo) Create(ctx context.Context, e *domain.GatewayEvent) error {
	_, release, err := r.s.enter(nil)
	if err != nil {
		return err
	}
	defer release()

	r.s.events = append(r.s.events, *e)
	return nil
}

// ListByReference returns events for a reference, newest first.
func (r *GatewayEventRepo) ListByReference(ctx context.Context, reference string) ([]domain.GatewayEvent, error) {
	_, release, err := r.s.enter(nil)
	if err != nil {
		return nil, err
	}
	defer release()

	var out []domain.GatewayEvent
	for i := len(r.s.events) - 1; i >= 0; i-- {
		if r.s.events[i].Reference == reference {
			out = append(out, r.s.events[i])
		}
	}
	return out, nil
}

// AuditRepo implements ports.AuditRepository.
type AuditRepo struct {
	s *Store
}

func (r *AuditRepo) Create(ctx context.Context, log *domain.AuditLog) error {
	_, release, err := r.s.enter(nil)
	if err != nil {
		return err
	}
	defer release()

	r.s.audit = append(r.s.audit, *log)
	return nil
}

// Entries returns a snapshot of the audit trail in insertion order.
func (r *AuditRepo) Entries() []domain.AuditLog {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return slices.Clone(r.s.audit)
}
