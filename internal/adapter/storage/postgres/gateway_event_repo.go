package postgres

import (
	"context"
	"fmt"

	"custodial-wallet/internal/core/domain"
)

// GatewayEventRepo implements ports.GatewayEventRepository.
type GatewayEventRepo struct {
	pool Pool
}

// NewGatewayEventRepo creates a PostgreSQL-backed GatewayEventRepository.
func NewGatewayEventRepo(pool Pool) *GatewayEventRepo {
	return &GatewayEventRepo{pool: pool}
}

func (r *GatewayEventRepo) Create(ctx context.Context, e *domain.GatewayEvent) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO gateway_events (id, reference, event, payload_status, outcome, payload, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		e.ID, e.Reference, e.Event, e.PayloadStatus, string(e.Outcome), e.Payload, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert gateway event: %w", err)
	}
	return nil
}

func (r *GatewayEventRepo) ListByReference(ctx context.Context, reference string) ([]domain.GatewayEvent, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, reference, event, payload_status, outcome, payload, created_at
		 FROM gateway_events
		 WHERE reference = $1
		 ORDER BY created_at DESC`, reference)
	if err != nil {
		return nil, fmt.Errorf("list gateway events: %w", err)
	}
	defer rows.Close()

	var events []domain.GatewayEvent
	for rows.Next() {
		var e domain.GatewayEvent
		var outcome string
		if err := rows.Scan(&e.ID, &e.Reference, &e.Event, &e.PayloadStatus, &outcome, &e.Payload, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan gateway event: %w", err)
		}
		e.Outcome = domain.ReconcileOutcome(outcome)
		events = append(events, e)
	}
	return events, rows.Err()
}
