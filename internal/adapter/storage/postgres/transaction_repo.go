package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"custodial-wallet/internal/core/domain"
	"custodial-wallet/internal/core/ports"

	"github.com/jackc/pgx/v5"
)

const transactionColumns = `id, reference, type, user_id, from_user_id, to_user_id, amount, status,
	source, webhook_event, gateway_response, error_message, created_at, updated_at`

// TransactionRepo implements ports.TransactionRepository.
type TransactionRepo struct {
	pool Pool
}

// NewTransactionRepo creates a new TransactionRepo.
func NewTransactionRepo(pool Pool) *TransactionRepo {
	return &TransactionRepo{pool: pool}
}

// Create inserts a new transaction record.
func (r *TransactionRepo) Create(ctx context.Context, tx pgx.Tx, t *domain.Transaction) error {
	query := `INSERT INTO transactions (` + transactionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	_, err := conn(r.pool, tx).Exec(ctx, query,
		t.ID, t.Reference, t.Type, t.UserID, t.FromUserID, t.ToUserID,
		t.Amount, t.Status, t.Source, t.WebhookEvent, t.GatewayResponse,
		t.ErrorMessage, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

// GetByReference fetches a transaction by its unique reference.
func (r *TransactionRepo) GetByReference(ctx context.Context, reference string) (*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE reference = $1`
	return scanTransaction(r.pool.QueryRow(ctx, query, reference))
}

// GetByReferenceForUpdate fetches and locks a transaction row.
// This MUST be called within a transaction.
func (r *TransactionRepo) GetByReferenceForUpdate(ctx context.Context, tx pgx.Tx, reference string) (*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE reference = $1 FOR UPDATE`
	return scanTransaction(conn(r.pool, tx).QueryRow(ctx, query, reference))
}

// ReferenceExists reports whether a reference has been used.
func (r *TransactionRepo) ReferenceExists(ctx context.Context, reference string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM transactions WHERE reference = $1)`, reference).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check reference exists: %w", err)
	}
	return exists, nil
}

// Update applies a status transition. Nil fields of the update keep their
// stored values.
func (r *TransactionRepo) Update(ctx context.Context, tx pgx.Tx, reference string, u domain.TransactionUpdate) error {
	query := `UPDATE transactions SET
		status = $1,
		amount = COALESCE($2, amount),
		webhook_event = COALESCE($3, webhook_event),
		gateway_response = COALESCE($4, gateway_response),
		error_message = COALESCE($5, error_message),
		updated_at = NOW()
		WHERE reference = $6`

	tag, err := conn(r.pool, tx).Exec(ctx, query,
		u.Status, u.Amount, u.WebhookEvent, u.GatewayResponse, u.ErrorMessage, reference,
	)
	if err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("transaction not found: %s", reference)
	}
	return nil
}

// ListByUser returns the deposits and transfers a user is party to, newest
// first. It fetches one row beyond PageSize so callers can tell whether a
// further page exists.
func (r *TransactionRepo) ListByUser(ctx context.Context, params ports.TransactionListParams) ([]domain.Transaction, error) {
	conditions := []string{"(user_id = $1 OR from_user_id = $1 OR to_user_id = $1)"}
	args := []any{params.UserID}
	argIdx := 2

	if params.Type != nil {
		conditions = append(conditions, fmt.Sprintf("type = $%d", argIdx))
		args = append(args, *params.Type)
		argIdx++
	}
	if params.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argIdx))
		args = append(args, *params.Status)
		argIdx++
	}

	offset := (params.Page - 1) * params.PageSize
	query := fmt.Sprintf(`SELECT %s FROM transactions WHERE %s
		ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`,
		transactionColumns, strings.Join(conditions, " AND "), argIdx, argIdx+1)
	args = append(args, params.PageSize+1, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var txns []domain.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txns = append(txns, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transaction rows: %w", err)
	}
	return txns, nil
}

// FailStalePending marks pending deposits created before cutoff as failed.
func (r *TransactionRepo) FailStalePending(ctx context.Context, cutoff time.Time, reason string) (int64, error) {
	query := `UPDATE transactions SET status = $1, error_message = $2, updated_at = NOW()
		WHERE type = $3 AND status = $4 AND created_at < $5`

	tag, err := r.pool.Exec(ctx, query,
		domain.TransactionStatusFailed, reason,
		domain.TransactionTypeDeposit, domain.TransactionStatusPending, cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("fail stale deposits: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanTransaction(row pgx.Row) (*domain.Transaction, error) {
	t := &domain.Transaction{}
	err := row.Scan(
		&t.ID, &t.Reference, &t.Type, &t.UserID, &t.FromUserID, &t.ToUserID,
		&t.Amount, &t.Status, &t.Source, &t.WebhookEvent, &t.GatewayResponse,
		&t.ErrorMessage, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan transaction: %w", err)
	}
	return t, nil
}
