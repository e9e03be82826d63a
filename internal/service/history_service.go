package service

import (
	"context"
	"fmt"

	"custodial-wallet/internal/core/ports"
	"custodial-wallet/pkg/apperror"
)

const (
	defaultPageSize = 50
	maxPageSize     = 100
)

// historyService implements ports.HistoryService.
type historyService struct {
	txRepo ports.TransactionRepository
}

// NewHistoryService creates a new history service.
func NewHistoryService(txRepo ports.TransactionRepository) ports.HistoryService {
	return &historyService{txRepo: txRepo}
}

// ListTransactions returns one page of the user's transactions, newest first,
// and whether another page follows.
func (s *historyService) ListTransactions(ctx context.Context, params ports.TransactionListParams) ([]ports.HistoryEntry, bool, error) {
	params.Page, params.PageSize = normalizePage(params.Page, params.PageSize)

	// The repository returns up to PageSize+1 rows; the extra row only
	// signals that more exist.
	txns, err := s.txRepo.ListByUser(ctx, params)
	if err != nil {
		return nil, false, apperror.InternalError(fmt.Errorf("list transactions: %w", err))
	}

	hasMore := len(txns) > params.PageSize
	if hasMore {
		txns = txns[:params.PageSize]
	}

	entries := make([]ports.HistoryEntry, 0, len(txns))
	for i := range txns {
		t := &txns[i]
		entries = append(entries, ports.HistoryEntry{
			Reference: t.Reference,
			Type:      t.Type,
			Amount:    t.Amount,
			Status:    t.Status,
			Direction: t.DirectionFor(params.UserID),
			CreatedAt: t.CreatedAt,
		})
	}
	return entries, hasMore, nil
}

func normalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return page, pageSize
}
