package handler

import (
	"custodial-wallet/internal/adapter/http/dto"
	"custodial-wallet/internal/core/domain"
	"custodial-wallet/internal/core/ports"
	"custodial-wallet/pkg/apperror"
	"custodial-wallet/pkg/response"

	"github.com/gin-gonic/gin"
)

const (
	HeaderIdempotencyKey = "Idempotency-Key"

	defaultPage     = 1
	defaultPageSize = 50
)

// WalletHandler handles balance, deposit, transfer and history endpoints.
type WalletHandler struct {
	ledgerSvc  ports.LedgerService
	historySvc ports.HistoryService
}

// NewWalletHandler creates a new WalletHandler.
func NewWalletHandler(ledgerSvc ports.LedgerService, historySvc ports.HistoryService) *WalletHandler {
	return &WalletHandler{ledgerSvc: ledgerSvc, historySvc: historySvc}
}

// Deposit handles POST /wallet/deposit.
func (h *WalletHandler) Deposit(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	var req dto.DepositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err))
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		response.Error(c, err)
		return
	}

	result, err := h.ledgerSvc.Deposit(c.Request.Context(), ports.DepositRequest{
		UserID: p.User.ID,
		Email:  p.User.Email,
		Amount: amount,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.DepositResponse{
		Reference:        result.Reference,
		AuthorizationURL: result.AuthorizationURL,
	})
}

// DepositStatus handles GET /wallet/deposit/:reference/status.
func (h *WalletHandler) DepositStatus(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	txn, err := h.ledgerSvc.DepositStatus(c.Request.Context(), p.User.ID, c.Param("reference"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.DepositStatusResponse{
		Reference: txn.Reference,
		Status:    string(txn.Status),
		Amount:    txn.Amount,
	})
}

// Balance handles GET /wallet/balance.
func (h *WalletHandler) Balance(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	wallet, err := h.ledgerSvc.EnsureWallet(c.Request.Context(), p.User.ID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.BalanceResponse{
		Balance:      wallet.Balance,
		WalletNumber: wallet.WalletNumber,
	})
}

// Transfer handles POST /wallet/transfer. An Idempotency-Key header makes
// retries safe.
func (h *WalletHandler) Transfer(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	var req dto.TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err))
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		response.Error(c, err)
		return
	}

	idemKey := c.GetHeader(HeaderIdempotencyKey)
	if !dto.ValidIdempotencyKey(idemKey) {
		response.Error(c, apperror.Validation("Idempotency-Key must be at most 128 characters of [A-Za-z0-9_.:-]"))
		return
	}

	txn, err := h.ledgerSvc.Transfer(c.Request.Context(), ports.TransferRequest{
		SenderID:       p.User.ID,
		WalletNumber:   req.WalletNumber,
		Amount:         amount,
		IdempotencyKey: idemKey,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.TransferResponse{
		Status:    string(txn.Status),
		Message:   "Transfer completed",
		Reference: txn.Reference,
		Amount:    txn.Amount,
	})
}

// Transactions handles GET /wallet/transactions.
func (h *WalletHandler) Transactions(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	var q dto.TransactionListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, bindError(err))
		return
	}
	if q.Page == 0 {
		q.Page = defaultPage
	}
	if q.PageSize == 0 {
		q.PageSize = defaultPageSize
	}

	params := ports.TransactionListParams{
		UserID:   p.User.ID,
		Page:     q.Page,
		PageSize: q.PageSize,
	}
	if q.Type != "" {
		t := domain.TransactionType(q.Type)
		params.Type = &t
	}
	if q.Status != "" {
		s := domain.TransactionStatus(q.Status)
		params.Status = &s
	}

	entries, hasMore, err := h.historySvc.ListTransactions(c.Request.Context(), params)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]dto.HistoryEntryResponse, 0, len(entries))
	for _, e := range entries {
		items = append(items, dto.HistoryEntryResponse{
			Reference: e.Reference,
			Type:      string(e.Type),
			Amount:    e.Amount,
			Status:    string(e.Status),
			Direction: string(e.Direction),
			CreatedAt: e.CreatedAt,
		})
	}
	response.Paginated(c, items, q.Page, q.PageSize, hasMore)
}
