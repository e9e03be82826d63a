package handler

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"custodial-wallet/internal/core/domain"
	"custodial-wallet/internal/core/ports"
	"custodial-wallet/internal/core/ports/mocks"
	"custodial-wallet/pkg/apperror"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"go.uber.org/mock/gomock"
)

type walletTestDeps struct {
	h       *WalletHandler
	ledger  *mocks.MockLedgerService
	history *mocks.MockHistoryService
}

func setupWalletHandler(t *testing.T) *walletTestDeps {
	ctrl := gomock.NewController(t)
	d := &walletTestDeps{
		ledger:  mocks.NewMockLedgerService(ctrl),
		history: mocks.NewMockHistoryService(ctrl),
	}
	d.h = NewWalletHandler(d.ledger, d.history)
	return d
}

func TestDeposit_Success(t *testing.T) {
	d := setupWalletHandler(t)

	c, w := newTestContext(http.MethodPost, "/wallet/deposit", `{"amount":5000}`)
	user := withUser(c)

	d.ledger.EXPECT().Deposit(gomock.Any(), ports.DepositRequest{
		UserID: user.ID,
		Email:  user.Email,
		Amount: 5000,
	}).Return(&ports.DepositResult{
		Reference:        "dep_01jabc",
		AuthorizationURL: "https://checkout.paystack.com/xyz",
	}, nil)

	d.h.Deposit(c)

	assert.Equal(t, http.StatusCreated, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, "dep_01jabc", data["reference"])
	assert.Equal(t, "https://checkout.paystack.com/xyz", data["authorization_url"])
}

func TestDeposit_InvalidAmount(t *testing.T) {
	for _, body := range []string{`{}`, `{"amount":0}`, `{"amount":-5}`, `{"amount":12.5}`, `{"amount":"abc"}`} {
		t.Run(body, func(t *testing.T) {
			d := setupWalletHandler(t)

			c, w := newTestContext(http.MethodPost, "/wallet/deposit", body)
			withUser(c)
			d.h.Deposit(c)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			code := decodeErrorCode(t, w)
			assert.True(t, code == "VAL_002" || code == "VAL_001", "unexpected code %s", code)
		})
	}
}

func TestDeposit_GatewayFailure(t *testing.T) {
	d := setupWalletHandler(t)

	d.ledger.EXPECT().Deposit(gomock.Any(), gomock.Any()).Return(nil, apperror.ErrGatewayInitialize(assert.AnError))

	c, w := newTestContext(http.MethodPost, "/wallet/deposit", `{"amount":5000}`)
	withUser(c)
	d.h.Deposit(c)

	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, "GW_001", decodeErrorCode(t, w))
}

func TestDepositStatus(t *testing.T) {
	d := setupWalletHandler(t)

	c, w := newTestContext(http.MethodGet, "/wallet/deposit/dep_1/status", nil)
	c.Params = gin.Params{{Key: "reference", Value: "dep_1"}}
	user := withUser(c)

	d.ledger.EXPECT().DepositStatus(gomock.Any(), user.ID, "dep_1").Return(&domain.Transaction{
		Reference: "dep_1",
		Status:    domain.TransactionStatusPending,
		Amount:    5000,
	}, nil)

	d.h.DepositStatus(c)

	assert.Equal(t, http.StatusOK, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, "pending", data["status"])
	assert.Equal(t, float64(5000), data["amount"])
}

func TestDepositStatus_OtherUser(t *testing.T) {
	d := setupWalletHandler(t)

	d.ledger.EXPECT().DepositStatus(gomock.Any(), gomock.Any(), "dep_1").Return(nil, apperror.ErrForbiddenResource("deposit"))

	c, w := newTestContext(http.MethodGet, "/wallet/deposit/dep_1/status", nil)
	c.Params = gin.Params{{Key: "reference", Value: "dep_1"}}
	withUser(c)
	d.h.DepositStatus(c)

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "AUTH_009", decodeErrorCode(t, w))
}

func TestBalance(t *testing.T) {
	d := setupWalletHandler(t)

	c, w := newTestContext(http.MethodGet, "/wallet/balance", nil)
	user := withUser(c)

	d.ledger.EXPECT().EnsureWallet(gomock.Any(), user.ID).Return(&domain.Wallet{
		UserID:       user.ID,
		WalletNumber: "012345678901",
		Balance:      3000,
	}, nil)

	d.h.Balance(c)

	assert.Equal(t, http.StatusOK, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, float64(3000), data["balance"])
	assert.Equal(t, "012345678901", data["wallet_number"])
}

func TestTransfer_Success(t *testing.T) {
	d := setupWalletHandler(t)

	c, w := newTestContext(http.MethodPost, "/wallet/transfer", `{"wallet_number":"012345678901","amount":2000}`)
	c.Request.Header.Set(HeaderIdempotencyKey, "retry-1")
	user := withUser(c)

	d.ledger.EXPECT().Transfer(gomock.Any(), ports.TransferRequest{
		SenderID:       user.ID,
		WalletNumber:   "012345678901",
		Amount:         2000,
		IdempotencyKey: "retry-1",
	}).Return(&domain.Transaction{
		Reference: "trf_01jxyz",
		Type:      domain.TransactionTypeTransfer,
		Amount:    2000,
		Status:    domain.TransactionStatusSuccess,
	}, nil)

	d.h.Transfer(c)

	assert.Equal(t, http.StatusOK, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, "success", data["status"])
	assert.Equal(t, "trf_01jxyz", data["reference"])
	assert.Equal(t, "Transfer completed", data["message"])
}

func TestTransfer_Rejections(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		idemKey  string
		svcErr   error
		wantHTTP int
		wantCode string
	}{
		{"missing wallet number", `{"amount":10}`, "", nil, http.StatusBadRequest, "VAL_001"},
		{"non-positive amount", `{"wallet_number":"012345678901","amount":0}`, "", nil, http.StatusBadRequest, "VAL_002"},
		{"bad idempotency key", `{"wallet_number":"012345678901","amount":10}`, "has spaces", nil, http.StatusBadRequest, "VAL_001"},
		{"long idempotency key", `{"wallet_number":"012345678901","amount":10}`, strings.Repeat("k", 129), nil, http.StatusBadRequest, "VAL_001"},
		{"insufficient funds", `{"wallet_number":"012345678901","amount":10000}`, "", apperror.ErrInsufficientFunds(), http.StatusPaymentRequired, "BIZ_001"},
		{"self transfer", `{"wallet_number":"012345678901","amount":10}`, "", apperror.ErrSelfTransfer(), http.StatusBadRequest, "BIZ_002"},
		{"unknown receiver", `{"wallet_number":"999999999999","amount":10}`, "", apperror.ErrNotFound("Wallet"), http.StatusNotFound, "NF_001"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := setupWalletHandler(t)
			if tt.svcErr != nil {
				d.ledger.EXPECT().Transfer(gomock.Any(), gomock.Any()).Return(nil, tt.svcErr)
			}

			c, w := newTestContext(http.MethodPost, "/wallet/transfer", tt.body)
			if tt.idemKey != "" {
				c.Request.Header.Set(HeaderIdempotencyKey, tt.idemKey)
			}
			withUser(c)
			d.h.Transfer(c)

			assert.Equal(t, tt.wantHTTP, w.Code)
			assert.Equal(t, tt.wantCode, decodeErrorCode(t, w))
		})
	}
}

func TestTransactions_DefaultsAndFilters(t *testing.T) {
	d := setupWalletHandler(t)

	c, w := newTestContext(http.MethodGet, "/wallet/transactions?type=transfer&status=success", nil)
	user := withUser(c)

	now := time.Now().UTC()
	d.history.EXPECT().ListTransactions(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, p ports.TransactionListParams) ([]ports.HistoryEntry, bool, error) {
			assert.Equal(t, user.ID, p.UserID)
			assert.Equal(t, 1, p.Page)
			assert.Equal(t, 50, p.PageSize)
			if assert.NotNil(t, p.Type) {
				assert.Equal(t, domain.TransactionTypeTransfer, *p.Type)
			}
			if assert.NotNil(t, p.Status) {
				assert.Equal(t, domain.TransactionStatusSuccess, *p.Status)
			}
			return []ports.HistoryEntry{{
				Reference: "trf_1",
				Type:      domain.TransactionTypeTransfer,
				Amount:    2000,
				Status:    domain.TransactionStatusSuccess,
				Direction: domain.DirectionDebit,
				CreatedAt: now,
			}}, true, nil
		})

	d.h.Transactions(c)

	assert.Equal(t, http.StatusOK, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, float64(1), data["page"])
	assert.Equal(t, float64(50), data["page_size"])
	assert.Equal(t, true, data["has_more"])
	items := data["items"].([]interface{})
	assert.Len(t, items, 1)
	assert.Equal(t, "debit", items[0].(map[string]interface{})["direction"])
}

func TestTransactions_InvalidQuery(t *testing.T) {
	for _, q := range []string{"type=refund", "status=reversed", "page=-1", "page_size=101", "page=abc"} {
		t.Run(q, func(t *testing.T) {
			d := setupWalletHandler(t)

			c, w := newTestContext(http.MethodGet, "/wallet/transactions?"+q, nil)
			withUser(c)
			d.h.Transactions(c)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, "VAL_001", decodeErrorCode(t, w))
		})
	}
}

func TestWalletHandler_NoPrincipal(t *testing.T) {
	d := setupWalletHandler(t)

	c, w := newTestContext(http.MethodGet, "/wallet/balance", nil)
	d.h.Balance(c)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "AUTH_001", decodeErrorCode(t, w))
}
