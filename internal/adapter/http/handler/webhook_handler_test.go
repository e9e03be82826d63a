package handler

import (
	"net/http"
	"strings"
	"testing"

	"custodial-wallet/internal/adapter/http/middleware"
	"custodial-wallet/internal/core/domain"
	"custodial-wallet/internal/core/ports"
	"custodial-wallet/internal/core/ports/mocks"
	"custodial-wallet/pkg/apperror"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"go.uber.org/mock/gomock"
)

const webhookBody = `{"event":"charge.success","data":{"reference":"dep_1","status":"success","amount":5000}}`

func TestPaystackWebhook_PassesRawBodyAndSignature(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockReconcile := mocks.NewMockReconciliationService(ctrl)
	h := NewWebhookHandler(mockReconcile)

	mockReconcile.EXPECT().Reconcile(gomock.Any(), []byte(webhookBody), "abc123").
		Return(&ports.ReconcileResult{Reference: "dep_1", Outcome: domain.OutcomeCredited, Credited: 5000}, nil)

	c, w := newTestContext(http.MethodPost, "/wallet/paystack/webhook", webhookBody)
	c.Request.Header.Set(HeaderGatewaySignature, "abc123")
	h.Paystack(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":true}`, w.Body.String())
}

func TestPaystackWebhook_AlreadyProcessed(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockReconcile := mocks.NewMockReconciliationService(ctrl)
	h := NewWebhookHandler(mockReconcile)

	mockReconcile.EXPECT().Reconcile(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(&ports.ReconcileResult{Reference: "dep_1", Outcome: domain.OutcomeAlreadyProcessed}, nil)

	c, w := newTestContext(http.MethodPost, "/wallet/paystack/webhook", webhookBody)
	h.Paystack(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":true,"message":"Already processed"}`, w.Body.String())
}

func TestPaystackWebhook_Errors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantHTTP int
		wantCode string
	}{
		{"bad signature", apperror.ErrInvalidSignature(), http.StatusUnauthorized, "SEC_001"},
		{"malformed", apperror.ErrMalformedPayload("Malformed webhook payload"), http.StatusBadRequest, "SEC_002"},
		{"unknown reference", apperror.ErrNotFound("Transaction"), http.StatusNotFound, "NF_001"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			mockReconcile := mocks.NewMockReconciliationService(ctrl)
			h := NewWebhookHandler(mockReconcile)

			mockReconcile.EXPECT().Reconcile(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, tt.err)

			c, w := newTestContext(http.MethodPost, "/wallet/paystack/webhook", webhookBody)
			h.Paystack(c)

			assert.Equal(t, tt.wantHTTP, w.Code)
			assert.Equal(t, tt.wantCode, decodeErrorCode(t, w))
		})
	}
}

func TestPaystackWebhook_BodyTooLarge(t *testing.T) {
	ctrl := gomock.NewController(t)
	h := NewWebhookHandler(mocks.NewMockReconciliationService(ctrl))

	r := gin.New()
	r.Use(middleware.MaxBodySize(64))
	r.POST("/wallet/paystack/webhook", h.Paystack)

	c, w := newTestContext(http.MethodPost, "/wallet/paystack/webhook", strings.Repeat("x", 200))
	r.ServeHTTP(w, c.Request)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "SEC_002", decodeErrorCode(t, w))
}
