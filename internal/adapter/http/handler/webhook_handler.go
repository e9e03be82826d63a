package handler

import (
	"io"
	"net/http"

	"custodial-wallet/internal/adapter/http/dto"
	"custodial-wallet/internal/adapter/http/middleware"
	"custodial-wallet/internal/core/domain"
	"custodial-wallet/internal/core/ports"
	"custodial-wallet/pkg/apperror"
	"custodial-wallet/pkg/response"

	"github.com/gin-gonic/gin"
)

// HeaderGatewaySignature carries the hex HMAC-SHA512 of the raw body.
const HeaderGatewaySignature = "x-paystack-signature"

// WebhookHandler receives payment gateway callbacks.
type WebhookHandler struct {
	reconcileSvc ports.ReconciliationService
}

// NewWebhookHandler creates a new WebhookHandler.
func NewWebhookHandler(reconcileSvc ports.ReconciliationService) *WebhookHandler {
	return &WebhookHandler{reconcileSvc: reconcileSvc}
}

// Paystack handles POST /wallet/paystack/webhook. The body is read raw so the
// signature is checked against the exact bytes the gateway signed.
func (h *WebhookHandler) Paystack(c *gin.Context) {
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		if middleware.IsBodyTooLarge(err) {
			response.Error(c, apperror.ErrMalformedPayload("Webhook payload too large"))
			return
		}
		response.Error(c, apperror.ErrMalformedPayload("Unreadable webhook payload"))
		return
	}

	result, err := h.reconcileSvc.Reconcile(c.Request.Context(), payload, c.GetHeader(HeaderGatewaySignature))
	if err != nil {
		response.Error(c, err)
		return
	}

	ack := dto.WebhookAck{Status: true}
	if result.Outcome == domain.OutcomeAlreadyProcessed {
		ack.Message = "Already processed"
	}
	// The gateway reads the bare acknowledgement, not the API envelope.
	c.JSON(http.StatusOK, ack)
}
