package handler

import (
	"custodial-wallet/internal/adapter/http/dto"
	"custodial-wallet/internal/core/domain"
	"custodial-wallet/internal/core/ports"
	"custodial-wallet/pkg/apperror"
	"custodial-wallet/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// KeyHandler handles API key management. Every route requires a user session.
type KeyHandler struct {
	keySvc ports.APIKeyService
}

// NewKeyHandler creates a new KeyHandler.
func NewKeyHandler(keySvc ports.APIKeyService) *KeyHandler {
	return &KeyHandler{keySvc: keySvc}
}

// Create handles POST /keys/create.
func (h *KeyHandler) Create(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	var req dto.CreateKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err))
		return
	}
	dto.SanitizeStruct(&req)

	issued, err := h.keySvc.Create(c.Request.Context(), ports.CreateKeyRequest{
		UserID:      p.User.ID,
		Name:        req.Name,
		Permissions: req.Permissions,
		Expiry:      req.Expiry,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, toIssuedKeyResponse(issued))
}

// Rollover handles POST /keys/rollover.
func (h *KeyHandler) Rollover(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	var req dto.RolloverKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err))
		return
	}

	keyID, err := uuid.Parse(req.ExpiredKeyID)
	if err != nil {
		response.Error(c, apperror.Validation("expired_key_id must be a UUID"))
		return
	}

	issued, err := h.keySvc.Rollover(c.Request.Context(), ports.RolloverKeyRequest{
		UserID:       p.User.ID,
		ExpiredKeyID: keyID,
		Expiry:       req.Expiry,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, toIssuedKeyResponse(issued))
}

// Revoke handles POST /keys/revoke.
func (h *KeyHandler) Revoke(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	var req dto.RevokeKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err))
		return
	}

	result, err := h.keySvc.Revoke(c.Request.Context(), p.User.ID, req.APIKey)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.RevokeKeyResponse{Status: result.Status, ID: result.KeyID.String()})
}

// List handles GET /keys.
func (h *KeyHandler) List(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	keys, err := h.keySvc.ListActive(c.Request.Context(), p.User.ID)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]dto.KeyResponse, 0, len(keys))
	for i := range keys {
		items = append(items, toKeyResponse(&keys[i]))
	}
	response.OK(c, items)
}

func toIssuedKeyResponse(issued *ports.IssuedKey) dto.IssuedKeyResponse {
	return dto.IssuedKeyResponse{
		APIKey:      issued.Secret,
		ID:          issued.Key.ID.String(),
		Name:        issued.Key.Name,
		Permissions: permissionNames(issued.Key.Permissions),
		ExpiresAt:   issued.Key.ExpiresAt,
	}
}

func toKeyResponse(k *domain.APIKey) dto.KeyResponse {
	return dto.KeyResponse{
		ID:          k.ID.String(),
		Name:        k.Name,
		Prefix:      k.KeyPrefix,
		Permissions: permissionNames(k.Permissions),
		ExpiresAt:   k.ExpiresAt,
		CreatedAt:   k.CreatedAt,
	}
}
