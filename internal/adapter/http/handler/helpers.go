package handler

import (
	"encoding/json"

	"custodial-wallet/internal/adapter/http/dto"
	"custodial-wallet/internal/adapter/http/middleware"
	"custodial-wallet/internal/core/domain"
	"custodial-wallet/pkg/apperror"
	"custodial-wallet/pkg/response"

	"github.com/gin-gonic/gin"
)

// bindError maps a binding failure to the most specific AppError.
func bindError(err error) *apperror.AppError {
	if middleware.IsBodyTooLarge(err) {
		return apperror.Validation("request body too large")
	}
	if dto.FailedTag(err, dto.TagExpiryToken) != "" {
		return apperror.ErrInvalidExpiry()
	}
	return apperror.Validation(err.Error())
}

// principal returns the authenticated caller or writes AUTH_001.
func principal(c *gin.Context) (*domain.Principal, bool) {
	p := middleware.GetPrincipal(c)
	if p == nil || p.User == nil {
		response.Error(c, apperror.ErrAuthenticationRequired())
		return nil, false
	}
	return p, true
}

// parseAmount reads a positive integer amount in minor units.
func parseAmount(raw json.Number) (int64, error) {
	amount, err := raw.Int64()
	if err != nil || amount <= 0 {
		return 0, apperror.ErrInvalidAmount()
	}
	return amount, nil
}

func permissionNames(perms []domain.Permission) []string {
	out := make([]string, len(perms))
	for i, p := range perms {
		out[i] = string(p)
	}
	return out
}
