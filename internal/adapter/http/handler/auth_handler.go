package handler

import (
	"strings"

	"custodial-wallet/internal/adapter/http/dto"
	"custodial-wallet/internal/adapter/http/middleware"
	"custodial-wallet/internal/core/domain"
	"custodial-wallet/internal/core/ports"
	"custodial-wallet/pkg/apperror"
	"custodial-wallet/pkg/response"

	"github.com/gin-gonic/gin"
)

const mockSignInNote = "Dev mock enabled: call /auth/google/callback?email=you@example.com"

// PublicConfig holds the values safe to hand to browser clients.
type PublicConfig struct {
	GoogleClientID   string
	GatewayPublicKey string
}

// AuthHandler handles sign-in and client configuration endpoints.
type AuthHandler struct {
	authSvc ports.AuthService
	public  PublicConfig
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(authSvc ports.AuthService, public PublicConfig) *AuthHandler {
	return &AuthHandler{authSvc: authSvc, public: public}
}

// ProviderInfo handles GET /auth/google.
func (h *AuthHandler) ProviderInfo(c *gin.Context) {
	info := h.authSvc.ProviderInfo(requestBaseURL(c))
	if info.AuthURL == "" && !info.MockEnabled {
		response.Error(c, apperror.ErrIdentityNotConfigured())
		return
	}

	resp := dto.ProviderInfoResponse{
		AuthURL:     optional(info.AuthURL),
		RedirectURI: info.RedirectURI,
	}
	if info.MockEnabled {
		resp.Note = mockSignInNote
	}
	response.OK(c, resp)
}

// Callback handles GET /auth/google/callback.
func (h *AuthHandler) Callback(c *gin.Context) {
	var q dto.SignInQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, bindError(err))
		return
	}

	idToken := q.IDToken
	if idToken == "" {
		idToken = q.Token
	}

	result, err := h.authSvc.SignIn(c.Request.Context(), ports.SignInRequest{
		IDToken:   idToken,
		MockEmail: q.Email,
		MockName:  q.Name,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	// The caller is authenticated from here on; the audit trail keys on it.
	c.Set(middleware.CtxPrincipal, &domain.Principal{Kind: domain.PrincipalUser, User: result.User})

	response.OK(c, dto.SignInResponse{
		Token:     result.Token,
		ExpiresAt: result.ExpiresAt,
		User:      toUserResponse(result.User),
		Wallet:    toWalletResponse(result.Wallet),
	})
}

// PublicConfig handles GET /config/public.
func (h *AuthHandler) PublicConfig(c *gin.Context) {
	response.OK(c, dto.PublicConfigResponse{
		GoogleClientID:   optional(h.public.GoogleClientID),
		GatewayPublicKey: optional(h.public.GatewayPublicKey),
	})
}

// requestBaseURL rebuilds scheme://host for the inbound request, honouring a
// proxy's X-Forwarded-Proto.
func requestBaseURL(c *gin.Context) string {
	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}
	if proto := c.GetHeader("X-Forwarded-Proto"); proto != "" {
		scheme = strings.ToLower(strings.TrimSpace(strings.Split(proto, ",")[0]))
	}
	return scheme + "://" + c.Request.Host
}

func toUserResponse(u *domain.User) dto.UserResponse {
	return dto.UserResponse{
		ID:        u.ID.String(),
		Email:     u.Email,
		Name:      u.Name,
		CreatedAt: u.CreatedAt,
	}
}

func toWalletResponse(w *domain.Wallet) dto.WalletResponse {
	if w == nil {
		return dto.WalletResponse{}
	}
	return dto.WalletResponse{WalletNumber: w.WalletNumber, Balance: w.Balance}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
