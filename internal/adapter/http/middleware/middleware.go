package middleware

import (
	"net/http"
	"strings"
	"time"

	"custodial-wallet/internal/core/domain"
	"custodial-wallet/internal/core/ports"
	"custodial-wallet/pkg/apperror"
	"custodial-wallet/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	HeaderAuthorization = "Authorization"
	HeaderAPIKey        = "x-api-key"
	HeaderRequestID     = "X-Request-ID"

	bearerPrefix = "Bearer "

	// Context keys
	CtxPrincipal = "principal"
	CtxRequestID = response.CtxRequestID
)

// RequestID assigns every request an id, reusing a well-formed inbound one.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(HeaderRequestID)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.New().String()
		}
		c.Set(CtxRequestID, id)
		c.Header(HeaderRequestID, id)
		c.Next()
	}
}

// Authenticate resolves the caller from a bearer session token or an
// x-api-key header. A bearer token takes precedence when both are sent.
func Authenticate(authSvc ports.AuthService, keySvc ports.APIKeyService) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		if header := c.GetHeader(HeaderAuthorization); strings.HasPrefix(header, bearerPrefix) {
			token := strings.TrimSpace(header[len(bearerPrefix):])
			user, err := authSvc.AuthenticateToken(ctx, token)
			if err != nil {
				response.Error(c, err)
				c.Abort()
				return
			}
			c.Set(CtxPrincipal, &domain.Principal{Kind: domain.PrincipalUser, User: user})
			c.Next()
			return
		}

		if rawKey := strings.TrimSpace(c.GetHeader(HeaderAPIKey)); rawKey != "" {
			principal, err := keySvc.Authenticate(ctx, rawKey)
			if err != nil {
				response.Error(c, err)
				c.Abort()
				return
			}
			c.Set(CtxPrincipal, principal)
			c.Next()
			return
		}

		response.Error(c, apperror.ErrAuthenticationRequired())
		c.Abort()
	}
}

// RequirePermission rejects callers that may not exercise perm.
func RequirePermission(perm domain.Permission) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal := GetPrincipal(c)
		if principal == nil {
			response.Error(c, apperror.ErrAuthenticationRequired())
			c.Abort()
			return
		}
		if !principal.Can(perm) {
			response.Error(c, apperror.ErrMissingPermission(string(perm)))
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequireUser restricts a route to session-token callers.
func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		principal := GetPrincipal(c)
		if principal == nil {
			response.Error(c, apperror.ErrAuthenticationRequired())
			c.Abort()
			return
		}
		if !principal.IsUser() {
			response.Error(c, apperror.ErrUserCredentialRequired())
			c.Abort()
			return
		}
		c.Next()
	}
}

// GetPrincipal returns the authenticated caller, or nil.
func GetPrincipal(c *gin.Context) *domain.Principal {
	v, ok := c.Get(CtxPrincipal)
	if !ok {
		return nil
	}
	p, _ := v.(*domain.Principal)
	return p
}

// RequestLogger creates a middleware that logs every HTTP request.
func RequestLogger(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		status := c.Writer.Status()

		event := log.Info()
		if status >= http.StatusInternalServerError {
			event = log.Error()
		} else if status >= http.StatusBadRequest {
			event = log.Warn()
		}

		if p := GetPrincipal(c); p != nil && p.User != nil {
			event = event.Str("user_id", p.User.ID.String()).Str("auth", string(p.Kind))
		}

		event.
			Str("request_id", c.GetString(CtxRequestID)).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Dur("latency", latency).
			Str("client_ip", c.ClientIP()).
			Msg("http request")
	}
}

// Recovery creates a panic recovery middleware.
func Recovery(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Error().Interface("panic", r).Str("path", c.Request.URL.Path).Msg("panic recovered")
				response.Error(c, apperror.InternalError(nil))
				c.Abort()
			}
		}()
		c.Next()
	}
}
