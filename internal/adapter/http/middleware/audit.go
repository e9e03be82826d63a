package middleware

import (
	"encoding/json"
	"net/http"
	"time"

	"custodial-wallet/internal/core/domain"
	"custodial-wallet/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// AuditLog records successful key-management, money-movement and sign-in
// requests once the handler has responded.
func AuditLog(auditSvc ports.AuditService) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		status := c.Writer.Status()
		if status < 200 || status >= 300 {
			return
		}

		action, resourceType := mapRouteToAction(c.FullPath(), c.Request.Method)
		if action == "" {
			return
		}

		entry := &domain.AuditLog{
			ID:           uuid.New(),
			Action:       action,
			ResourceType: resourceType,
			IPAddress:    c.ClientIP(),
			CreatedAt:    time.Now().UTC(),
		}
		if p := GetPrincipal(c); p != nil {
			if p.User != nil {
				entry.UserID = &p.User.ID
			}
			if p.Key != nil {
				entry.APIKeyID = &p.Key.ID
			}
		}

		details, _ := json.Marshal(map[string]interface{}{
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     status,
			"request_id": c.GetString(CtxRequestID),
		})
		entry.Details = string(details)

		auditSvc.Log(c.Request.Context(), entry)
	}
}

func mapRouteToAction(route, method string) (domain.AuditAction, string) {
	switch {
	case route == "/auth/google/callback" && method == http.MethodGet:
		return domain.AuditActionSignIn, "session"
	case route == "/keys/create" && method == http.MethodPost:
		return domain.AuditActionKeyCreate, "api_key"
	case route == "/keys/rollover" && method == http.MethodPost:
		return domain.AuditActionKeyRollover, "api_key"
	case route == "/keys/revoke" && method == http.MethodPost:
		return domain.AuditActionKeyRevoke, "api_key"
	case route == "/wallet/deposit" && method == http.MethodPost:
		return domain.AuditActionDeposit, "transaction"
	case route == "/wallet/transfer" && method == http.MethodPost:
		return domain.AuditActionTransfer, "transaction"
	}
	return "", ""
}
