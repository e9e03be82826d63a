package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       string `json:"error_code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"` // Wrapped internal error (not exposed to client)
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(code string, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// CodeOf returns the AppError code carried by err, or "" if there is none.
func CodeOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// ---- Validation (VAL) ----

// Validation returns a generic VAL_001 error with a caller-facing message.
func Validation(message string) *AppError {
	return New("VAL_001", message, http.StatusBadRequest)
}

func ErrInvalidAmount() *AppError {
	return New("VAL_002", "Amount must be a positive integer", http.StatusBadRequest)
}

func ErrInvalidExpiry() *AppError {
	return New("VAL_003", "Invalid expiry. Use 1H, 1D, 1M, or 1Y", http.StatusBadRequest)
}

func ErrNoValidPermissions() *AppError {
	return New("VAL_004", "No valid permissions supplied", http.StatusBadRequest)
}

// ---- Authorization (AUTH) ----

func ErrAuthenticationRequired() *AppError {
	return New("AUTH_001", "Authentication required", http.StatusUnauthorized)
}

func ErrInvalidToken() *AppError {
	return New("AUTH_002", "Invalid or expired token", http.StatusUnauthorized)
}

func ErrInvalidAPIKey() *AppError {
	return New("AUTH_003", "Invalid API key", http.StatusUnauthorized)
}

func ErrAPIKeyExpired() *AppError {
	return New("AUTH_004", "API key expired", http.StatusUnauthorized)
}

func ErrAPIKeyRevoked() *AppError {
	return New("AUTH_005", "API key revoked", http.StatusForbidden)
}

func ErrMissingPermission(permission string) *AppError {
	return New("AUTH_006", fmt.Sprintf("Missing %s permission", permission), http.StatusForbidden)
}

func ErrUserCredentialRequired() *AppError {
	return New("AUTH_007", "User credential required for this action", http.StatusForbidden)
}

func ErrIdentityVerification(err error) *AppError {
	return Wrap("AUTH_008", "Identity verification failed", http.StatusUnauthorized, err)
}

func ErrForbiddenResource(entity string) *AppError {
	return New("AUTH_009", fmt.Sprintf("Not allowed to access this %s", entity), http.StatusForbidden)
}

func ErrIdentityNotConfigured() *AppError {
	return New("AUTH_010", "Identity provider not configured", http.StatusBadRequest)
}

// ---- Not found (NF) ----

func ErrNotFound(entity string) *AppError {
	return New("NF_001", fmt.Sprintf("%s not found", entity), http.StatusNotFound)
}

// ---- Business rules (BIZ) ----

func ErrInsufficientFunds() *AppError {
	return New("BIZ_001", "Insufficient balance", http.StatusPaymentRequired)
}

func ErrSelfTransfer() *AppError {
	return New("BIZ_002", "Cannot transfer to your own wallet", http.StatusBadRequest)
}

func ErrKeyQuotaReached(limit int) *AppError {
	return New("BIZ_003",
		fmt.Sprintf("Maximum of %d active API keys reached. Revoke or let one expire.", limit),
		http.StatusConflict)
}

func ErrKeyNotExpired() *AppError {
	return New("BIZ_004", "Key is not expired yet", http.StatusConflict)
}

// ---- External dependencies (GW) ----

func ErrGatewayInitialize(err error) *AppError {
	return Wrap("GW_001", "Failed to initialize gateway deposit", http.StatusBadGateway, err)
}

// ---- Integrity (SEC) ----

func ErrInvalidSignature() *AppError {
	return New("SEC_001", "Invalid webhook signature", http.StatusUnauthorized)
}

func ErrMalformedPayload(message string) *AppError {
	return New("SEC_002", message, http.StatusBadRequest)
}

// ---- Rate Limiting (RATE) ----

func ErrRateLimitExceeded() *AppError {
	return New("RATE_001", "Rate limit exceeded", http.StatusTooManyRequests)
}

// ---- System & Infrastructure (SYS) ----

// InternalError wraps an internal error as a SYS_001 error.
func InternalError(err error) *AppError {
	return Wrap("SYS_001", "Internal server error", http.StatusInternalServerError, err)
}

func ErrUniqueValueExhausted(what string, attempts int) *AppError {
	return Wrap("SYS_002", "Could not allocate a unique value", http.StatusInternalServerError,
		fmt.Errorf("%s still colliding after %d attempts", what, attempts))
}
