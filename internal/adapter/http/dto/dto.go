package dto

import (
	"encoding/json"
	"time"
)

// ---- Auth ----

// SignInQuery is the query string of the identity provider callback.
// token is accepted as an alias of id_token.
type SignInQuery struct {
	IDToken string `form:"id_token"`
	Token   string `form:"token"`
	Email   string `form:"email"`
	Name    string `form:"name"`
}

// ProviderInfoResponse tells a client how to start sign-in.
type ProviderInfoResponse struct {
	AuthURL     *string `json:"auth_url"`
	RedirectURI string  `json:"redirect_uri"`
	Note        string  `json:"note,omitempty"`
}

// SignInResponse is returned after a successful sign-in.
type SignInResponse struct {
	Token     string         `json:"token"`
	ExpiresAt time.Time      `json:"expires_at"`
	User      UserResponse   `json:"user"`
	Wallet    WalletResponse `json:"wallet"`
}

type UserResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      *string   `json:"name,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// PublicConfigResponse holds the non-secret client configuration.
type PublicConfigResponse struct {
	GoogleClientID   *string `json:"google_client_id"`
	GatewayPublicKey *string `json:"gateway_public_key"`
}

// ---- API keys ----

// CreateKeyRequest is the request body for POST /keys/create.
type CreateKeyRequest struct {
	Name        string   `json:"name" binding:"required,max=100"`
	Permissions []string `json:"permissions" binding:"required,min=1,dive,required"`
	Expiry      string   `json:"expiry" binding:"required,expiry_token"`
}

// RolloverKeyRequest is the request body for POST /keys/rollover.
type RolloverKeyRequest struct {
	ExpiredKeyID string `json:"expired_key_id" binding:"required,uuid"`
	Expiry       string `json:"expiry" binding:"required,expiry_token"`
}

// RevokeKeyRequest is the request body for POST /keys/revoke.
type RevokeKeyRequest struct {
	APIKey string `json:"api_key" binding:"required"`
}

// IssuedKeyResponse carries a freshly issued secret. It is the only response
// that ever contains the plaintext key.
type IssuedKeyResponse struct {
	APIKey      string    `json:"api_key"`
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Permissions []string  `json:"permissions"`
	ExpiresAt   time.Time `json:"expires_at"`
}

type RevokeKeyResponse struct {
	Status string `json:"status"`
	ID     string `json:"id"`
}

// KeyResponse describes a stored key without its secret.
type KeyResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Prefix      string    `json:"prefix"`
	Permissions []string  `json:"permissions"`
	ExpiresAt   time.Time `json:"expires_at"`
	CreatedAt   time.Time `json:"created_at"`
}

// ---- Wallet ----

// DepositRequest is the request body for POST /wallet/deposit. Amount is in
// minor units.
type DepositRequest struct {
	Amount json.Number `json:"amount"`
}

type DepositResponse struct {
	Reference        string `json:"reference"`
	AuthorizationURL string `json:"authorization_url"`
}

type DepositStatusResponse struct {
	Reference string `json:"reference"`
	Status    string `json:"status"`
	Amount    int64  `json:"amount"`
}

type BalanceResponse struct {
	Balance      int64  `json:"balance"`
	WalletNumber string `json:"wallet_number"`
}

type WalletResponse struct {
	WalletNumber string `json:"wallet_number"`
	Balance      int64  `json:"balance"`
}

// TransferRequest is the request body for POST /wallet/transfer.
type TransferRequest struct {
	WalletNumber string      `json:"wallet_number" binding:"required"`
	Amount       json.Number `json:"amount"`
}

type TransferResponse struct {
	Status    string `json:"status"`
	Message   string `json:"message"`
	Reference string `json:"reference"`
	Amount    int64  `json:"amount"`
}

// TransactionListQuery is the query string of GET /wallet/transactions.
type TransactionListQuery struct {
	Type     string `form:"type" binding:"omitempty,oneof=deposit transfer"`
	Status   string `form:"status" binding:"omitempty,oneof=pending success failed"`
	Page     int    `form:"page" binding:"omitempty,min=1"`
	PageSize int    `form:"page_size" binding:"omitempty,min=1,max=100"`
}

type HistoryEntryResponse struct {
	Reference string    `json:"reference"`
	Type      string    `json:"type"`
	Amount    int64     `json:"amount"`
	Status    string    `json:"status"`
	Direction string    `json:"direction"`
	CreatedAt time.Time `json:"created_at"`
}

// ---- Webhook ----

// WebhookAck is the body the gateway expects back from a delivery.
type WebhookAck struct {
	Status  bool   `json:"status"`
	Message string `json:"message,omitempty"`
}
