package ports

import (
	"context"
	"time"

	"custodial-wallet/internal/core/domain"

	"github.com/google/uuid"
)

// --- Infrastructure ports ---

// TokenService handles user session JWTs.
type TokenService interface {
	Generate(userID uuid.UUID, email string) (string, time.Time, error)
	Validate(tokenString string) (*TokenClaims, error)
}

// TokenClaims holds the parsed JWT claims.
type TokenClaims struct {
	UserID uuid.UUID
	Email  string
}

// SignatureService computes and checks keyed payload signatures.
type SignatureService interface {
	Sign(secret string, payload []byte) string
	Verify(secret string, payload []byte, signature string) bool
}

// KeyHasher derives the stored lookup digest of an API key secret.
type KeyHasher interface {
	Hash(secret string) string
}

// IdempotencyCache is the fast-path idempotency lookup.
type IdempotencyCache interface {
	Get(ctx context.Context, key string) ([]byte, error) // cached response JSON or nil
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// RateLimitStore counts requests per key and window.
type RateLimitStore interface {
	Allow(ctx context.Context, key string, limit int64, window time.Duration) (*RateLimitResult, error)
}

// RateLimitResult holds the outcome of a rate limit check.
type RateLimitResult struct {
	Allowed   bool
	Limit     int64
	Remaining int64
	ResetAt   int64 // Unix timestamp when the window resets
}

// --- External collaborators ---

// IdentityVerifier turns an identity-provider token into a verified identity.
type IdentityVerifier interface {
	Verify(ctx context.Context, idToken string) (*VerifiedIdentity, error)
}

// VerifiedIdentity is the subset of identity claims the ledger relies on.
type VerifiedIdentity struct {
	Email   string
	Name    string
	Subject string
}

// PaymentGateway starts hosted checkouts.
type PaymentGateway interface {
	Initialize(ctx context.Context, req GatewayInitRequest) (*GatewayInitResult, error)
}

// GatewayInitRequest describes a checkout in minor units.
type GatewayInitRequest struct {
	Amount    int64
	Email     string
	Reference string
}

// GatewayInitResult is what the caller needs to complete the checkout.
type GatewayInitResult struct {
	AuthorizationURL string
	AccessCode       string
}

// --- Service Ports (Business Logic) ---

// AuthService covers identity records and user sessions.
type AuthService interface {
	SignIn(ctx context.Context, req SignInRequest) (*SignInResult, error)
	CreateUser(ctx context.Context, email, name, externalID string) (*domain.User, error)
	GetUser(ctx context.Context, id uuid.UUID) (*domain.User, error)
	FindUserByEmail(ctx context.Context, email string) (*domain.User, error)
	ListUsers(ctx context.Context, page, pageSize int) ([]domain.User, error)
	AuthenticateToken(ctx context.Context, token string) (*domain.User, error)
	ProviderInfo(requestBaseURL string) ProviderInfo
}

// SignInRequest carries either a provider token or, in mock mode, an email.
type SignInRequest struct {
	IDToken   string
	MockEmail string
	MockName  string
}

// SignInResult is returned after a successful sign-in.
type SignInResult struct {
	Token     string
	ExpiresAt time.Time
	User      *domain.User
	Wallet    *domain.Wallet
}

// ProviderInfo describes how a client starts the identity flow.
type ProviderInfo struct {
	AuthURL     string
	RedirectURI string
	MockEnabled bool
}

// APIKeyService governs the API key lifecycle.
type APIKeyService interface {
	Create(ctx context.Context, req CreateKeyRequest) (*IssuedKey, error)
	Rollover(ctx context.Context, req RolloverKeyRequest) (*IssuedKey, error)
	Revoke(ctx context.Context, userID uuid.UUID, rawKey string) (*RevokeResult, error)
	ListActive(ctx context.Context, userID uuid.UUID) ([]domain.APIKey, error)
	Authenticate(ctx context.Context, rawKey string) (*domain.Principal, error)
}

// CreateKeyRequest holds unvalidated input for key creation.
type CreateKeyRequest struct {
	UserID      uuid.UUID
	Name        string
	Permissions []string
	Expiry      string
}

// RolloverKeyRequest renews an expired key.
type RolloverKeyRequest struct {
	UserID       uuid.UUID
	ExpiredKeyID uuid.UUID
	Expiry       string
}

// IssuedKey carries the plaintext secret, which is shown exactly once.
type IssuedKey struct {
	Key    *domain.APIKey
	Secret string
}

// Revocation statuses.
const (
	RevokeStatusRevoked        = "revoked"
	RevokeStatusAlreadyRevoked = "already_revoked"
)

// RevokeResult reports the key state after a revoke call.
type RevokeResult struct {
	KeyID  uuid.UUID
	Status string
}

// LedgerService covers wallets, deposits and transfers.
type LedgerService interface {
	EnsureWallet(ctx context.Context, userID uuid.UUID) (*domain.Wallet, error)
	FindWalletByNumber(ctx context.Context, number string) (*domain.Wallet, error)
	Deposit(ctx context.Context, req DepositRequest) (*DepositResult, error)
	DepositStatus(ctx context.Context, userID uuid.UUID, reference string) (*domain.Transaction, error)
	Transfer(ctx context.Context, req TransferRequest) (*domain.Transaction, error)
}

// DepositRequest holds input for a gateway deposit.
type DepositRequest struct {
	UserID uuid.UUID
	Email  string
	Amount int64
}

// DepositResult is returned once the gateway has issued a checkout.
type DepositResult struct {
	Reference        string
	AuthorizationURL string
	Transaction      *domain.Transaction
}

// TransferRequest holds input for a wallet-to-wallet transfer.
type TransferRequest struct {
	SenderID       uuid.UUID
	WalletNumber   string
	Amount         int64
	IdempotencyKey string // optional
}

// ReconciliationService applies gateway callbacks to pending deposits.
type ReconciliationService interface {
	Reconcile(ctx context.Context, payload []byte, signature string) (*ReconcileResult, error)
}

// ReconcileResult summarizes what a callback did.
type ReconcileResult struct {
	Reference string
	Outcome   domain.ReconcileOutcome
	Credited  int64
}

// HistoryService lists a user's transactions.
type HistoryService interface {
	ListTransactions(ctx context.Context, params TransactionListParams) ([]HistoryEntry, bool, error)
}

// HistoryEntry is one row of a user's transaction history.
type HistoryEntry struct {
	Reference string
	Type      domain.TransactionType
	Amount    int64
	Status    domain.TransactionStatus
	Direction domain.Direction
	CreatedAt time.Time
}

// AuditService records audit entries.
type AuditService interface {
	Log(ctx context.Context, entry *domain.AuditLog)
}
