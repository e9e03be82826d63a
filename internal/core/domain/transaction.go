package domain

import (
	"time"

	"github.com/google/uuid"
)

// TransactionType represents the kind of money movement.
type TransactionType string

const (
	TransactionTypeDeposit  TransactionType = "deposit"
	TransactionTypeTransfer TransactionType = "transfer"
)

// TransactionStatus represents the lifecycle state of a transaction.
// pending -> success | failed. Transfers are written directly as success.
type TransactionStatus string

const (
	TransactionStatusPending TransactionStatus = "pending"
	TransactionStatusSuccess TransactionStatus = "success"
	TransactionStatusFailed  TransactionStatus = "failed"
)

// Direction is how a transaction affected a given user's balance.
type Direction string

const (
	DirectionCredit Direction = "credit"
	DirectionDebit  Direction = "debit"
)

// Reference prefixes.
const (
	ReferencePrefixDeposit  = "dep"
	ReferencePrefixTransfer = "trf"
)

// SourceGateway tags deposits that settle through the payment gateway.
const SourceGateway = "paystack"

// Transaction is an append-mostly ledger record. Deposits carry UserID;
// transfers carry FromUserID and ToUserID.
type Transaction struct {
	ID              uuid.UUID         `json:"id"`
	Reference       string            `json:"reference"`
	Type            TransactionType   `json:"type"`
	UserID          *uuid.UUID        `json:"user_id,omitempty"`
	FromUserID      *uuid.UUID        `json:"from_user_id,omitempty"`
	ToUserID        *uuid.UUID        `json:"to_user_id,omitempty"`
	Amount          int64             `json:"amount"`
	Status          TransactionStatus `json:"status"`
	Source          *string           `json:"source,omitempty"`
	WebhookEvent    *string           `json:"webhook_event,omitempty"`
	GatewayResponse *string           `json:"gateway_response,omitempty"`
	ErrorMessage    *string           `json:"error,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

// IsTerminal returns true if the transaction is in a final state.
func (t *Transaction) IsTerminal() bool {
	return t.Status == TransactionStatusSuccess || t.Status == TransactionStatusFailed
}

// BelongsTo reports whether userID owns the deposit or is a party to the transfer.
func (t *Transaction) BelongsTo(userID uuid.UUID) bool {
	for _, id := range []*uuid.UUID{t.UserID, t.FromUserID, t.ToUserID} {
		if id != nil && *id == userID {
			return true
		}
	}
	return false
}

// DirectionFor returns debit for a transfer sent by userID, credit otherwise.
func (t *Transaction) DirectionFor(userID uuid.UUID) Direction {
	if t.Type == TransactionTypeTransfer && t.FromUserID != nil && *t.FromUserID == userID {
		return DirectionDebit
	}
	return DirectionCredit
}

// TransactionUpdate is a status transition plus the audit fields captured with it.
// Nil fields are left untouched.
type TransactionUpdate struct {
	Status          TransactionStatus
	Amount          *int64
	WebhookEvent    *string
	GatewayResponse *string
	ErrorMessage    *string
}
