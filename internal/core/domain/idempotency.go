package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrDuplicateIdempotencyKey is returned by storage when a log for the key
// already exists.
var ErrDuplicateIdempotencyKey = errors.New("idempotency key already recorded")

// IdempotencyLog stores the result of a client-keyed request so a retry
// returns the original outcome instead of moving money twice.
type IdempotencyLog struct {
	Key           string    `json:"key"`
	TransactionID uuid.UUID `json:"transaction_id"`
	ResponseJSON  []byte    `json:"response_json"`
	CreatedAt     time.Time `json:"created_at"`
}

// BuildTransferIdempotencyKey scopes a client-supplied key to its user.
func BuildTransferIdempotencyKey(userID uuid.UUID, clientKey string) string {
	return userID.String() + ":transfer:" + clientKey
}
