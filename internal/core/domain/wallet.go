package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// WalletNumberLength is the number of decimal digits in a wallet number.
const WalletNumberLength = 12

// ErrBalanceUnderflow is returned by storage when applying a delta would leave
// the stored balance negative. The stored balance is left unchanged.
var ErrBalanceUnderflow = errors.New("balance would become negative")

// Wallet holds a user's balance in minor currency units.
type Wallet struct {
	ID           uuid.UUID `json:"id"`
	UserID       uuid.UUID `json:"user_id"`
	WalletNumber string    `json:"wallet_number"`
	Balance      int64     `json:"balance"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// IsValidWalletNumber reports whether s is exactly twelve ASCII digits.
func IsValidWalletNumber(s string) bool {
	if len(s) != WalletNumberLength {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
