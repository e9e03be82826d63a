package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// User is the identity anchor every wallet and API key hangs off.
type User struct {
	ID         uuid.UUID `json:"id"`
	Email      string    `json:"email"`
	Name       *string   `json:"name,omitempty"`
	ExternalID *string   `json:"external_id,omitempty"` // identity provider subject
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// NormalizeEmail lowercases and trims an email so lookups are case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
