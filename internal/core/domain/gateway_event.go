package domain

import (
	"time"

	"github.com/google/uuid"
)

// ReconcileOutcome is what a gateway callback did to the ledger.
type ReconcileOutcome string

const (
	OutcomeCredited         ReconcileOutcome = "credited"
	OutcomeMarkedFailed     ReconcileOutcome = "marked_failed"
	OutcomeAlreadyProcessed ReconcileOutcome = "already_processed"
)

// GatewayEvent records an authenticated gateway callback.
type GatewayEvent struct {
	ID            uuid.UUID        `json:"id"`
	Reference     string           `json:"reference"`
	Event         string           `json:"event"`
	PayloadStatus string           `json:"payload_status"`
	Outcome       ReconcileOutcome `json:"outcome"`
	Payload       string           `json:"payload"`
	CreatedAt     time.Time        `json:"created_at"`
}
