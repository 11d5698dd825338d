package models

import (
	"time"

	"github.com/google/uuid"
)

// EmailLogStatus for delivery.
const (
	EmailLogStatusSuccess = "success"
	EmailLogStatusError   = "error"
)

// EmailLog records an attempted ticket email. Entries are append-only.
type EmailLog struct {
	ID                  uuid.UUID `json:"id"`
	ParticipantUniqueID string    `json:"participant_unique_id"`
	RecipientEmail      string    `json:"email"`
	Status              string    `json:"status"`
	ErrorMessage        string    `json:"error_message,omitempty"`
	SentAt              time.Time `json:"sent_at"`
}
