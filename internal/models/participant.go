package models

import (
	"time"

	"github.com/google/uuid"
)

// Participant is an attendee record. Token holds the current single-use redemption token and is
// cleared when the participant checks in.
type Participant struct {
	ID            uuid.UUID  `json:"id"`
	UniqueID      string     `json:"unique_id"`
	Name          string     `json:"name"`
	Email         string     `json:"email"`
	Present       bool       `json:"present"`
	Token         *string    `json:"-"`
	TokenIssuedAt *time.Time `json:"token_issued_at,omitempty"`
	RegisteredAt  *time.Time `json:"registered_at,omitempty"`
	CheckedInAt   *time.Time `json:"checked_in_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// HasTicket reports whether an unredeemed ticket is outstanding.
func (p *Participant) HasTicket() bool {
	return p.Token != nil && *p.Token != ""
}

// Attendance filters for list and export.
const (
	AttendanceAll         = "all"
	AttendanceAttended    = "attended"
	AttendanceNotAttended = "not-attended"
)
