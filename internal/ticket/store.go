package ticket

import (
	"context"

	"github.com/aura-checkin/backend/internal/models"
)

// MarkResult is the outcome of Store.ConditionalMarkAttended.
type MarkResult int

const (
	// MarkSucceeded means attendance was set and the token cleared by this call.
	MarkSucceeded MarkResult = iota + 1
	// MarkAlreadyAttended means the participant was already present.
	MarkAlreadyAttended
	// MarkTokenMismatch means the stored token is absent or differs from the expected one.
	MarkTokenMismatch
)

func (r MarkResult) String() string {
	switch r {
	case MarkSucceeded:
		return "succeeded"
	case MarkAlreadyAttended:
		return "already_attended"
	case MarkTokenMismatch:
		return "token_mismatch"
	default:
		return "unknown"
	}
}

// Store is the persistence the validator depends on.
//
// GetByIdentity returns ErrParticipantNotFound when absent. SetToken replaces the outstanding token
// and must refuse (ErrAlreadyCheckedIn) once the participant is present. ConditionalMarkAttended
// must set present and clear the token in a single conditional write that only applies while the
// participant is not present and holds expectedToken; it may return ErrWriteConflict on contention.
type Store interface {
	GetByIdentity(ctx context.Context, identity string) (*models.Participant, error)
	SetToken(ctx context.Context, identity, token string) error
	ConditionalMarkAttended(ctx context.Context, identity, expectedToken string) (MarkResult, error)
}
