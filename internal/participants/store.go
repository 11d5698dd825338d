// Package participants persists attendee records and serves the dashboard CRUD endpoints.
package participants

import (
	"context"
	"errors"

	"github.com/aura-checkin/backend/internal/models"
	"github.com/aura-checkin/backend/internal/ticket"
)

// ErrDuplicateIdentity is returned when a unique id is already taken.
var ErrDuplicateIdentity = errors.New("unique id already exists")

// Update holds optional field changes; nil fields are left untouched.
type Update struct {
	Name  *string
	Email *string
}

// Store is the participant persistence used by handlers, import, export and the ticket service.
// Not-found conditions are reported as ticket.ErrParticipantNotFound.
type Store interface {
	ticket.Store

	List(ctx context.Context, attendance string) ([]models.Participant, error)
	FindByIdentities(ctx context.Context, identities []string) ([]models.Participant, error)
	Identities(ctx context.Context) (map[string]struct{}, error)
	Create(ctx context.Context, p *models.Participant) error
	CreateBatch(ctx context.Context, ps []models.Participant) (int, error)
	Update(ctx context.Context, identity string, upd Update) (*models.Participant, error)
	Delete(ctx context.Context, identity string) error
	DeleteAll(ctx context.Context) (int64, error)
	Ping(ctx context.Context) error
}
