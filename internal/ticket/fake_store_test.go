package ticket

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aura-checkin/backend/internal/models"
)

// fakeStore is an in-process Store guarded by a mutex. Its conditional write is atomic, like the
// SQL backends.
type fakeStore struct {
	mu           sync.Mutex
	participants map[string]models.Participant

	getFailures  int   // GetByIdentity fails this many times before answering
	failErr      error // error used for getFailures
	markErr      error // returned by every ConditionalMarkAttended when set
	setTokenErrs int   // SetToken fails with setTokenErr this many times before writing
	setTokenErr  error
	markAckLost  int // ConditionalMarkAttended commits but reports errConnRefused this many times
	beforeMark   func(identity string)
	getCalls     int
	markCalls    int
	setTokenCall int
}

func newFakeStore(identities ...string) *fakeStore {
	s := &fakeStore{participants: make(map[string]models.Participant)}
	for _, id := range identities {
		s.participants[id] = models.Participant{
			ID:       uuid.New(),
			UniqueID: id,
			Name:     "Name of " + id,
			Email:    id + "@example.com",
		}
	}
	return s
}

func (s *fakeStore) GetByIdentity(_ context.Context, identity string) (*models.Participant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getCalls++
	if s.getFailures > 0 {
		s.getFailures--
		return nil, s.failErr
	}
	p, ok := s.participants[identity]
	if !ok {
		return nil, ErrParticipantNotFound
	}
	if p.Token != nil {
		tok := *p.Token
		p.Token = &tok
	}
	return &p, nil
}

func (s *fakeStore) SetToken(_ context.Context, identity, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setTokenCall++
	if s.setTokenErrs > 0 {
		s.setTokenErrs--
		return s.setTokenErr
	}
	p, ok := s.participants[identity]
	if !ok {
		return ErrParticipantNotFound
	}
	if p.Present {
		return ErrAlreadyCheckedIn
	}
	now := time.Now()
	p.Token = &token
	p.TokenIssuedAt = &now
	s.participants[identity] = p
	return nil
}

func (s *fakeStore) ConditionalMarkAttended(_ context.Context, identity, expectedToken string) (MarkResult, error) {
	if s.beforeMark != nil {
		s.beforeMark(identity)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.markCalls++
	if s.markErr != nil {
		return 0, s.markErr
	}
	p, ok := s.participants[identity]
	if !ok {
		return 0, ErrParticipantNotFound
	}
	if p.Present {
		return MarkAlreadyAttended, nil
	}
	if p.Token == nil || *p.Token != expectedToken {
		return MarkTokenMismatch, nil
	}
	now := time.Now()
	p.Present = true
	p.Token = nil
	p.CheckedInAt = &now
	s.participants[identity] = p
	if s.markAckLost > 0 {
		s.markAckLost--
		return 0, errConnRefused
	}
	return MarkSucceeded, nil
}

func (s *fakeStore) participant(identity string) models.Participant {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.participants[identity]
}

var errConnRefused = errors.New("dial tcp 127.0.0.1:5432: connect: connection refused")
