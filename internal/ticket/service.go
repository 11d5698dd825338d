// Package ticket issues QR ticket payloads and redeems them at check-in.
//
// A participant moves NotIssued -> Issued -> Redeemed. Issuing again while Issued replaces the
// token, which revokes any payload handed out earlier. Redeemed is terminal.
package ticket

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"

	"github.com/aura-checkin/backend/internal/metrics"
	"github.com/aura-checkin/backend/internal/models"
)

const (
	// MaxRedeemAttempts bounds the re-read/re-check loop when the conditional write loses a race.
	MaxRedeemAttempts = 3
	// DefaultStorageTries bounds retries of a single store call that failed to reach storage.
	DefaultStorageTries = 3
	defaultRetryInterval = 100 * time.Millisecond
)

// Ticket is the result of an issuance.
type Ticket struct {
	UniqueID string    `json:"unique_id"`
	Name     string    `json:"name"`
	Email    string    `json:"email"`
	Payload  string    `json:"payload"`
	IssuedAt time.Time `json:"issued_at"`
}

// Redemption identifies the participant a payload was redeemed for. It is also returned alongside
// ErrAlreadyCheckedIn so callers can show who the code belongs to.
type Redemption struct {
	UniqueID    string     `json:"unique_id"`
	Name        string     `json:"name"`
	CheckedInAt *time.Time `json:"checked_in_at,omitempty"`
}

// Service mints and redeems tickets against a Store.
type Service struct {
	store         Store
	logger        *zap.Logger
	now           func() time.Time
	newToken      func(identity string, at time.Time) string
	storageTries  uint
	retryInterval time.Duration
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the issuance clock.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithStorageRetry overrides how often a failing store call is attempted and the initial backoff.
func WithStorageRetry(tries uint, initial time.Duration) Option {
	return func(s *Service) {
		if tries > 0 {
			s.storageTries = tries
		}
		if initial > 0 {
			s.retryInterval = initial
		}
	}
}

// NewService creates a ticket service backed by store.
func NewService(store Store, logger *zap.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		store:         store,
		logger:        logger,
		now:           time.Now,
		newToken:      generateToken,
		storageTries:  DefaultStorageTries,
		retryInterval: defaultRetryInterval,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Issue mints a fresh token for identity, persists it and returns the encoded payload.
// Any earlier payload for the same identity stops being redeemable.
func (s *Service) Issue(ctx context.Context, identity string) (Ticket, error) {
	identity = strings.TrimSpace(identity)
	if !ValidIdentity(identity) {
		return Ticket{}, ErrParticipantNotFound
	}

	for attempt := 1; ; attempt++ {
		p, err := s.get(ctx, identity)
		if err != nil {
			return Ticket{}, err
		}
		if p.Present {
			return Ticket{}, ErrAlreadyCheckedIn
		}

		at := s.now()
		token := s.newToken(identity, at)
		payload, err := EncodePayload(identity, token)
		if err != nil {
			return Ticket{}, err
		}
		_, err = retryStorage(ctx, s, func() (struct{}, error) {
			return struct{}{}, s.store.SetToken(ctx, identity, token)
		})
		if errors.Is(err, ErrWriteConflict) {
			// Another writer held the row; the next read decides whether issuing still makes sense.
			if attempt >= MaxRedeemAttempts {
				s.logger.Warn("issue kept losing write races", zap.String("unique_id", identity), zap.Int("attempts", attempt))
				return Ticket{}, fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
			}
			continue
		}
		if err != nil {
			return Ticket{}, err
		}

		metrics.TicketsIssued.Inc()
		s.logger.Info("ticket issued", zap.String("unique_id", identity))
		return Ticket{
			UniqueID: p.UniqueID,
			Name:     p.Name,
			Email:    p.Email,
			Payload:  payload,
			IssuedAt: at,
		}, nil
	}
}

// Redeem validates a scanned payload and consumes its token. At most one caller succeeds for a
// given issued token.
//
// Attendance is checked before the token so a replayed payload reports ErrAlreadyCheckedIn rather
// than ErrInvalidOrUsedToken.
func (s *Service) Redeem(ctx context.Context, payload string) (Redemption, error) {
	red, err := s.redeem(ctx, payload)
	metrics.Redemptions.WithLabelValues(Kind(err)).Inc()
	if err != nil {
		s.logger.Info("redemption rejected", zap.String("unique_id", red.UniqueID), zap.String("kind", Kind(err)))
		return red, err
	}
	s.logger.Info("participant checked in", zap.String("unique_id", red.UniqueID))
	return red, nil
}

func (s *Service) redeem(ctx context.Context, payload string) (Redemption, error) {
	claim, err := DecodePayload(payload)
	if err != nil {
		return Redemption{}, err
	}

	for attempt := 1; ; attempt++ {
		p, err := s.get(ctx, claim.Identity)
		if err != nil {
			return Redemption{UniqueID: claim.Identity}, err
		}
		red := Redemption{UniqueID: p.UniqueID, Name: p.Name, CheckedInAt: p.CheckedInAt}
		if p.Present {
			return red, ErrAlreadyCheckedIn
		}
		if !tokenMatches(p.Token, claim.Token) {
			return red, ErrInvalidOrUsedToken
		}

		// A failed call may still have committed, so a verdict seen only after such a failure
		// cannot tell our own write from someone else's.
		ambiguous := false
		res, err := retryStorage(ctx, s, func() (MarkResult, error) {
			res, err := s.store.ConditionalMarkAttended(ctx, claim.Identity, claim.Token)
			if err != nil && !isStoreVerdict(err) {
				ambiguous = true
			}
			return res, err
		})
		switch {
		case err == nil && res == MarkSucceeded:
			at := s.now()
			red.CheckedInAt = &at
			return red, nil
		case err == nil && res == MarkAlreadyAttended && ambiguous:
			s.logger.Warn("check-in outcome unknown after retried write", zap.String("unique_id", claim.Identity))
			return red, fmt.Errorf("%w: check-in outcome unknown, verify attendance", ErrStorageUnavailable)
		case err == nil && res == MarkAlreadyAttended:
			return red, ErrAlreadyCheckedIn
		case errors.Is(err, ErrWriteConflict), err == nil && res == MarkTokenMismatch:
			// The record changed between read and write; the next read decides.
			if attempt >= MaxRedeemAttempts {
				return red, ErrConcurrentRedemption
			}
			s.logger.Debug("redeem lost race, re-reading", zap.String("unique_id", claim.Identity), zap.Int("attempt", attempt))
		case err != nil:
			return red, err
		default:
			return red, fmt.Errorf("unexpected mark result %v", res)
		}
	}
}

func (s *Service) get(ctx context.Context, identity string) (*models.Participant, error) {
	return retryStorage(ctx, s, func() (*models.Participant, error) {
		return s.store.GetByIdentity(ctx, identity)
	})
}

func tokenMatches(stored *string, claimed string) bool {
	if stored == nil || *stored == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(*stored), []byte(claimed)) == 1
}

// retryStorage runs op with bounded exponential backoff. Store verdicts pass through untouched;
// anything else that survives the retries is reported as ErrStorageUnavailable.
func retryStorage[T any](ctx context.Context, s *Service, op func() (T, error)) (T, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.retryInterval
	v, err := backoff.Retry(ctx, func() (T, error) {
		v, err := op()
		if err != nil && isStoreVerdict(err) {
			return v, backoff.Permanent(err)
		}
		return v, err
	}, backoff.WithBackOff(b), backoff.WithMaxTries(s.storageTries))
	if err != nil && !isStoreVerdict(err) {
		s.logger.Error("storage call failed", zap.Error(err), zap.Uint("tries", s.storageTries))
		return v, fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	return v, err
}
