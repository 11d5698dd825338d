package ticket

import (
	"context"
	"errors"
)

// Redemption and issuance errors. Handlers map these to stable codes via Kind.
var (
	ErrMalformedPayload     = errors.New("malformed ticket payload")
	ErrParticipantNotFound  = errors.New("participant not found")
	ErrAlreadyCheckedIn     = errors.New("participant already checked in")
	ErrInvalidOrUsedToken   = errors.New("invalid or used ticket token")
	ErrConcurrentRedemption = errors.New("concurrent redemption, retry")
	ErrStorageUnavailable   = errors.New("storage unavailable")
)

// ErrWriteConflict is returned by a Store when a conditional write lost a race that is worth
// re-reading for (lock contention, serialization failure).
var ErrWriteConflict = errors.New("write conflict")

// Error kinds.
const (
	KindMalformedPayload     = "malformed_payload"
	KindParticipantNotFound  = "participant_not_found"
	KindAlreadyCheckedIn     = "already_checked_in"
	KindInvalidOrUsedToken   = "invalid_or_used_token"
	KindConcurrentRedemption = "concurrent_redemption"
	KindStorageUnavailable   = "storage_unavailable"
	KindInternal             = "internal"
	KindOK                   = "ok"
)

// Kind returns the stable code for err. A nil error is KindOK.
func Kind(err error) string {
	switch {
	case err == nil:
		return KindOK
	case errors.Is(err, ErrMalformedPayload):
		return KindMalformedPayload
	case errors.Is(err, ErrParticipantNotFound):
		return KindParticipantNotFound
	case errors.Is(err, ErrAlreadyCheckedIn):
		return KindAlreadyCheckedIn
	case errors.Is(err, ErrInvalidOrUsedToken):
		return KindInvalidOrUsedToken
	case errors.Is(err, ErrConcurrentRedemption):
		return KindConcurrentRedemption
	case errors.Is(err, ErrStorageUnavailable):
		return KindStorageUnavailable
	default:
		return KindInternal
	}
}

// isStoreVerdict reports whether err is an answer from the store rather than a failure to reach it.
// Verdicts are never retried as storage failures.
func isStoreVerdict(err error) bool {
	return errors.Is(err, ErrParticipantNotFound) ||
		errors.Is(err, ErrAlreadyCheckedIn) ||
		errors.Is(err, ErrWriteConflict) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}
