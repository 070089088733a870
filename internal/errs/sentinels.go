// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import (
	"errors"
	"fmt"

	"github.com/gofrs/uuid/v5"
)

// Common sentinels across repo/service layers.
var (
	// ErrInvalidInput indicates a malformed or incomplete request; nothing was written.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateImage indicates the user already submitted an activity with the same image fingerprint.
	ErrDuplicateImage = errors.New("duplicate image")

	// ErrPartialFailure indicates the activity was persisted but the ledger/badge step failed.
	ErrPartialFailure = errors.New("partial failure")

	// ErrStorageUnavailable indicates the persistence layer could not be reached. Retryable.
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrAlreadyExists indicates a unique constraint violation (e.g., email taken).
	ErrAlreadyExists = errors.New("already exists")

	// ErrUnauthorized indicates failed authentication/authorization.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrRateLimited indicates temporary login lock due to rate limiting.
	ErrRateLimited = errors.New("rate limited")
)

// Invalid wraps ErrInvalidInput with a field-level message.
func Invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// Unavailable wraps a driver error as ErrStorageUnavailable, keeping the cause in the chain.
func Unavailable(err error) error {
	return fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
}

// PartialFailureError reports an activity that is durable while its ledger update is not.
type PartialFailureError struct {
	ActivityID uuid.UUID
	Err        error
}

func (e *PartialFailureError) Error() string {
	return fmt.Sprintf("partial failure: activity %s persisted, ledger not updated: %v", e.ActivityID, e.Err)
}

// Is makes errors.Is(err, ErrPartialFailure) hold.
func (e *PartialFailureError) Is(target error) bool { return target == ErrPartialFailure }

func (e *PartialFailureError) Unwrap() error { return e.Err }

// PartialActivityID extracts the persisted activity id from a partial failure.
func PartialActivityID(err error) (uuid.UUID, bool) {
	var pf *PartialFailureError
	if errors.As(err, &pf) {
		return pf.ActivityID, true
	}
	return uuid.Nil, false
}
