package ideas

import (
	"errors"
	"fmt"
)

// Sentinel errors for the service. Handlers map these onto HTTP
// statuses; nothing below the HTTP layer knows about status codes.
var (
	// ErrNotFound: no idea with the given id.
	ErrNotFound = errors.New("idea not found")

	// ErrNotApproved: the idea exists but is not open for voting.
	ErrNotApproved = errors.New("idea is not approved for voting")

	// ErrStateConflict: a moderation call tried to cross from one
	// terminal status to the other.
	ErrStateConflict = errors.New("idea is already in a terminal status")

	// ErrSlugConflict: slug generation collided even after a retry.
	ErrSlugConflict = errors.New("could not generate a unique slug")

	// ErrStorageConflict: storage contention persisted past the bounded
	// retries. Transient; the caller may retry the whole request.
	ErrStorageConflict = errors.New("storage conflict, try again")
)

// ValidationError names the field that failed semantic validation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func validationErr(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}
