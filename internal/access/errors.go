package access

import "errors"

// Domain errors for the access package. Storage faults are wrapped with
// database.ErrUnavailable or database.ErrTimeout instead.
var (
	// ErrInvalidInput is returned when a required field is missing or blank.
	ErrInvalidInput = errors.New("access: invalid input")

	// ErrDuplicateGrant is returned when the card UID already has a grant.
	ErrDuplicateGrant = errors.New("access: card already granted")
)
