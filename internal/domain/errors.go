package domain

import "errors"

// Error kinds shared by every layer. Callers wrap them with fmt.Errorf("%w: ...")
// and test with errors.Is; anything that matches none of them is a store failure.
var (
	// ErrValidation marks a missing or malformed required field.
	ErrValidation = errors.New("validation failed")
	// ErrConflict marks a uniqueness violation.
	ErrConflict = errors.New("conflict")
	// ErrUnauthenticated marks a request without a valid session.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrForbidden marks an authenticated caller that does not own the resource.
	ErrForbidden = errors.New("forbidden")
	// ErrNotFound marks an absent resource.
	ErrNotFound = errors.New("not found")
)
