package shared

import "errors"

// Error taxonomy shared by domain packages; the HTTP layer maps these to statuses.
var (
	// ErrNotFound indicates an unknown role, page or action reference.
	ErrNotFound = errors.New("not found")
	// ErrValidation indicates malformed input.
	ErrValidation = errors.New("validation failed")
	// ErrDuplicate indicates a uniqueness policy violation.
	ErrDuplicate = errors.New("duplicate entry")
	// ErrProtected indicates an attempt to alter a protected resource.
	ErrProtected = errors.New("protected resource")
	// ErrConflict indicates a concurrent modification.
	ErrConflict = errors.New("version conflict")
	// ErrUnauthorized indicates missing or invalid credentials.
	ErrUnauthorized = errors.New("unauthorized")
)
