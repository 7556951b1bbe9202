package ogc

import "errors"

// Sentinel errors returned by stores, the registry, and the executor.
// Callers match them with errors.Is; the HTTP layer maps each to a
// status code.
var (
	// ErrNotFound indicates an unknown process or job identifier.
	ErrNotFound = errors.New("not found")

	// ErrConflict indicates a duplicate job identifier on create.
	ErrConflict = errors.New("already exists")

	// ErrInvalidTransition indicates a conditional status update whose
	// precondition did not hold, either because the transition lost a
	// race or because the target state is unreachable from the current
	// one.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrValidation indicates a malformed request.
	ErrValidation = errors.New("validation failed")
)
