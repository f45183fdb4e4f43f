package ledger

import "errors"

// Error taxonomy. Concrete errors wrap one of these so callers can branch
// with errors.Is.
var (
	// ErrValidation marks rejected user input. Nothing was mutated.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound marks a lookup of an entity that does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDataShape marks malformed persisted or uploaded data.
	ErrDataShape = errors.New("malformed data")

	// ErrConfirmationRequired marks a destructive operation attempted
	// without an explicit confirmation.
	ErrConfirmationRequired = errors.New("confirmation required")
)
