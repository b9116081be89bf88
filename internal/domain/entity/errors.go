package entity

import "errors"

// Validation errors shared across entity constructors.
var (
	// ErrEmptyCode indicates a coin or exchange record without an asset code.
	ErrEmptyCode = errors.New("code cannot be empty")

	// ErrInvalidTimestamp indicates a history point with a non-positive
	// millisecond timestamp.
	ErrInvalidTimestamp = errors.New("timestamp must be positive")

	// ErrInvalidTimeRange indicates a history query whose start does not
	// precede its end.
	ErrInvalidTimeRange = errors.New("start must be before end")
)
