package elo

import "errors"

// Batch validation errors, only returned in strict mode.
var (
	ErrOutOfOrder     = errors.New("match predates the latest folded match")
	ErrDuplicateMatch = errors.New("duplicate match in batch")
	ErrInvalidMatch   = errors.New("invalid match")
)
