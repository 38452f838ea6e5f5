package feed

import "errors"

// Feed errors.
var (
	ErrMalformedRow = errors.New("malformed match row")
	ErrNoData       = errors.New("match data directory not found")
)
