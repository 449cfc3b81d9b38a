package metrics

import "errors"

// Sentinel errors for the metrics service layer.
var (
	ErrActivityNotFound = errors.New("activity not found")
	ErrInvalidEvent     = errors.New("invalid event payload")
)
