package domain

import "errors"

// Data consistency errors are fatal for the stage that hits them.
var (
	ErrGridMismatch   = errors.New("grid mismatch")
	ErrMissingPeriod  = errors.New("missing period")
	ErrDuplicateTime  = errors.New("duplicate time step")
	ErrMalformedInput = errors.New("malformed input")
)

// ErrTransient marks failures worth retrying (network errors, throttling,
// upstream 5xx responses).
var ErrTransient = errors.New("transient failure")
