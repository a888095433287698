package records

import "errors"

// Sentinel kinds for row-level parse failures. They never abort a batch; the
// parser counts and skips the offending row.
var (
	ErrTooFewFields = errors.New("too few fields")
	ErrEmptyID      = errors.New("empty student id")
	ErrBadNumber    = errors.New("invalid number")
	ErrOutOfRange   = errors.New("value out of range")
)
