package repository

import "errors"

// Sentinel kinds for store errors.
var (
	ErrWriteFailed   = errors.New("batch write failed")
	ErrNotFound      = errors.New("batch not found")
	ErrUnknownDriver = errors.New("unknown store driver")
	ErrClosed        = errors.New("store closed")
)
