package service

import "errors"

// Sentinel kinds for orchestration errors.
var (
	ErrUnsupportedFile = errors.New("unsupported file type")
	ErrReadFailed      = errors.New("batch input could not be read")
	ErrCommitFailed    = errors.New("batch commit failed")
	ErrInvalidRecord   = errors.New("invalid record")
	ErrNotStarted      = errors.New("service not started")
	ErrStopped         = errors.New("service stopped")
)
