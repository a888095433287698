package api

import "errors"

// Sentinel kinds for API errors.
var (
	ErrBadRequest   = errors.New("bad request")
	ErrMissingFile  = errors.New("missing file field")
	ErrFileTooLarge = errors.New("uploaded file too large")
	ErrEmptyResults = errors.New("no results to export")
)
