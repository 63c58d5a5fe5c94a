package repository

import "errors"

// Sentinel kinds for store errors.
var (
	ErrNotFound       = errors.New("evaluation not found")
	ErrInvalidID      = errors.New("invalid evaluation id")
	ErrBackend        = errors.New("store backend failure")
	ErrUnknownBackend = errors.New("unknown store backend")
)
