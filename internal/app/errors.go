package service

import "errors"

// Sentinel kinds for the evaluation service.
var (
	ErrNotStarted   = errors.New("service not started")
	ErrBackpressure = errors.New("evaluation queue is full")
	ErrInvalidInput = errors.New("invalid evaluation input")
)
