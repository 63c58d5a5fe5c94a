package api

import (
	"errors"
	"fmt"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest       = errors.New("bad request")
	ErrMethodNotAllowed = errors.New("method not allowed")
	ErrRateLimited      = errors.New("rate limit exceeded")

	errMissingName = errors.New("query parameter name is required")
	errMissingID   = errors.New("id is required in the path")
)

// kindError tags an error with the handler operation and a sentinel kind so
// callers can test it with errors.Is against either.
type kindError struct {
	op   string
	kind error
	err  error
}

func (e *kindError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("%s: %v", e.op, e.kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.op, e.kind, e.err)
}

// public is the message shown to clients; it leaves out the operation.
func (e *kindError) public() string {
	if e.err == nil {
		return e.kind.Error()
	}
	return fmt.Sprintf("%v: %v", e.kind, e.err)
}

func (e *kindError) Unwrap() []error {
	if e.err == nil {
		return []error{e.kind}
	}
	return []error{e.kind, e.err}
}

// WrapKind wraps err with kind for operation op.
func WrapKind(op string, kind, err error) error {
	return &kindError{op: op, kind: kind, err: err}
}

// NewKind returns a bare kind error for operation op.
func NewKind(op string, kind error) error {
	return &kindError{op: op, kind: kind}
}
