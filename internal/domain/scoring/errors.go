package scoring

import "errors"

// Sentinel kinds for APS calculation.
var (
	ErrNoSubjects       = errors.New("no subjects to score")
	ErrInvalidMark      = errors.New("mark must be between 0 and 100")
	ErrInvalidSubject   = errors.New("invalid subject")
	ErrDuplicateSubject = errors.New("subject listed more than once")
)
