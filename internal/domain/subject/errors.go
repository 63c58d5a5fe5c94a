package subject

import "errors"

// Sentinel kinds for subject table construction.
var (
	ErrDuplicateCanonical = errors.New("duplicate canonical subject")
	ErrDuplicateAlias     = errors.New("alias owned by more than one subject")
	ErrUnknownExclusion   = errors.New("exclusion references unknown subject")
	ErrInvalidFamily      = errors.New("invalid subject family")
	ErrEmptyName          = errors.New("empty subject name")
)
