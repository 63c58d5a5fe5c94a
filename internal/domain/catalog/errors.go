package catalog

import "errors"

// Sentinel error kinds for this package.
var (
	ErrProgramNotFound = errors.New("program not found")
	ErrInvalidCatalog  = errors.New("invalid catalog")
	ErrLoadCatalog     = errors.New("load catalog failed")
)
