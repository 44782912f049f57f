package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrInvalidRule occurs when an access rule entry cannot be parsed.
	ErrInvalidRule = errors.New("invalid access rule")
	// ErrInvalidPattern occurs when a rule pattern fails to compile.
	ErrInvalidPattern = errors.New("invalid rule pattern")
)
