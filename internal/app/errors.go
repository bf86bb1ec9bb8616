package app

import "errors"

// ErrNotFound and related errors describe validation and runtime failures.
var (
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("revision conflict")
	ErrInvalidSnapshot = errors.New("invalid snapshot")
)
