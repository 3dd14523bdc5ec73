package workflow

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound marks an unknown workflow or version id.
	ErrNotFound = errors.New("not found")
	// ErrValidation marks a malformed or unpersistable payload.
	ErrValidation = errors.New("validation failed")
)

func notFoundf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

func validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
