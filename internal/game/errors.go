package game

import (
	"errors"
	"fmt"
)

// Error categories. Concrete errors wrap one of these so callers can
// classify them with errors.Is.
var (
	ErrValidation    = errors.New("invalid request")
	ErrAuthorization = errors.New("not allowed")
	ErrConflict      = errors.New("conflict")
	ErrNotFound      = errors.New("not found")
)

func validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func authorizationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrAuthorization, fmt.Sprintf(format, args...))
}

func conflictf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConflict, fmt.Sprintf(format, args...))
}

func notFoundf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}
