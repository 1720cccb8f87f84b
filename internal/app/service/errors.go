package service

import (
	"errors"
	"fmt"
)

// Failure kinds callers may branch on. Anything a backend reports that is
// not one of these is normalized to ErrStorage with the cause logged
// server-side only, so SQL text and driver details never leak to callers.
var (
	ErrValidation          = errors.New("invalid input")
	ErrNotFound            = errors.New("not found")
	ErrConflict            = errors.New("already exists")
	ErrForbidden           = errors.New("forbidden")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrGenerationExhausted = errors.New("short code generation exhausted")
	ErrStorage             = errors.New("storage failure")
)

// IsNotFound reports whether err is a not-found condition.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsConflict reports whether err indicates a uniqueness conflict.
func IsConflict(err error) bool { return errors.Is(err, ErrConflict) }

// IsValidation reports whether err indicates malformed input.
func IsValidation(err error) bool { return errors.Is(err, ErrValidation) }

// IsForbidden reports whether err indicates an ownership violation.
func IsForbidden(err error) bool { return errors.Is(err, ErrForbidden) }

func validationf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
