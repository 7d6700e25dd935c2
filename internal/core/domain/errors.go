package domain

import (
	"errors"
	"fmt"
)

// ErrValidation marks malformed or missing input.
var ErrValidation = errors.New("validation failed")

// ErrIdempotencyInFlight is returned when a request with the same idempotency key
// is still being processed.
var ErrIdempotencyInFlight = errors.New("a request with this idempotency key is already in progress")

// ValidationError carries a user-facing message and matches ErrValidation.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func (e *ValidationError) Unwrap() error { return ErrValidation }

// Invalidf builds a ValidationError with a formatted message.
func Invalidf(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}
