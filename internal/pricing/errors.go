package pricing

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingInput is matched by validation errors for absent mandatory fields.
	ErrMissingInput = errors.New("missing required input")
	// ErrInvalidInput is matched by validation errors for out-of-range or
	// unrecognized values.
	ErrInvalidInput = errors.New("invalid input")
)

// ValidationError describes a rejected pricing input. It unwraps to either
// ErrMissingInput or ErrInvalidInput.
type ValidationError struct {
	Field  string
	Reason string
	kind   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("pricing: %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return e.kind }

func missing(field string) error {
	return &ValidationError{Field: field, Reason: "is required", kind: ErrMissingInput}
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...), kind: ErrInvalidInput}
}

// IsValidation reports whether err is a pricing input validation error.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
