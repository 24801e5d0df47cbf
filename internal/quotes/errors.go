package quotes

import (
	"errors"
	"fmt"

	"github.com/bher20/equotemanager/internal/pricing"
)

var (
	// ErrInvalidSubmission is matched by every FieldError.
	ErrInvalidSubmission = errors.New("invalid submission")
	// ErrNotFound is returned when an admin operation targets a missing record.
	ErrNotFound = errors.New("not found")
)

// FieldError describes a rejected form field.
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}

func (e *FieldError) Unwrap() error { return ErrInvalidSubmission }

func fieldErr(field, reason string) error {
	return &FieldError{Field: field, Reason: reason}
}

// IsValidation reports whether err was caused by bad client input, either a
// form field or a pricing input.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidSubmission) || pricing.IsValidation(err)
}
