package value

import (
	"errors"
	"fmt"
)

// ErrInvalid is matched by every ValidationError through errors.Is.
var ErrInvalid = errors.New("value: invalid input")

// ValidationError is returned when cell input cannot be converted to the
// column's type. It blocks the save; the caller keeps the cell in edit mode.
type ValidationError struct {
	Field  string
	Input  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("value: %q %s", e.Input, e.Reason)
	}
	return fmt.Sprintf("value: field %s: %q %s", e.Field, e.Input, e.Reason)
}

// Is reports whether target is ErrInvalid.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalid
}

// NewValidationError returns a ValidationError for the given field.
func NewValidationError(field, input, reason string) *ValidationError {
	return &ValidationError{Field: field, Input: input, Reason: reason}
}

// IsValidationError reports whether err (or anything it wraps) is a ValidationError.
func IsValidationError(err error) bool {
	if err == nil {
		return false
	}
	var e *ValidationError
	return errors.As(err, &e)
}
