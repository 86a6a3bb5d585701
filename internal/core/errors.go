package core

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidAmount      = errors.New("amount must be a positive number")
	ErrAmountPrecision    = errors.New("amount must have at most two decimal places")
	ErrAmountTooLarge     = fmt.Errorf("amount must be at most %s", Money{Cents: MaxAmountCents})
	ErrInvalidDate        = errors.New("date must be a valid calendar date in YYYY-MM-DD format")
	ErrInvalidCategory    = errors.New("category_id must be a positive integer")
	ErrInvalidUser        = errors.New("user_id must be a positive integer")
	ErrUnknownCategory    = errors.New("category does not exist")
	ErrUnknownUser        = errors.New("user does not exist")
	ErrImmutableField     = errors.New("field cannot be changed after creation")
	ErrDescriptionTooLong = fmt.Errorf("description must be at most %d characters", MaxDescriptionLength)
	ErrDescriptionControl = errors.New("description must not contain control characters")
	ErrEmptyName          = errors.New("name must not be empty")
	ErrInvalidEmail       = errors.New("email must be a valid address")
	ErrPasswordTooShort   = errors.New("password must be at least 8 characters")
	ErrPasswordTooLong    = errors.New("password must be at most 72 bytes")

	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("already exists")
)

// ValidationError reports a field that failed a domain constraint.
type ValidationError struct {
	Field string
	Err   error
}

func NewValidationError(field string, err error) *ValidationError {
	return &ValidationError{Field: field, Err: err}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Err.Error()
	}
	return e.Field + ": " + e.Err.Error()
}

func (e *ValidationError) Unwrap() error { return e.Err }

// ValidationErrors collects every failing field of one request.
type ValidationErrors []*ValidationError

func (v ValidationErrors) Error() string {
	msgs := make([]string, 0, len(v))
	for _, e := range v {
		msgs = append(msgs, e.Error())
	}
	return strings.Join(msgs, "; ")
}

func (v ValidationErrors) Unwrap() []error {
	errs := make([]error, 0, len(v))
	for _, e := range v {
		errs = append(errs, e)
	}
	return errs
}

// OrNil returns nil for an empty collection so callers can return it directly.
func (v ValidationErrors) OrNil() error {
	if len(v) == 0 {
		return nil
	}
	return v
}

// Fields flattens the collection into field -> message. The first message per field wins.
func (v ValidationErrors) Fields() map[string]string {
	out := make(map[string]string, len(v))
	for _, e := range v {
		if _, ok := out[e.Field]; !ok {
			out[e.Field] = e.Err.Error()
		}
	}
	return out
}

// NotFoundError reports a missing (or deleted) resource.
type NotFoundError struct {
	Resource string
	ID       int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Resource, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// ConflictError reports a uniqueness violation, e.g. a duplicate username.
type ConflictError struct {
	Resource string
	Field    string
}

func (e *ConflictError) Error() string {
	if e.Field == "" {
		return e.Resource + " already exists"
	}
	return fmt.Sprintf("%s with this %s already exists", e.Resource, e.Field)
}

func (e *ConflictError) Unwrap() error { return ErrConflict }

// IsValidation reports whether err carries one or more field validation failures.
func IsValidation(err error) bool {
	var ve *ValidationError
	var ves ValidationErrors
	return errors.As(err, &ves) || errors.As(err, &ve)
}

// ValidationFields extracts field -> message pairs from err, if any.
func ValidationFields(err error) map[string]string {
	var ves ValidationErrors
	if errors.As(err, &ves) {
		return ves.Fields()
	}
	var ve *ValidationError
	if errors.As(err, &ve) && ve.Field != "" {
		return map[string]string{ve.Field: ve.Err.Error()}
	}
	return nil
}
