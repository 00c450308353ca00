package validation

import (
	"errors"
	"fmt"
	"strings"
)

type Error struct {
	Field string
	Msg   string
}

func (e *Error) Error() string {
	return e.Msg
}

func NewError(field, msg string) error {
	return &Error{Field: field, Msg: msg}
}

func IsValidationError(err error) bool {
	var validationError *Error
	return errors.As(err, &validationError)
}

type Errors struct {
	Errors []error
}

func (ve *Errors) Error() string {
	errorMessages := make([]string, len(ve.Errors))
	for i, err := range ve.Errors {
		errorMessages[i] = err.Error()
	}
	return fmt.Sprintf("multiple validation errors: %s", strings.Join(errorMessages, "; "))
}

// Add appends err. A nested *Errors is flattened.
func (ve *Errors) Add(err error) {
	if err == nil {
		return
	}
	var nested *Errors
	if errors.As(err, &nested) {
		ve.Errors = append(ve.Errors, nested.Errors...)
		return
	}
	ve.Errors = append(ve.Errors, err)
}

// ErrOrNil returns nil when nothing was collected so callers can `return ve.ErrOrNil()`.
func (ve *Errors) ErrOrNil() error {
	if len(ve.Errors) == 0 {
		return nil
	}
	return ve
}

// Fields maps each field to its first message.
func (ve *Errors) Fields() map[string]string {
	fields := make(map[string]string, len(ve.Errors))
	for _, err := range ve.Errors {
		var fieldErr *Error
		if errors.As(err, &fieldErr) {
			if _, seen := fields[fieldErr.Field]; !seen {
				fields[fieldErr.Field] = fieldErr.Msg
			}
		}
	}
	return fields
}

func (ve *Errors) Messages() []string {
	messages := make([]string, len(ve.Errors))
	for i, err := range ve.Errors {
		messages[i] = err.Error()
	}
	return messages
}

func IsValidationErrors(err error) bool {
	var validationErrors *Errors
	return errors.As(err, &validationErrors)
}
