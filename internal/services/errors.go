package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Bright-River-CGI/lifestyle-app/internal/access"
	"github.com/Bright-River-CGI/lifestyle-app/internal/lifecycle"
	"github.com/Bright-River-CGI/lifestyle-app/internal/repository"
	"gorm.io/gorm"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrValidation      = errors.New("validation failed")
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrUnauthorized means the caller is known but the access policy denies
	// the operation.
	ErrUnauthorized = errors.New("unauthorized")
	ErrConflict     = errors.New("conflict")
	// ErrInvalidTransition is a Conflict: the entity is not in a state that
	// permits the requested status change.
	ErrInvalidTransition = fmt.Errorf("%w: invalid status transition", ErrConflict)
)

type FieldError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ValidationError carries every field problem found in one request.
type ValidationError struct {
	Errors []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Errors))
	for _, f := range e.Errors {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

func (e *ValidationError) add(field, code, message string) {
	e.Errors = append(e.Errors, FieldError{Field: field, Code: code, Message: message})
}

func (e *ValidationError) orNil() error {
	if e == nil || len(e.Errors) == 0 {
		return nil
	}
	return e
}

func newValidationError(field, code, message string) error {
	v := &ValidationError{}
	v.add(field, code, message)
	return v
}

// translate maps errors from the layers below onto the service taxonomy.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case isServiceError(err):
		return err
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	case errors.Is(err, repository.ErrStaleVersion):
		return fmt.Errorf("%w: order was modified concurrently", ErrConflict)
	case errors.Is(err, access.ErrDenied):
		return fmt.Errorf("%w: %v", ErrUnauthorized, err)
	case errors.Is(err, lifecycle.ErrInvalidTransition):
		return fmt.Errorf("%w: %v", ErrInvalidTransition, err)
	case errors.Is(err, lifecycle.ErrUnknownStatus):
		return newValidationError("status", "invalid_status", err.Error())
	default:
		return err
	}
}

func isServiceError(err error) bool {
	for _, target := range []error{ErrNotFound, ErrValidation, ErrUnauthenticated, ErrUnauthorized, ErrConflict} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
