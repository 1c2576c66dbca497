// Package apperr defines the error taxonomy shared by services and HTTP handlers.
// Services wrap one of the sentinel kinds with %w; handlers map the kind to a status.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrValidation marks missing or malformed input.
	ErrValidation = errors.New("validation failed")
	// ErrConflict marks a uniqueness or concurrent-update conflict.
	ErrConflict = errors.New("conflict")
	// ErrUnauthenticated marks every authentication-path failure.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrNotFound marks a missing resource.
	ErrNotFound = errors.New("not found")
)

// Validation returns an ErrValidation carrying msg. The message is safe to show to clients.
func Validation(msg string) error {
	return fmt.Errorf("%w: %s", ErrValidation, msg)
}

// Unauthenticated wraps cause as ErrUnauthenticated while keeping cause matchable with errors.Is.
func Unauthenticated(cause error) error {
	if cause == nil {
		return ErrUnauthenticated
	}
	return fmt.Errorf("%w: %w", ErrUnauthenticated, cause)
}

// HTTPStatus maps err to the response status code. Unknown errors are 500.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage returns the message a client may see for err.
// Authentication failures share one message so callers cannot tell which check failed.
func PublicMessage(err error) string {
	switch {
	case errors.Is(err, ErrValidation):
		return err.Error()
	case errors.Is(err, ErrUnauthenticated):
		return "unauthenticated"
	case errors.Is(err, ErrConflict):
		return err.Error()
	case errors.Is(err, ErrNotFound):
		return err.Error()
	default:
		return "internal error"
	}
}
