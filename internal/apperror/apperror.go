// Package apperror defines the typed failures returned by the service layer.
//
// Every failure a caller can act on is an *AppError wrapping one of the
// sentinel errors below. Transport layers match on the sentinel with
// errors.Is and never on the message text.
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrValidation        = errors.New("validation error")
	ErrConflict          = errors.New("conflict")
	ErrForbidden         = errors.New("forbidden")
	ErrUnauthenticated   = errors.New("unauthenticated")
	ErrUserNotFound      = errors.New("user not found")
	ErrEntitlementDenied = errors.New("entitlement denied")
	ErrInvalidSignature  = errors.New("invalid signature")
	ErrUnavailable       = errors.New("upstream unavailable")
)

type AppError struct {
	Err     error  // actual error
	Message string // Human-readable error message
	Field   string // Optional: field causing the error
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

func Conflict(resource, id string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: fmt.Sprintf("%s conflict with id %s", resource, id),
	}
}

// Forbidden returns an AppError indicating the caller lacks permission.
// HTTP handlers map this to 403 Forbidden.
func Forbidden(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Message: message,
	}
}

// Unauthenticated means no verified caller identity was present.
func Unauthenticated() *AppError {
	return &AppError{
		Err:     ErrUnauthenticated,
		Message: "authentication required",
	}
}

// UserNotFound means the identity is valid but was never synced into the
// users collection (the identity webhook has not arrived yet).
func UserNotFound(identity string) *AppError {
	return &AppError{
		Err:     ErrUserNotFound,
		Message: fmt.Sprintf("no user record for identity %s", identity),
	}
}

// EntitlementDenied carries the actionable "upgrade required" message shown
// to free-tier users who pick a pro language.
func EntitlementDenied(language string) *AppError {
	return &AppError{
		Err:     ErrEntitlementDenied,
		Message: fmt.Sprintf("upgrade required: %s is only available on the pro plan", language),
		Field:   "language",
	}
}

func InvalidSignature(reason string) *AppError {
	return &AppError{
		Err:     ErrInvalidSignature,
		Message: "invalid webhook signature: " + reason,
	}
}

// Unavailable wraps a transport failure talking to the store or the sandbox.
// Callers may retry; nothing in this module does.
func Unavailable(service string, cause error) *AppError {
	return &AppError{
		Err:     errors.Join(ErrUnavailable, cause),
		Message: fmt.Sprintf("%s is unavailable, try again later", service),
	}
}
