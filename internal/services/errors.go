package services

import "errors"

type ErrorCode string

const (
	ErrorInvalid       ErrorCode = "invalid"
	ErrorUnauthorized  ErrorCode = "unauthorized"
	ErrorNotFound      ErrorCode = "not_found"
	ErrorNotConfigured ErrorCode = "not_configured"
	ErrorUnavailable   ErrorCode = "unavailable"
)

type ServiceError struct {
	Code    ErrorCode
	Message string
}

func (e *ServiceError) Error() string { return e.Message }

func NewInvalidError(msg string) error { return &ServiceError{Code: ErrorInvalid, Message: msg} }

func NewUnauthorizedError(msg string) error {
	return &ServiceError{Code: ErrorUnauthorized, Message: msg}
}

func NewNotFoundError(msg string) error { return &ServiceError{Code: ErrorNotFound, Message: msg} }

// NewNotConfiguredError marks a missing backing-store configuration; callers
// degrade rather than crash.
func NewNotConfiguredError(msg string) error {
	return &ServiceError{Code: ErrorNotConfigured, Message: msg}
}

// NewUnavailableError marks a network, auth, or service failure against the
// remote store. It is the signal that triggers the local-cache fallback.
func NewUnavailableError(msg string) error {
	return &ServiceError{Code: ErrorUnavailable, Message: msg}
}

func AsServiceError(err error) (*ServiceError, bool) {
	var se *ServiceError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// IsCode reports whether err carries the given service error code.
func IsCode(err error, code ErrorCode) bool {
	if se, ok := AsServiceError(err); ok {
		return se.Code == code
	}
	return false
}
