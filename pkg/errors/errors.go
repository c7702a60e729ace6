package errors

import (
	"errors"
	"fmt"
)

// ErrorType classifies failures of a camera API call
type ErrorType string

const (
	// ErrorTypeAuth means the camera rejected the credentials, or kept
	// rejecting the session after the single re-login. Never retryable.
	ErrorTypeAuth ErrorType = "auth"
	// ErrorTypeSessionExpired means an authenticated request came back 401.
	// Recovered internally by one re-login; callers only see it when
	// recovery is impossible.
	ErrorTypeSessionExpired ErrorType = "session_expired"
	// ErrorTypeNotFound means the endpoint answered 404. During protocol
	// detection this signals the login endpoint is absent on this firmware.
	ErrorTypeNotFound ErrorType = "not_found"
	// ErrorTypeTransport covers network failures and every other
	// unexpected HTTP status.
	ErrorTypeTransport ErrorType = "transport"
)

// Error represents a camera API error with type information
type Error struct {
	Type    ErrorType
	Message string
	Code    int
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s error (code %d): %s", e.Type, e.Code, e.Message)
}

// New builds a typed error
func New(t ErrorType, code int, format string, args ...interface{}) *Error {
	return &Error{
		Type:    t,
		Message: fmt.Sprintf(format, args...),
		Code:    code,
	}
}

// IsAuth reports whether err is a credential failure
func IsAuth(err error) bool {
	return isType(err, ErrorTypeAuth)
}

// IsSessionExpired reports whether err is an expired-session 401
func IsSessionExpired(err error) bool {
	return isType(err, ErrorTypeSessionExpired)
}

// IsNotFound reports whether err is a 404
func IsNotFound(err error) bool {
	return isType(err, ErrorTypeNotFound)
}

func isType(err error, t ErrorType) bool {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Type == t
	}
	return false
}
