package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Error carries the HTTP status a failure should surface as.
type Error struct {
	Code    int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches on status and message so wrapped sentinels compare equal.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code && e.Message == t.Message
}

func New(code int, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap keeps err in the chain under a sentinel.
func Wrap(sentinel *Error, err error) *Error {
	return &Error{Code: sentinel.Code, Message: sentinel.Message, Err: err}
}

var (
	ErrNotFound           = New(http.StatusNotFound, "resource not found")
	ErrForbidden          = New(http.StatusForbidden, "access denied")
	ErrUnauthorized       = New(http.StatusUnauthorized, "authentication required")
	ErrInvalidCredentials = New(http.StatusUnauthorized, "invalid credentials")
	ErrInvalidToken       = New(http.StatusUnauthorized, "invalid or expired token")
	ErrEmailTaken         = New(http.StatusConflict, "email already registered")
	ErrBadRequest         = New(http.StatusBadRequest, "bad request")
)

// StatusOf maps any error to an HTTP status, 500 when nothing in the chain says otherwise.
func StatusOf(err error) int {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return http.StatusInternalServerError
}
