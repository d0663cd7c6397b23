package common

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError is a client-visible failure with a stable business code.
type AppError struct {
	Code    int
	Status  int
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Cause }

// Is matches on code so wrapped and re-messaged errors still compare equal.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// WithMessage returns a copy carrying a more specific message.
func (e *AppError) WithMessage(msg string) *AppError {
	return &AppError{Code: e.Code, Status: e.Status, Message: msg, Cause: e.Cause}
}

// Wrap returns a copy of e with cause attached.
func (e *AppError) Wrap(cause error) *AppError {
	return &AppError{Code: e.Code, Status: e.Status, Message: e.Message, Cause: cause}
}

var (
	ErrAuthRequired        = &AppError{Code: 40100, Status: http.StatusUnauthorized, Message: "authentication required"}
	ErrAuthInvalid         = &AppError{Code: 40101, Status: http.StatusUnauthorized, Message: "invalid or expired session"}
	ErrAuthExpired         = &AppError{Code: 40102, Status: http.StatusUnauthorized, Message: "session expired"}
	ErrAuthUserGone        = &AppError{Code: 40103, Status: http.StatusUnauthorized, Message: "user no longer exists"}
	ErrAuthAccountDisabled = &AppError{Code: 40301, Status: http.StatusForbidden, Message: "account deactivated"}
	ErrForbidden           = &AppError{Code: 40300, Status: http.StatusForbidden, Message: "insufficient permissions"}
	ErrNotFound            = &AppError{Code: 40400, Status: http.StatusNotFound, Message: "not found"}
	ErrValidation          = &AppError{Code: 10001, Status: http.StatusBadRequest, Message: "validation failed"}
	ErrConflict            = &AppError{Code: 40900, Status: http.StatusConflict, Message: "already exists"}
	ErrCacheUnavailable    = &AppError{Code: 50300, Status: http.StatusServiceUnavailable, Message: "cache unavailable"}
	ErrInternal            = &AppError{Code: 50000, Status: http.StatusInternalServerError, Message: "internal error"}
)

// AsAppError extracts the first *AppError in err's chain.
func AsAppError(err error) (*AppError, bool) {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}
