package service

import (
	"fmt"
	"net/http"
)

// AppError is a request-visible error carrying the status code handlers
// should respond with. Internal detail stays server-side.
type AppError struct {
	Message    string
	StatusCode int
	Internal   error
}

func (e *AppError) Error() string {
	if e.Internal != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Internal)
	}
	return e.Message
}

// Unwrap exposes the internal error for errors.Is / errors.As
func (e *AppError) Unwrap() error {
	return e.Internal
}

// WithInternal returns a copy of the error with server-side detail attached
func (e *AppError) WithInternal(err error) *AppError {
	cpy := *e
	cpy.Internal = err
	return &cpy
}

var (
	ErrMissingFields = &AppError{
		Message:    "please complete all inputs",
		StatusCode: http.StatusBadRequest,
	}
	ErrPasswordMismatch = &AppError{
		Message:    "password does not match",
		StatusCode: http.StatusBadRequest,
	}
	ErrAccountExists = &AppError{
		Message:    "account already exists",
		StatusCode: http.StatusBadRequest,
	}
	ErrUserNotFound = &AppError{
		Message:    "user not found",
		StatusCode: http.StatusNotFound,
	}
	ErrTokenNotFound = &AppError{
		Message:    "token not found or invalid",
		StatusCode: http.StatusNotFound,
	}
	ErrIncorrectPassword = &AppError{
		Message:    "incorrect password",
		StatusCode: http.StatusBadRequest,
	}
	ErrNotVerified = &AppError{
		Message:    "account not verified, please check your email for the verification link",
		StatusCode: http.StatusBadRequest,
	}
	ErrAlreadyVerified = &AppError{
		Message:    "account has already been verified",
		StatusCode: http.StatusBadRequest,
	}
	ErrLinkExpired = &AppError{
		Message:    "link expired, please request a new one",
		StatusCode: http.StatusBadRequest,
	}
	// ErrVerificationResent reports the expired-verification outcome: the
	// link was stale, a fresh one is already on its way.
	ErrVerificationResent = &AppError{
		Message:    "session expired, a new verification link has been sent to your email",
		StatusCode: http.StatusBadRequest,
	}
)
