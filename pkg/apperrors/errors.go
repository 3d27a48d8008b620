package apperrors

import (
	"errors"
	"fmt"
)

// AppError carries a Code alongside a human readable message and optional cause.
type AppError struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Cause   error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Cause }

// New builds an AppError without a cause.
func New(code Code, message string) error {
	return &AppError{Code: code, Message: message}
}

// Wrap builds an AppError around an underlying cause.
func Wrap(code Code, message string, cause error) error {
	return &AppError{Code: code, Message: message, Cause: cause}
}

func NotFound(msg string) error {
	return New(CodeNotFound, msg)
}

// Storage wraps any store failure that is not a missing row.
func Storage(msg string, cause error) error {
	return Wrap(CodeStorage, msg, cause)
}

func Validation(msg string) error {
	return New(CodeValidation, msg)
}

func Forbidden(msg string) error {
	return New(CodePermissionDenied, msg)
}

func Unauthorized(msg string) error {
	return New(CodeUnauthenticated, msg)
}

func RateLimited(msg string) error {
	return New(CodeRateLimited, msg)
}

// CodeOf returns the Code of the first AppError in err's chain.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeUnknown
}

func IsNotFound(err error) bool {
	return CodeOf(err) == CodeNotFound
}

func IsValidation(err error) bool {
	return CodeOf(err) == CodeValidation
}

func IsStorage(err error) bool {
	return CodeOf(err) == CodeStorage
}
