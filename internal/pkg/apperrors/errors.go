package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

type ErrorType string

const (
	ErrNotFound        ErrorType = "NOT_FOUND"
	ErrForbidden       ErrorType = "FORBIDDEN"
	ErrBadRequest      ErrorType = "BAD_REQUEST"
	ErrTooManyRequests ErrorType = "TOO_MANY_REQUESTS"
	ErrBadGateway      ErrorType = "BAD_GATEWAY"
	ErrAuthFailed      ErrorType = "AUTH_FAILED"
	ErrConflict        ErrorType = "CONFLICT"
	ErrReadOnly        ErrorType = "READ_ONLY"
	ErrInternal        ErrorType = "INTERNAL_ERROR"
)

// AppError is the standard error struct for the application
type AppError struct {
	Type       ErrorType `json:"code"`
	Message    string    `json:"message"`
	Suggestion string    `json:"suggestion,omitempty"`
	HTTPStatus int       `json:"-"`
	Cause      error     `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func New(errType ErrorType, msg string, cause error) *AppError {
	return &AppError{
		Type:       errType,
		Message:    msg,
		Cause:      cause,
		HTTPStatus: mapTypeToStatus(errType),
		Suggestion: mapTypeToSuggestion(errType),
	}
}

func NotFound(msg string) *AppError {
	return New(ErrNotFound, msg, nil)
}

func Forbidden(msg string) *AppError {
	return New(ErrForbidden, msg, nil)
}

func BadRequest(msg string, cause error) *AppError {
	return New(ErrBadRequest, msg, cause)
}

func TooManyRequests(msg string) *AppError {
	return New(ErrTooManyRequests, msg, nil)
}

func BadGateway(msg string, cause error) *AppError {
	return New(ErrBadGateway, msg, cause)
}

func Internal(msg string, cause error) *AppError {
	return New(ErrInternal, msg, cause)
}

func Wrap(err error) *AppError {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return New(ErrInternal, err.Error(), err)
}

// TypeOf returns the AppError type carried by err, or ErrInternal.
func TypeOf(err error) ErrorType {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type
	}
	return ErrInternal
}

func IsType(err error, t ErrorType) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Type == t
}

func mapTypeToStatus(t ErrorType) int {
	switch t {
	case ErrNotFound:
		return http.StatusNotFound
	case ErrForbidden, ErrReadOnly:
		return http.StatusForbidden
	case ErrBadRequest:
		return http.StatusBadRequest
	case ErrTooManyRequests:
		return http.StatusTooManyRequests
	case ErrBadGateway:
		return http.StatusBadGateway
	case ErrAuthFailed:
		return http.StatusUnauthorized
	case ErrConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func mapTypeToSuggestion(t ErrorType) string {
	switch t {
	case ErrTooManyRequests:
		return "Slow down and retry after the current minute window."
	case ErrBadGateway:
		return "The upstream provider failed; retry later."
	case ErrAuthFailed:
		return "Check the API key."
	case ErrReadOnly:
		return "The gateway is in read-only mode."
	default:
		return ""
	}
}
