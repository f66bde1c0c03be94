package errors

import (
	"errors"
	"net/http"
	"reflect"

	"github.com/sirupsen/logrus"
)

// Machine readable codes carried by AppError.
const (
	CodeBadRequest             = "BAD_REQUEST"
	CodeUnauthorized           = "UNAUTHORIZED"
	CodeForbidden              = "FORBIDDEN"
	CodeNotFound               = "NOT_FOUND"
	CodeConflict               = "CONFLICT"
	CodeTooManyRequests        = "TOO_MANY_REQUESTS"
	CodeInternal               = "INTERNAL_ERROR"
	CodeConcurrentModification = "CONCURRENT_MODIFICATION"
)

type AppError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *AppError) Error() string {
	return e.Message
}

// Is matches on status and code so that package level sentinels work with errors.Is.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.StatusCode == t.StatusCode && e.Code == t.Code
}

// WithCode replaces the generic code derived from the status.
func (e *AppError) WithCode(code string) *AppError {
	e.Code = code
	return e
}

func NewAppError(statusCode int, message string) *AppError {
	return &AppError{
		StatusCode: statusCode,
		Code:       codeForStatus(statusCode),
		Message:    message,
	}
}

func NewBadRequestError(message string) *AppError {
	return NewAppError(http.StatusBadRequest, message)
}

func NewUnauthorizedError(message ...string) *AppError {
	if len(message) > 0 {
		return NewAppError(http.StatusUnauthorized, message[0])
	}
	return NewAppError(http.StatusUnauthorized, "Unauthorized")
}

func NewForbiddenError(message string) *AppError {
	return NewAppError(http.StatusForbidden, message)
}

func NewNotFoundError(message string) *AppError {
	return NewAppError(http.StatusNotFound, message)
}

// NewConflictError reports a state conflict. The caller decides whether to
// retry or surface the answer; the engine never retries these.
func NewConflictError(code, message string) *AppError {
	return &AppError{
		StatusCode: http.StatusConflict,
		Code:       code,
		Message:    message,
	}
}

func NewTooManyRequestsError(message string) *AppError {
	return NewAppError(http.StatusTooManyRequests, message)
}

func NewInternalServerError(originalError error, message string) *AppError {
	if originalError != nil {
		logrus.Errorf("[%s] %s", reflect.TypeOf(originalError).String(), originalError)
	} else {
		logrus.Error(message)
	}
	return NewAppError(http.StatusInternalServerError, message)
}

// ErrConcurrentModification is returned once the bounded optimistic retry is exhausted.
var ErrConcurrentModification = NewConflictError(CodeConcurrentModification, "Record was modified concurrently, please retry")

func IsNotFound(err error) bool {
	return hasStatus(err, http.StatusNotFound)
}

func IsConflict(err error) bool {
	return hasStatus(err, http.StatusConflict)
}

// HasCode reports whether err is an AppError carrying code.
func HasCode(err error, code string) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

func hasStatus(err error, status int) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode == status
	}
	return false
}

func codeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return CodeBadRequest
	case http.StatusUnauthorized:
		return CodeUnauthorized
	case http.StatusForbidden:
		return CodeForbidden
	case http.StatusNotFound:
		return CodeNotFound
	case http.StatusConflict:
		return CodeConflict
	case http.StatusTooManyRequests:
		return CodeTooManyRequests
	default:
		return CodeInternal
	}
}
