// Package errors defines the sentinel errors shared by the services and
// maps them to HTTP statuses and stable machine-readable codes.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrInvalidQuery        = errors.New("invalid query")
	ErrDatabaseUnavailable = errors.New("database unavailable")
	ErrCorruptDatabase     = errors.New("corrupt database")
	ErrInvalidInput        = errors.New("invalid input")
	ErrRateLimited         = errors.New("rate limit exceeded")
	ErrNotFound            = errors.New("not found")
	ErrInternal            = errors.New("internal error")
	ErrTimeout             = errors.New("operation timed out")
)

// kinds is checked in order; the first sentinel err wraps decides.
var kinds = []struct {
	sentinel error
	status   int
	code     string
}{
	{ErrNotFound, http.StatusNotFound, "not_found"},
	{ErrInvalidQuery, http.StatusBadRequest, "invalid_query"},
	{ErrInvalidInput, http.StatusBadRequest, "invalid_input"},
	{ErrRateLimited, http.StatusTooManyRequests, "rate_limited"},
	{ErrCorruptDatabase, http.StatusServiceUnavailable, "corrupt_database"},
	{ErrDatabaseUnavailable, http.StatusServiceUnavailable, "database_unavailable"},
	{ErrTimeout, http.StatusGatewayTimeout, "timeout"},
}

// AppError is an error with the status and message to show a client.
type AppError struct {
	Err        error
	Message    string
	StatusCode int
}

func (e *AppError) Error() string {
	return e.Err.Error() + ": " + e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(sentinel error, statusCode int, message string) *AppError {
	return &AppError{Err: sentinel, Message: message, StatusCode: statusCode}
}

func Newf(sentinel error, statusCode int, format string, args ...any) *AppError {
	return New(sentinel, statusCode, fmt.Sprintf(format, args...))
}

// HTTPStatusCode is the status for err: the AppError's own status if err is
// one, else the status of the sentinel it wraps, else 500.
func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}
	for _, k := range kinds {
		if errors.Is(err, k.sentinel) {
			return k.status
		}
	}
	return http.StatusInternalServerError
}

// Code is a stable identifier for the kind of err, for JSON error bodies.
func Code(err error) string {
	for _, k := range kinds {
		if errors.Is(err, k.sentinel) {
			return k.code
		}
	}
	return "internal"
}
