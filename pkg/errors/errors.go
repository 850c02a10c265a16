package errors

import (
	"errors"
	"fmt"
)

var (
	ErrMalformedDocument = errors.New("malformed document")
	ErrEmptyIndex        = errors.New("index is empty")
	ErrLabelMismatch     = errors.New("no relevance label for candidate")
	ErrEmptyQuery        = errors.New("query has no terms")
	ErrModelNotTrained   = errors.New("ranking model not trained")
	ErrInvalidInput      = errors.New("invalid input")
	ErrInternal          = errors.New("internal error")
	ErrTimeout           = errors.New("operation timed out")
)

// AppError attaches the failing operation and a human-readable reason to a
// sentinel so callers can still match it with errors.Is.
type AppError struct {
	Err     error
	Op      string
	Message string
}

func (e *AppError) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(sentinel error, op string, message string) *AppError {
	return &AppError{
		Err:     sentinel,
		Op:      op,
		Message: message,
	}
}

func Newf(sentinel error, op string, format string, args ...any) *AppError {
	return &AppError{
		Err:     sentinel,
		Op:      op,
		Message: fmt.Sprintf(format, args...),
	}
}

// IsFatal reports whether err must stop the current run. Malformed documents,
// label mismatches and empty queries are recorded and skipped instead.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	switch {
	case errors.Is(err, ErrMalformedDocument),
		errors.Is(err, ErrLabelMismatch),
		errors.Is(err, ErrEmptyQuery):
		return false
	default:
		return true
	}
}

func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, ErrInvalidInput):
		return 2
	case errors.Is(err, ErrEmptyIndex), errors.Is(err, ErrModelNotTrained):
		return 3
	case errors.Is(err, ErrTimeout):
		return 4
	default:
		return 1
	}
}
