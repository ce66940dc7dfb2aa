package common

import (
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// AppError represents application-specific errors
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Common application errors
var (
	ErrNotFound      = errors.New("resource not found")
	ErrInvalidInput  = errors.New("invalid input")
	ErrInternal      = errors.New("internal error")
	ErrDatabase      = errors.New("database error")
	ErrValidation    = errors.New("validation failed")
	ErrUnprocessable = errors.New("document unprocessable")
	ErrEmbedding     = errors.New("embedding failed")
	ErrModel         = errors.New("model call failed")
)

// Error constructors
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Status maps an error onto a gRPC status so callers (the CLI, future RPC surfaces)
// share one classification of failures.
func Status(err error) *status.Status {
	if err == nil {
		return status.New(codes.OK, "")
	}
	if s, ok := status.FromError(err); ok {
		return s
	}
	switch {
	case errors.Is(err, ErrNotFound):
		return status.New(codes.NotFound, err.Error())
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrValidation):
		return status.New(codes.InvalidArgument, err.Error())
	case errors.Is(err, ErrUnprocessable):
		return status.New(codes.FailedPrecondition, err.Error())
	case errors.Is(err, ErrEmbedding), errors.Is(err, ErrModel):
		return status.New(codes.Unavailable, err.Error())
	default:
		return status.New(codes.Internal, err.Error())
	}
}

// ExitCode turns an error into a process exit code derived from its status code.
func ExitCode(err error) int {
	switch Status(err).Code() {
	case codes.OK:
		return 0
	case codes.InvalidArgument:
		return 2
	case codes.NotFound:
		return 3
	case codes.FailedPrecondition:
		return 4
	case codes.Unavailable:
		return 5
	default:
		return 1
	}
}

func InvalidArgumentError(message string) error {
	return status.Error(codes.InvalidArgument, message)
}

func NotFoundError(message string) error {
	return status.Error(codes.NotFound, message)
}

func InvalidArgumentErrorf(format string, args ...interface{}) error {
	return InvalidArgumentError(fmt.Sprintf(format, args...))
}
