package common

import (
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Sentinels shared by the store, the orders service and the service surface.
// Wrap them with %w; the gRPC layer maps them to status codes.
var (
	ErrNotFound     = errors.New("resource not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrDatabase     = errors.New("database error")
	ErrValidation   = errors.New("validation failed")
	ErrConflict     = errors.New("conflicting state")
)

// CodeConfig marks problems found while loading or validating configuration.
const CodeConfig = "CONFIG_ERROR"

// AppError carries a stable code for failures reported before any request
// runs, e.g. a bad setting at startup.
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

// configError is a CodeConfig AppError that matches ErrInvalidInput.
func configError(format string, args ...any) *AppError {
	return &AppError{Code: CodeConfig, Message: fmt.Sprintf(format, args...), Cause: ErrInvalidInput}
}

// gRPC status helpers for the orders service.

func InvalidArgumentError(message string) error {
	return status.Error(codes.InvalidArgument, message)
}

func InvalidArgumentErrorf(format string, args ...any) error {
	return status.Errorf(codes.InvalidArgument, format, args...)
}

func NotFoundError(message string) error {
	return status.Error(codes.NotFound, message)
}

func FailedPreconditionError(message string) error {
	return status.Error(codes.FailedPrecondition, message)
}

// UnavailableError is for a backend that failed or answered with nothing;
// the same request may succeed later.
func UnavailableError(message string) error {
	return status.Error(codes.Unavailable, message)
}

func InternalErrorf(format string, args ...any) error {
	return status.Errorf(codes.Internal, format, args...)
}
