// Package errors provides structured error types for the wgadmin control plane.
//
// This package provides:
//   - Sentinel errors for the failure kinds of the engine
//   - Error codes that the transport layer maps to responses
//   - CommandError, which carries the diagnostic output of an external tool
//   - Safe messages that don't leak internal details
package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Error codes for categorizing errors. Codes are HTTP status codes so the
// transport layer can use them as-is.
const (
	CodeInvalidInput = http.StatusBadRequest
	CodeUnauthorized = http.StatusUnauthorized
	CodeNotFound     = http.StatusNotFound
	CodeConflict     = http.StatusConflict
	CodeRateLimited  = http.StatusTooManyRequests
	CodeInternal     = http.StatusInternalServerError
	CodeCommand      = http.StatusBadGateway         // external tool exited non-zero
	CodeUnavailable  = http.StatusServiceUnavailable // external tool could not run
)

// Sentinel errors. Use errors.Is() to check for these conditions.
var (
	// ErrNotFound indicates a server or peer reference did not resolve.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates a resource with the same unique key exists.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates invalid input was provided.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidState indicates the operation is not valid in the current state.
	ErrInvalidState = errors.New("invalid state")

	// ErrExhausted indicates a server's subnet has no free host addresses.
	ErrExhausted = errors.New("address space exhausted")

	// ErrCommandFailed indicates an external tool ran but exited non-zero.
	ErrCommandFailed = errors.New("external command failed")

	// ErrCommandUnavailable indicates an external tool could not be started.
	ErrCommandUnavailable = errors.New("external command unavailable")

	// ErrPersistence indicates the model was changed in memory but could
	// not be written to durable storage.
	ErrPersistence = errors.New("persistence failed")

	// ErrUnauthorized indicates authentication is required.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrRateLimited indicates a rate limit was exceeded.
	ErrRateLimited = errors.New("rate limit exceeded")

	// ErrCircuitOpen indicates the circuit breaker for a tool is open.
	ErrCircuitOpen = errors.New("circuit breaker is open")

	// ErrInternal indicates an internal error.
	ErrInternal = errors.New("internal error")
)

// Error is a structured error with a code and safe message.
type Error struct {
	// Code is the error code for categorization
	Code int `json:"code"`
	// Message is a safe, user-facing error message
	Message string `json:"message"`
	// Err is the underlying error (not exposed to clients)
	Err error `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Err
}

// SafeMessage returns a client-safe error message without internal details.
func (e *Error) SafeMessage() string {
	return e.Message
}

// New creates a new structured error with the given code and message.
func New(code int, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with a code and safe message.
func Wrap(code int, message string, err error) *Error {
	if err != nil {
		log.WithField("code", code).WithError(err).Debug("wrapping error")
	}
	return &Error{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// FromSentinel creates a structured error from any error whose chain
// contains one of the sentinels above. The message is the full error text,
// which for command failures includes the tool's stderr.
func FromSentinel(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return &Error{
		Code:    CodeOf(err),
		Message: err.Error(),
		Err:     err,
	}
}

// CodeOf maps an error to its error code.
func CodeOf(err error) int {
	var e *Error
	switch {
	case errors.As(err, &e):
		return e.Code
	case errors.Is(err, ErrNotFound):
		return CodeNotFound
	case errors.Is(err, ErrInvalidInput):
		return CodeInvalidInput
	case errors.Is(err, ErrAlreadyExists),
		errors.Is(err, ErrInvalidState),
		errors.Is(err, ErrExhausted):
		return CodeConflict
	case errors.Is(err, ErrCommandFailed):
		return CodeCommand
	case errors.Is(err, ErrCommandUnavailable), errors.Is(err, ErrCircuitOpen):
		return CodeUnavailable
	case errors.Is(err, ErrUnauthorized):
		return CodeUnauthorized
	case errors.Is(err, ErrRateLimited):
		return CodeRateLimited
	default:
		return CodeInternal
	}
}

// CommandError reports an external tool that ran and exited non-zero.
// Error() returns the tool's standard error verbatim when it produced any.
type CommandError struct {
	// Command is the program name, e.g. "wg-quick".
	Command string
	// Args are the arguments the program was invoked with.
	Args []string
	// ExitCode is the process exit status, or -1 if unknown.
	ExitCode int
	// Stderr is the captured standard error.
	Stderr string
}

func (e *CommandError) Error() string {
	if s := strings.TrimSpace(e.Stderr); s != "" {
		return s
	}
	return fmt.Sprintf("%s %s: exit status %d", e.Command, strings.Join(e.Args, " "), e.ExitCode)
}

// Unwrap lets errors.Is(err, ErrCommandFailed) match.
func (e *CommandError) Unwrap() error {
	return ErrCommandFailed
}

// Unavailable wraps a process spawn failure for the named tool.
func Unavailable(command string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrCommandUnavailable, command, err)
}

// Persistence wraps a durable-storage failure.
func Persistence(err error) error {
	return fmt.Errorf("%w: %v", ErrPersistence, err)
}

// NotFound builds an ErrNotFound with the kind and reference of the missing object.
func NotFound(kind, ref string) error {
	return fmt.Errorf("%s %q: %w", kind, ref, ErrNotFound)
}

// Invalid builds an ErrInvalidInput with a detail message.
func Invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// IsNotFound returns true if the error indicates a resource was not found.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsCommandFailed returns true if an external tool exited non-zero.
func IsCommandFailed(err error) bool {
	return errors.Is(err, ErrCommandFailed)
}

// IsCommandUnavailable returns true if an external tool could not be started.
func IsCommandUnavailable(err error) bool {
	return errors.Is(err, ErrCommandUnavailable)
}

// IsPersistence returns true if the error is a durable-storage failure.
func IsPersistence(err error) bool {
	return errors.Is(err, ErrPersistence)
}

// IsInvalidInput returns true if the error indicates invalid input.
func IsInvalidInput(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

// IsInvalidState returns true if the error indicates an invalid state.
func IsInvalidState(err error) bool {
	return errors.Is(err, ErrInvalidState)
}

// Join combines multiple errors into a single error.
// Returns nil if all errors are nil.
func Join(errs ...error) error {
	return errors.Join(errs...)
}

// Is reports whether any error in err's tree matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's tree that matches target.
func As(err error, target any) bool {
	return errors.As(err, target)
}
