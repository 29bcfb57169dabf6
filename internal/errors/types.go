package errors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrorType represents different categories of errors.
type ErrorType string

const (
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeArchive    ErrorType = "archive"
	ErrorTypePath       ErrorType = "path"
	ErrorTypePayload    ErrorType = "payload"
	ErrorTypeStream     ErrorType = "stream"
	ErrorTypeCanceled   ErrorType = "canceled"
	ErrorTypeConfig     ErrorType = "config"
	ErrorTypeInternal   ErrorType = "internal"
)

// Common error codes.
const (
	ErrCodeUnknownTemplate    = "UNKNOWN_TEMPLATE"
	ErrCodeEmptyProject       = "EMPTY_PROJECT"
	ErrCodeInvalidProjectName = "INVALID_PROJECT_NAME"
	ErrCodeInvalidSnippets    = "INVALID_SNIPPETS"
	ErrCodeInvalidRequest     = "INVALID_REQUEST"
	ErrCodeCorruptArchive     = "CORRUPT_ARCHIVE"
	ErrCodePathRejected       = "PATH_REJECTED"
	ErrCodePayloadTooLarge    = "PAYLOAD_TOO_LARGE"
	ErrCodeStreamFailure      = "STREAM_FAILURE"
	ErrCodeRequestCanceled    = "REQUEST_CANCELED"
	ErrCodeConfigInvalid      = "CONFIG_INVALID"
	ErrCodeInternal           = "INTERNAL"
)

// Sentinels for errors.Is; comparison is by Type and Code only.
var (
	ErrUnknownTemplate    = &AssemblyError{Type: ErrorTypeValidation, Code: ErrCodeUnknownTemplate}
	ErrEmptyProject       = &AssemblyError{Type: ErrorTypeValidation, Code: ErrCodeEmptyProject}
	ErrInvalidProjectName = &AssemblyError{Type: ErrorTypeValidation, Code: ErrCodeInvalidProjectName}
	ErrInvalidSnippets    = &AssemblyError{Type: ErrorTypeValidation, Code: ErrCodeInvalidSnippets}
	ErrInvalidRequest     = &AssemblyError{Type: ErrorTypeValidation, Code: ErrCodeInvalidRequest}
	ErrCorruptArchive     = &AssemblyError{Type: ErrorTypeArchive, Code: ErrCodeCorruptArchive}
	ErrPathRejected       = &AssemblyError{Type: ErrorTypePath, Code: ErrCodePathRejected}
	ErrPayloadTooLarge    = &AssemblyError{Type: ErrorTypePayload, Code: ErrCodePayloadTooLarge}
	ErrStreamFailure      = &AssemblyError{Type: ErrorTypeStream, Code: ErrCodeStreamFailure}
	ErrRequestCanceled    = &AssemblyError{Type: ErrorTypeCanceled, Code: ErrCodeRequestCanceled}
)

// StatusClientClosedRequest is the non-standard status recorded when the
// caller went away before a response could be produced.
const StatusClientClosedRequest = 499

// AssemblyError is a structured error type with context.
type AssemblyError struct {
	Type    ErrorType
	Code    string
	Message string
	Cause   error
	Context map[string]interface{}
	Path    string
}

// Error implements the error interface.
func (e *AssemblyError) Error() string {
	var parts []string

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("[%s]", e.Code))
	}

	if e.Path != "" {
		parts = append(parts, e.Path)
	}

	if e.Message != "" {
		parts = append(parts, e.Message)
	}

	result := strings.Join(parts, " ")

	if e.Cause != nil {
		result += fmt.Sprintf(": %v", e.Cause)
	}

	return result
}

// Unwrap returns the underlying cause error.
func (e *AssemblyError) Unwrap() error {
	return e.Cause
}

// Is implements error comparison.
func (e *AssemblyError) Is(target error) bool {
	var t *AssemblyError
	if errors.As(target, &t) {
		return e.Type == t.Type && e.Code == t.Code
	}

	return false
}

// WithContext adds context information to the error.
func (e *AssemblyError) WithContext(key string, value interface{}) *AssemblyError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value

	return e
}

// WithPath records the entry path the error refers to.
func (e *AssemblyError) WithPath(path string) *AssemblyError {
	e.Path = path

	return e
}

// UserMessage is the human-readable text sent back to the caller.
// Internal and stream failures do not leak their cause.
func (e *AssemblyError) UserMessage() string {
	switch e.Type {
	case ErrorTypeInternal, ErrorTypeStream:
		return "internal error while generating the archive"
	}
	if e.Message != "" {
		return e.Message
	}
	return e.Error()
}

// Error creation functions

// NewValidationError creates a validation error.
func NewValidationError(code, message string) *AssemblyError {
	return &AssemblyError{
		Type:    ErrorTypeValidation,
		Code:    code,
		Message: message,
	}
}

// NewArchiveError creates an error for a corrupt or unreadable upload.
func NewArchiveError(message string, cause error) *AssemblyError {
	return &AssemblyError{
		Type:    ErrorTypeArchive,
		Code:    ErrCodeCorruptArchive,
		Message: message,
		Cause:   cause,
	}
}

// NewPathError creates a PathRejected error for a single entry.
func NewPathError(path, reason string) *AssemblyError {
	return &AssemblyError{
		Type:    ErrorTypePath,
		Code:    ErrCodePathRejected,
		Message: reason,
		Path:    path,
	}
}

// NewPathConflictError reports an entry dropped because winner needs its
// path as a file or as a directory.
func NewPathConflictError(path, winner string) *AssemblyError {
	return NewPathError(path, fmt.Sprintf("conflicts with %q: a path cannot be both a file and a directory", winner)).
		WithContext("winner", winner)
}

// NewPayloadTooLargeError reports a breached size ceiling.
func NewPayloadTooLargeError(message string, limit int64) *AssemblyError {
	return (&AssemblyError{
		Type:    ErrorTypePayload,
		Code:    ErrCodePayloadTooLarge,
		Message: message,
	}).WithContext("limit", limit)
}

// NewStreamError wraps an I/O failure while writing the output archive.
func NewStreamError(message string, cause error) *AssemblyError {
	return &AssemblyError{
		Type:    ErrorTypeStream,
		Code:    ErrCodeStreamFailure,
		Message: message,
		Cause:   cause,
	}
}

// NewCanceledError wraps a context cancellation or deadline. It is not a
// server fault.
func NewCanceledError(cause error) *AssemblyError {
	return &AssemblyError{
		Type:    ErrorTypeCanceled,
		Code:    ErrCodeRequestCanceled,
		Message: "request canceled",
		Cause:   cause,
	}
}

// NewConfigError creates a configuration error.
func NewConfigError(message string) *AssemblyError {
	return &AssemblyError{
		Type:    ErrorTypeConfig,
		Code:    ErrCodeConfigInvalid,
		Message: message,
	}
}

// NewInternalError creates an internal error.
func NewInternalError(message string, cause error) *AssemblyError {
	return &AssemblyError{
		Type:    ErrorTypeInternal,
		Code:    ErrCodeInternal,
		Message: message,
		Cause:   cause,
	}
}

// Error classification helpers

func typeOf(err error) (ErrorType, bool) {
	var ae *AssemblyError
	if errors.As(err, &ae) {
		return ae.Type, true
	}
	return "", false
}

// IsValidationError checks if an error is a user input error.
func IsValidationError(err error) bool {
	t, ok := typeOf(err)
	return ok && t == ErrorTypeValidation
}

// IsPathRejected checks if an error is a per-entry path rejection.
func IsPathRejected(err error) bool {
	t, ok := typeOf(err)
	return ok && t == ErrorTypePath
}

// IsArchiveError checks if an error is a corrupt upload.
func IsArchiveError(err error) bool {
	t, ok := typeOf(err)
	return ok && t == ErrorTypeArchive
}

// IsPayloadTooLarge checks if an error is a size ceiling breach.
func IsPayloadTooLarge(err error) bool {
	t, ok := typeOf(err)
	return ok && t == ErrorTypePayload
}

// IsStreamFailure checks if an error happened while streaming output.
func IsStreamFailure(err error) bool {
	t, ok := typeOf(err)
	return ok && t == ErrorTypeStream
}

// IsCanceled reports whether err comes from the caller cancelling the
// request or its deadline passing, typed or raw.
func IsCanceled(err error) bool {
	if err == nil {
		return false
	}
	if t, ok := typeOf(err); ok && t == ErrorTypeCanceled {
		return true
	}
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// HTTPStatus maps an error onto the response status code.
func HTTPStatus(err error) int {
	if IsCanceled(err) {
		return StatusClientClosedRequest
	}
	t, ok := typeOf(err)
	if !ok {
		return http.StatusInternalServerError
	}
	switch t {
	case ErrorTypeValidation, ErrorTypePath, ErrorTypeArchive:
		return http.StatusBadRequest
	case ErrorTypePayload:
		return http.StatusRequestEntityTooLarge
	default:
		return http.StatusInternalServerError
	}
}

// UserMessage extracts the caller-facing message from any error.
func UserMessage(err error) string {
	var ae *AssemblyError
	if errors.As(err, &ae) {
		return ae.UserMessage()
	}
	return "internal error while generating the archive"
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool { return errors.Is(err, target) }

// As finds the first error in err's chain that matches target.
func As(err error, target any) bool { return errors.As(err, target) }
