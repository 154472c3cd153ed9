package common

import (
	"errors"
	"fmt"
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

// Pipeline error taxonomy. Every per-document error wraps one of these.
var (
	ErrDecode            = errors.New("decode error")
	ErrUnsupportedType   = errors.New("unsupported type")
	ErrDuplicateContent  = errors.New("duplicate content")
	ErrToolTimeout       = errors.New("external tool timeout")
	ErrToolNoOutput      = errors.New("external tool produced no output")
	ErrEmptyExtraction   = errors.New("empty extraction")
	ErrMalformedArtifact = errors.New("malformed artifact")
	ErrTransport         = errors.New("index transport error")
)

// Common application errors
var (
	ErrNotFound     = errors.New("resource not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrInternal     = errors.New("internal error")
	ErrDatabase     = errors.New("database error")
	ErrValidation   = errors.New("validation failed")
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

// DecodeError tags err as a content decode failure for path.
func DecodeError(path string, err error) error {
	return NewAppError("DECODE_ERROR", path, errors.Join(ErrDecode, err))
}

// Reason returns a short, stable label for the taxonomy member err wraps.
func Reason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrDecode):
		return "decode_error"
	case errors.Is(err, ErrUnsupportedType):
		return "unsupported_type"
	case errors.Is(err, ErrDuplicateContent):
		return "duplicate_content"
	case errors.Is(err, ErrToolTimeout):
		return "tool_timeout"
	case errors.Is(err, ErrToolNoOutput):
		return "tool_no_output"
	case errors.Is(err, ErrEmptyExtraction):
		return "empty_extraction"
	case errors.Is(err, ErrMalformedArtifact):
		return "malformed_artifact"
	case errors.Is(err, ErrTransport):
		return "transport_error"
	}
	return "internal_error"
}
