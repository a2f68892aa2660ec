package render

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for the engine's failure classes
var (
	ErrValidation   = errors.New("invalid generation request")
	ErrQuotaDenied  = errors.New("generation quota exceeded")
	ErrAuthRequired = errors.New("authentication required")
	ErrRemote       = errors.New("render function failed")
)

// Error codes returned to clients
const (
	CodeInvalidRequest = "INVALID_REQUEST"
	CodeQuotaExceeded  = "QUOTA_EXCEEDED"
	CodeAuthRequired   = "AUTH_REQUIRED"
	CodeRenderFailed   = "RENDER_FAILED"
	CodeInternal       = "INTERNAL_ERROR"
)

// ValidationError - request rejected before any remote call
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// NewValidationError builds a ValidationError for a field.
func NewValidationError(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// RemoteError - failure reported by the generation or inspection backend
type RemoteError struct {
	Operation  string
	StatusCode int
	Message    string
}

func (e *RemoteError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s failed (status %d): %s", e.Operation, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s failed: %s", e.Operation, e.Message)
}

// Unwrap maps 401/403 onto ErrAuthRequired, everything else onto ErrRemote.
func (e *RemoteError) Unwrap() error {
	if e.StatusCode == 401 || e.StatusCode == 403 {
		return ErrAuthRequired
	}
	return ErrRemote
}

// IsAuthError reports whether the error means the caller must sign in again.
// Backends without status codes only surface the message, so the text is checked too.
func IsAuthError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrAuthRequired) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "authentication required") ||
		strings.Contains(msg, "not authenticated") ||
		strings.Contains(msg, "jwt expired") ||
		strings.Contains(msg, "unauthorized")
}

// Classify maps an error onto a client facing code.
func Classify(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return CodeInvalidRequest
	case errors.Is(err, ErrQuotaDenied):
		return CodeQuotaExceeded
	case IsAuthError(err):
		return CodeAuthRequired
	case errors.Is(err, ErrRemote):
		return CodeRenderFailed
	default:
		return CodeInternal
	}
}
