package core

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks malformed or missing required request fields.
	ErrValidation = errors.New("validation error")

	// ErrNotConfigured is returned when no engine identity is active.
	ErrNotConfigured = errors.New("wingman not configured")

	// ErrBusy is returned when a running generation did not become idle within
	// the abort grace period. Callers should retry.
	ErrBusy = errors.New("generation still shutting down")

	// ErrNotFound is returned for unknown routes or resources.
	ErrNotFound = errors.New("not found")

	// ErrEngineFailure wraps failures raised by a model provider while streaming.
	ErrEngineFailure = errors.New("inference request failed")

	// ErrAborted is reported by runs that were aborted before completion.
	ErrAborted = errors.New("generation aborted")
)

// Client-facing messages for the conditions above.
const (
	NotConfiguredMessage = "Wingman not configured. Open the settings panel."
	BusyMessage          = "Another request is still shutting down."
	NotFoundMessage      = "Not found"
)

// NoCredential is the credential sentinel handed to providers when no API key
// is configured.
const NoCredential = "none"

// ValidationError describes a single invalid request field.
type ValidationError struct {
	Field   string `json:"field"`   // Field that failed validation
	Message string `json:"message"` // Human-readable error message
}

// NewValidationError builds a ValidationError for field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// Error implements the error interface. The message is returned verbatim so it
// can be surfaced to clients unchanged.
func (e *ValidationError) Error() string { return e.Message }

// Unwrap allows errors.Is(err, ErrValidation).
func (e *ValidationError) Unwrap() error { return ErrValidation }

// ConfigurationError reports an engine identity that cannot be resolved, such
// as an unknown provider/model pair.
type ConfigurationError struct {
	Provider string
	ModelID  string
	Reason   string
}

// Error implements the error interface.
func (e *ConfigurationError) Error() string {
	if e.ModelID == "" {
		return fmt.Sprintf("provider %q: %s", e.Provider, e.Reason)
	}
	return fmt.Sprintf("model %q (provider %q): %s", e.ModelID, e.Provider, e.Reason)
}

// EngineError wraps a provider failure so both ErrEngineFailure and the
// provider's own error remain matchable.
type EngineError struct {
	Err error
}

// NewEngineError wraps err as an engine failure. A nil err yields nil.
func NewEngineError(err error) error {
	if err == nil {
		return nil
	}
	return &EngineError{Err: err}
}

// Error returns the provider message, which is what clients get to see.
func (e *EngineError) Error() string { return e.Err.Error() }

// Unwrap exposes both the sentinel and the cause.
func (e *EngineError) Unwrap() []error { return []error{ErrEngineFailure, e.Err} }
