package llmprovider

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure modes.
// These can be checked with errors.Is().
var (
	// ErrInvalidModel indicates the requested model is not supported by the provider.
	ErrInvalidModel = errors.New("llmprovider: invalid or unsupported model")

	// ErrInvalidAPIKey indicates the API key is missing, malformed, or unauthorized.
	ErrInvalidAPIKey = errors.New("llmprovider: invalid API key")

	// ErrRateLimited indicates the provider's rate limit has been exceeded.
	ErrRateLimited = errors.New("llmprovider: rate limit exceeded")

	// ErrUnsupportedFeature indicates the requested feature is not available.
	ErrUnsupportedFeature = errors.New("llmprovider: unsupported feature")

	// ErrInvalidRequest indicates the request parameters are invalid.
	ErrInvalidRequest = errors.New("llmprovider: invalid request")

	// ErrProviderUnavailable indicates the provider service is down or unreachable.
	ErrProviderUnavailable = errors.New("llmprovider: provider unavailable")

	// ErrMalformedArguments indicates tool-call arguments are not valid JSON.
	ErrMalformedArguments = errors.New("llmprovider: malformed tool call arguments")

	// ErrUnsupportedContent indicates a content part cannot be encoded.
	ErrUnsupportedContent = errors.New("llmprovider: unsupported content")

	// ErrStreamDesync indicates a streamed event does not fit the current stream state.
	ErrStreamDesync = errors.New("llmprovider: stream desynchronized")

	// ErrProfileNotFound indicates a named credential profile does not exist.
	ErrProfileNotFound = errors.New("llmprovider: credential profile not found")
)

// ModelError represents an error related to model validation or availability.
type ModelError struct {
	Model    string // The model that was requested
	Provider string // The provider name
	Reason   string // Human-readable explanation
	Err      error  // Wrapped error (usually ErrInvalidModel or ErrUnsupportedFeature)
}

func (e *ModelError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("model '%s' for provider '%s': %s (%v)", e.Model, e.Provider, e.Reason, e.Err)
	}
	return fmt.Sprintf("model '%s' for provider '%s': %s", e.Model, e.Provider, e.Reason)
}

func (e *ModelError) Unwrap() error {
	return e.Err
}

// ValidationError represents an error in request parameter validation.
type ValidationError struct {
	Field  string // The parameter field that failed validation
	Value  any    // The invalid value
	Reason string // Human-readable explanation
	Err    error  // Wrapped error (usually ErrInvalidRequest)
}

func (e *ValidationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("validation failed for '%s' (value: %v): %s (%v)", e.Field, e.Value, e.Reason, e.Err)
	}
	return fmt.Sprintf("validation failed for '%s' (value: %v): %s", e.Field, e.Value, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// EncodingError is returned when an abstract message cannot be converted to
// the provider's request schema. It is never retried.
type EncodingError struct {
	MessageIndex int    // Index in the caller's message slice, -1 if unknown
	ToolCallID   string // Offending tool call, if any
	Reason       string // Human-readable explanation
	Err          error  // Wrapped cause (ErrMalformedArguments, ErrUnsupportedContent, json errors)
}

func (e *EncodingError) Error() string {
	if e.ToolCallID != "" {
		return fmt.Sprintf("encode message %d (tool call %s): %s: %v", e.MessageIndex, e.ToolCallID, e.Reason, e.Err)
	}
	return fmt.Sprintf("encode message %d: %s: %v", e.MessageIndex, e.Reason, e.Err)
}

func (e *EncodingError) Unwrap() error {
	return e.Err
}

// ProtocolError is returned when the response stream violates the event
// protocol. It is fatal for the stream it occurred on.
type ProtocolError struct {
	Event  string // Wire event type, e.g. "content_block_delta"
	Reason string // Human-readable explanation
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("protocol error on %s: %s", e.Event, e.Reason)
}

func (e *ProtocolError) Unwrap() error {
	return ErrStreamDesync
}

// TransportError wraps any failure raised by the underlying network client,
// including aborts caused by cancellation.
type TransportError struct {
	Mode       string // Transport mode that issued the request ("direct", "bedrock")
	Message    string // Original error text
	StatusCode int    // HTTP status code, 0 if the request never got a response
	Err        error  // Original error
}

func (e *TransportError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s transport error (status %d): %s", e.Mode, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s transport error: %s", e.Mode, e.Message)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// CredentialResolutionError is returned when credentials cannot be resolved.
// A missing named profile falls back to the default profile, so DefaultErr is
// set only when that fallback also failed.
type CredentialResolutionError struct {
	Profile    string // Named profile that was tried first ("" for the default)
	NamedErr   error  // Failure for the named profile
	DefaultErr error  // Failure for the default profile, nil if not attempted
}

func (e *CredentialResolutionError) Error() string {
	if e.DefaultErr == nil {
		return fmt.Sprintf("resolve credentials: profile %q: %v", e.Profile, e.NamedErr)
	}
	return fmt.Sprintf("resolve credentials: profile %q: %v; default profile: %v", e.Profile, e.NamedErr, e.DefaultErr)
}

func (e *CredentialResolutionError) Unwrap() []error {
	errs := make([]error, 0, 2)
	for _, err := range []error{e.NamedErr, e.DefaultErr} {
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

// ProviderError represents an error from the underlying provider API.
type ProviderError struct {
	Provider   string // The provider name
	StatusCode int    // HTTP status code (if applicable)
	Message    string // Error message from provider
	Retryable  bool   // Whether this error is potentially retryable
	Err        error  // Wrapped sentinel error (ErrRateLimited, ErrProviderUnavailable, etc.)
}

func (e *ProviderError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("provider '%s' error (status %d): %s", e.Provider, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("provider '%s' error: %s", e.Provider, e.Message)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// IsRetryable checks if an error is potentially retryable.
// This layer never retries; callers use this to decide.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var providerErr *ProviderError
	if errors.As(err, &providerErr) {
		return providerErr.Retryable
	}

	var transportErr *TransportError
	if errors.As(err, &transportErr) && transportErr.StatusCode > 0 {
		switch {
		case transportErr.StatusCode == 408, transportErr.StatusCode == 429:
			return true
		case transportErr.StatusCode >= 500:
			return true
		}
		return false
	}

	if errors.Is(err, ErrRateLimited) {
		return true
	}

	if errors.Is(err, ErrProviderUnavailable) {
		return true
	}

	return false
}

// IsInvalidRequest checks if an error indicates invalid request parameters.
// These errors are not retryable and require request changes.
func IsInvalidRequest(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, ErrInvalidRequest) {
		return true
	}

	if errors.Is(err, ErrInvalidModel) {
		return true
	}

	if errors.Is(err, ErrUnsupportedFeature) {
		return true
	}

	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		return true
	}

	var encodingErr *EncodingError
	return errors.As(err, &encodingErr)
}

// IsAuthError checks if an error is related to authentication.
func IsAuthError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, ErrInvalidAPIKey) {
		return true
	}

	var credErr *CredentialResolutionError
	if errors.As(err, &credErr) {
		return true
	}

	var providerErr *ProviderError
	if errors.As(err, &providerErr) {
		return providerErr.StatusCode == 401 || providerErr.StatusCode == 403
	}

	var transportErr *TransportError
	if errors.As(err, &transportErr) {
		return transportErr.StatusCode == 401 || transportErr.StatusCode == 403
	}

	return false
}
