// Package peelerrors provides the error classes surfaced to users of the evaluator.
package peelerrors

import "errors"

// ErrValidation is the sentinel for invalid user input.
// Use with errors.Is; details are available through errors.As.
var ErrValidation = &ValidationError{}

// ValidationError reports input that was rejected before any external call.
type ValidationError struct {
	Field   string
	Message string
}

// NewValidationError creates a ValidationError for the given field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

func (e *ValidationError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Field != "" {
		return "invalid value for " + e.Field
	}
	return "validation error"
}

// Is matches any *ValidationError.
func (e *ValidationError) Is(target error) bool {
	_, ok := target.(*ValidationError)
	return ok
}

// ErrConfig is the sentinel for missing or unusable configuration.
var ErrConfig = &ConfigError{}

// ConfigError reports that an operation could not run because the service is not
// configured for it (missing credential, unusable embedding backend).
type ConfigError struct {
	Message string
	Err     error
}

// NewConfigError creates a ConfigError wrapping an optional cause.
func NewConfigError(message string, err error) *ConfigError {
	return &ConfigError{Message: message, Err: err}
}

func (e *ConfigError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = "configuration error"
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *ConfigError) Unwrap() error { return e.Err }

// Is matches any *ConfigError.
func (e *ConfigError) Is(target error) bool {
	_, ok := target.(*ConfigError)
	return ok
}

// ErrUpstream is the sentinel for failures of an external API.
var ErrUpstream = &UpstreamError{}

// UpstreamError reports a failed call to an external service. The cause is kept for
// logs; users only see the generic message.
type UpstreamError struct {
	Service string
	Err     error
}

// NewUpstreamError creates an UpstreamError for the named service.
func NewUpstreamError(service string, err error) *UpstreamError {
	return &UpstreamError{Service: service, Err: err}
}

func (e *UpstreamError) Error() string {
	msg := "external service failed"
	if e.Service != "" {
		msg = e.Service + " request failed"
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// Is matches any *UpstreamError.
func (e *UpstreamError) Is(target error) bool {
	_, ok := target.(*UpstreamError)
	return ok
}

// UserMessage returns the text that may be shown to an end user for err.
// Upstream causes are replaced by a generic message.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		return validationErr.Error()
	}

	var configErr *ConfigError
	if errors.As(err, &configErr) {
		if configErr.Message != "" {
			return configErr.Message
		}
		return configErr.Error()
	}

	if errors.Is(err, ErrUpstream) {
		return "The evaluation service is currently unavailable. Please try again later."
	}

	return "Something went wrong while evaluating the answer."
}
