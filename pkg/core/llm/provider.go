package llm

import (
	"context"
	"errors"
	"fmt"
)

// Provider is the interface for all LLM providers.
type Provider interface {
	// Name identifies the provider in logs and in the config endpoints.
	Name() string
	// Complete sends one system/user prompt pair and returns the model's text.
	Complete(ctx context.Context, req Request) (string, error)
}

// Request is a single completion call.
type Request struct {
	SystemPrompt string
	UserPrompt   string
	MaxTokens    int
	Temperature  float64
}

// ErrMissingAPIKey is returned when a provider is called without credentials.
var ErrMissingAPIKey = errors.New("llm: api key not configured")

// ErrMissingContent is returned when the model replies without any text.
var ErrMissingContent = errors.New("llm: response has no content")

// ServiceError describes a failed call to a model service: transport failure,
// a non-2xx status, an undecodable body or an empty reply.
type ServiceError struct {
	Provider   string
	StatusCode int
	Message    string
	Err        error
}

func (e *ServiceError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: status %d: %s", e.Provider, e.StatusCode, msg)
	}
	return fmt.Sprintf("%s: %s", e.Provider, msg)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// IsServiceError reports whether err came from a model service.
func IsServiceError(err error) bool {
	var se *ServiceError
	return errors.As(err, &se)
}

func serviceErr(provider string, status int, msg string, err error) *ServiceError {
	return &ServiceError{Provider: provider, StatusCode: status, Message: msg, Err: err}
}

func defaultInt(v, fallback int) int {
	if v <= 0 {
		return fallback
	}
	return v
}
