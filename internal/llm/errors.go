package llm

import (
	"errors"
	"fmt"
)

// ErrNoProvider indicates no language model backend is configured.
var ErrNoProvider = errors.New("no llm provider configured")

// ProviderError is a structured error from a language model backend. It
// keeps the provider and model for diagnostics and the HTTP status when
// one applies.
type ProviderError struct {
	Provider string
	Model    string
	Status   int
	Err      error
}

// NewProviderError wraps err with provider context.
func NewProviderError(provider, model string, err error) *ProviderError {
	return &ProviderError{Provider: provider, Model: model, Err: err}
}

// WithStatus attaches the HTTP status code.
func (e *ProviderError) WithStatus(status int) *ProviderError {
	e.Status = status
	return e
}

func (e *ProviderError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s (%s) status %d: %v", e.Provider, e.Model, e.Status, e.Err)
	}
	return fmt.Sprintf("%s (%s): %v", e.Provider, e.Model, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}
