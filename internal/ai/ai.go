// Package ai provides a unified interface for AI review providers.
// It abstracts away the differences between Anthropic, mock, and any
// future backends behind a registry keyed by provider id.
package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
)

// FailureType classifies an AI-call failure and governs retry policy.
type FailureType string

const (
	FailureRateLimit      FailureType = "RATE_LIMIT"
	FailureNetwork        FailureType = "NETWORK_ERROR"
	FailureTimeout        FailureType = "TIMEOUT"
	FailureValidation     FailureType = "VALIDATION_ERROR"
	FailureAuthentication FailureType = "AUTHENTICATION_ERROR"
	FailureUnknown        FailureType = "UNKNOWN"
)

// IsRetryable reports whether a failure of the given type is worth
// retrying. Rate limits, network errors, timeouts and unclassified
// failures are transient; validation and authentication failures are
// the caller's bug and retrying cannot fix them.
func IsRetryable(ft FailureType) bool {
	switch ft {
	case FailureRateLimit, FailureNetwork, FailureTimeout, FailureUnknown:
		return true
	case FailureValidation, FailureAuthentication:
		return false
	default:
		return true
	}
}

// Issue is a single finding reported by a provider.
type Issue struct {
	FilePath    string `json:"file_path"`
	Line        int    `json:"line"`
	Severity    string `json:"severity"`
	Category    string `json:"category"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Suggestion  string `json:"suggestion,omitempty"`
}

// Result is a provider's review output.
type Result struct {
	Success      bool    `json:"success"`
	Summary      string  `json:"summary"`
	Issues       []Issue `json:"issues"`
	Provider     string  `json:"provider"`
	Model        string  `json:"model"`
	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
}

// Provider is an AI review backend.
type Provider interface {
	// ID returns the provider identifier (e.g., "anthropic", "mock")
	ID() string

	// Model returns the configured model name
	Model() string

	// IsAvailable reports whether the provider is usable right now
	// (credentials configured, backend reachable enough to try)
	IsAvailable() bool

	// Analyze sends a rendered review prompt and returns the parsed result.
	// Failures carry a FailureType via *ProviderError.
	Analyze(ctx context.Context, prompt string) (*Result, error)
}

// ProviderError is an error from a provider call, classified for the
// retry policy.
type ProviderError struct {
	Provider string
	Type     FailureType
	Message  string
	Status   int // HTTP status from the backend, 0 if unknown
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s (%s): %v", e.Provider, e.Message, e.Type, e.Err)
	}
	return fmt.Sprintf("[%s] %s (%s)", e.Provider, e.Message, e.Type)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// NewProviderError creates a classified provider error
func NewProviderError(provider string, ft FailureType, message string, err error) *ProviderError {
	return &ProviderError{
		Provider: provider,
		Type:     ft,
		Message:  message,
		Err:      err,
	}
}

// ClassifyStatus maps an HTTP status code to a FailureType
func ClassifyStatus(status int) FailureType {
	switch {
	case status == 429:
		return FailureRateLimit
	case status == 401 || status == 403:
		return FailureAuthentication
	case status == 400 || status == 422:
		return FailureValidation
	case status == 408 || status == 504:
		return FailureTimeout
	case status >= 500:
		return FailureNetwork
	default:
		return FailureUnknown
	}
}

// FailureTypeOf extracts the FailureType from an error chain,
// defaulting to UNKNOWN for unclassified errors.
func FailureTypeOf(err error) FailureType {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Type
	}
	return FailureUnknown
}

// ProviderFactory creates a Provider from its configured details
type ProviderFactory func(cfg ProviderConfig) (Provider, error)

// ProviderConfig carries the per-provider settings from configuration
type ProviderConfig struct {
	APIKey    string
	Model     string
	MaxTokens int
	Timeout   int // seconds
	BaseURL   string
}

var (
	registry     = make(map[string]ProviderFactory)
	registryLock sync.RWMutex
)

// Register registers a provider factory under an id. Registration runs
// from init functions; a duplicate id is a wiring bug, so it panics
// rather than silently replacing the earlier factory.
func Register(id string, factory ProviderFactory) {
	registryLock.Lock()
	defer registryLock.Unlock()
	if _, exists := registry[id]; exists {
		panic(fmt.Sprintf("duplicate AI provider registered: %s", id))
	}
	registry[id] = factory
}

// Create builds a provider by id using the registered factory
func Create(id string, cfg ProviderConfig) (Provider, error) {
	registryLock.RLock()
	factory, ok := registry[id]
	registryLock.RUnlock()

	if !ok {
		return nil, NewProviderError(id, FailureValidation,
			fmt.Sprintf("provider '%s' not registered", id), nil)
	}
	return factory(cfg)
}

// IsRegistered checks whether a provider factory exists for the id
func IsRegistered(id string) bool {
	registryLock.RLock()
	defer registryLock.RUnlock()
	_, ok := registry[id]
	return ok
}

// Unregister removes a provider factory (mainly for testing)
func Unregister(id string) {
	registryLock.Lock()
	defer registryLock.Unlock()
	delete(registry, id)
}

// ParseReviewJSON parses a provider's text response into a Result.
// Markdown code fencing around the JSON body is tolerated since models
// add it despite instructions.
func ParseReviewJSON(text string) (*Result, error) {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		lines := strings.SplitN(text, "\n", 2)
		if len(lines) > 1 {
			text = lines[1]
		}
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
		text = strings.TrimSpace(text)
	}

	var parsed struct {
		Summary string  `json:"summary"`
		Issues  []Issue `json:"issues"`
	}
	if err := json.Unmarshal([]byte(text), &parsed); err != nil {
		return nil, fmt.Errorf("parse review response as JSON: %w", err)
	}

	return &Result{
		Success: true,
		Summary: parsed.Summary,
		Issues:  parsed.Issues,
	}, nil
}
