// Package mock implements a mock AI provider for testing and local
// development. It returns a canned review so the full pipeline can run
// without credentials or network access.
package mock

import (
	"context"
	"sync"

	"github.com/reviewflow/reviewflow/internal/ai"
)

// ProviderID is the identifier for the mock provider
const ProviderID = "mock"

func init() {
	ai.Register(ProviderID, NewProvider)
}

// Provider implements the ai.Provider interface with canned responses.
// Tests can swap the result or error per call.
type Provider struct {
	mu        sync.Mutex
	id        string
	model     string
	available bool
	result    *ai.Result
	err       error
	calls     int
}

// NewProvider creates a new mock provider instance
func NewProvider(cfg ai.ProviderConfig) (ai.Provider, error) {
	model := cfg.Model
	if model == "" {
		model = "mock-model"
	}
	return &Provider{
		id:        ProviderID,
		model:     model,
		available: true,
	}, nil
}

// New creates a mock provider with an explicit id for tests that need
// several distinct providers.
func New(id string) *Provider {
	return &Provider{
		id:        id,
		model:     "mock-model",
		available: true,
	}
}

// ID returns the provider identifier
func (p *Provider) ID() string {
	return p.id
}

// Model returns the configured model name
func (p *Provider) Model() string {
	return p.model
}

// IsAvailable reports the configured availability
func (p *Provider) IsAvailable() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.available
}

// SetAvailable overrides availability for tests
func (p *Provider) SetAvailable(v bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.available = v
}

// SetResult makes Analyze return the given result
func (p *Provider) SetResult(r *ai.Result) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.result = r
	p.err = nil
}

// SetError makes Analyze fail with the given error
func (p *Provider) SetError(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.err = err
}

// Calls returns how many times Analyze has been invoked
func (p *Provider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

// Analyze returns the configured result or error. With neither set it
// returns a clean review with no findings.
func (p *Provider) Analyze(ctx context.Context, prompt string) (*ai.Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++

	if p.err != nil {
		return nil, p.err
	}
	if p.result != nil {
		r := *p.result
		r.Provider = p.id
		r.Model = p.model
		return &r, nil
	}
	return &ai.Result{
		Success:  true,
		Summary:  "Mock review completed; no issues found.",
		Issues:   []ai.Issue{},
		Provider: p.id,
		Model:    p.model,
	}, nil
}
