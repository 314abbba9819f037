package ai

import (
	"go.uber.org/zap"

	"github.com/reviewflow/reviewflow/internal/config"
	"github.com/reviewflow/reviewflow/pkg/errors"
	"github.com/reviewflow/reviewflow/pkg/logger"
)

// Factory holds the providers built from configuration and resolves the
// default and fallback for each review.
type Factory struct {
	providers  map[string]Provider
	defaultID  string
	fallbackID string
}

// NewFactory builds every configured provider. An unbuildable provider
// fails the factory; the default provider must be among the configured
// set or reviews could never run.
func NewFactory(cfg config.AIConfig) (*Factory, error) {
	f := &Factory{
		providers:  make(map[string]Provider),
		defaultID:  cfg.DefaultProvider,
		fallbackID: cfg.FallbackProvider,
	}

	for id, detail := range cfg.Providers {
		p, err := Create(id, ProviderConfig{
			APIKey:    detail.APIKey,
			Model:     detail.Model,
			MaxTokens: detail.MaxTokens,
			Timeout:   detail.Timeout,
			BaseURL:   detail.BaseURL,
		})
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeConfigInvalid,
				"failed to build AI provider: "+id, err)
		}
		logger.Info("Registered AI provider",
			zap.String("provider", p.ID()),
			zap.String("model", p.Model()),
		)
		f.providers[id] = p
	}

	if _, ok := f.providers[f.defaultID]; !ok {
		return nil, errors.New(errors.ErrCodeConfigInvalid,
			"default AI provider is not configured: "+f.defaultID)
	}
	return f, nil
}

// NewFactoryWithProviders builds a factory from pre-built providers.
func NewFactoryWithProviders(defaultID, fallbackID string, providers ...Provider) *Factory {
	f := &Factory{
		providers:  make(map[string]Provider),
		defaultID:  defaultID,
		fallbackID: fallbackID,
	}
	for _, p := range providers {
		f.providers[p.ID()] = p
	}
	return f
}

// DefaultProvider returns the configured default provider.
func (f *Factory) DefaultProvider() (Provider, error) {
	return f.Provider(f.defaultID)
}

// Provider returns the provider with the given id.
func (f *Factory) Provider(id string) (Provider, error) {
	p, ok := f.providers[id]
	if !ok {
		return nil, errors.New(errors.ErrCodeProviderNotFound,
			"AI provider not configured: "+id)
	}
	return p, nil
}

// FallbackID returns the configured fallback provider id, empty when
// no fallback is configured.
func (f *Factory) FallbackID() string {
	return f.fallbackID
}
