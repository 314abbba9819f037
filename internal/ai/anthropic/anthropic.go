// Package anthropic implements the AI provider interface on top of the
// Anthropic Messages API.
package anthropic

import (
	"context"
	"errors"
	"net"
	"net/url"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.uber.org/zap"

	"github.com/reviewflow/reviewflow/internal/ai"
	"github.com/reviewflow/reviewflow/pkg/logger"
)

// ProviderID is the identifier for the Anthropic provider
const ProviderID = "anthropic"

const (
	defaultModel     = "claude-sonnet-4-20250514"
	defaultMaxTokens = 8192
	defaultTimeout   = 120 * time.Second
)

const systemPrompt = `You are an expert code reviewer. Analyze the provided commit and respond with ONLY a JSON object containing:
- "summary": a concise review summary (2-4 sentences)
- "issues": an array of findings, each with "file_path", "line", "severity" (one of "critical", "major", "minor", "info"), "category" (e.g. "bug", "security", "performance", "style"), "title", "description", and optional "suggestion"

Return valid JSON only, no markdown fencing or explanation. An empty issues array is a valid review.`

func init() {
	ai.Register(ProviderID, NewProvider)
}

// Provider implements the ai.Provider interface for Anthropic
type Provider struct {
	client    anthropic.Client
	apiKey    string
	model     string
	maxTokens int
	timeout   time.Duration
}

// NewProvider creates a new Anthropic provider instance
func NewProvider(cfg ai.ProviderConfig) (ai.Provider, error) {
	opts := []option.RequestOption{}
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	model := cfg.Model
	if model == "" {
		model = defaultModel
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	timeout := defaultTimeout
	if cfg.Timeout > 0 {
		timeout = time.Duration(cfg.Timeout) * time.Second
	}

	return &Provider{
		client:    anthropic.NewClient(opts...),
		apiKey:    cfg.APIKey,
		model:     model,
		maxTokens: maxTokens,
		timeout:   timeout,
	}, nil
}

// ID returns the provider identifier
func (p *Provider) ID() string {
	return ProviderID
}

// Model returns the configured model name
func (p *Provider) Model() string {
	return p.model
}

// IsAvailable reports whether the provider has credentials to try
func (p *Provider) IsAvailable() bool {
	return p.apiKey != ""
}

// Analyze sends the rendered review prompt to the Messages API and
// parses the JSON response into a review result.
func (p *Provider) Analyze(ctx context.Context, prompt string) (*ai.Result, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	start := time.Now()
	msg, err := p.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(p.model),
		MaxTokens: int64(p.maxTokens),
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return nil, classify(err)
	}

	var text string
	for _, block := range msg.Content {
		if block.Type == "text" {
			text = block.Text
			break
		}
	}
	if text == "" {
		return nil, ai.NewProviderError(ProviderID, ai.FailureUnknown,
			"no text content in API response", nil)
	}

	result, err := ai.ParseReviewJSON(text)
	if err != nil {
		return nil, ai.NewProviderError(ProviderID, ai.FailureUnknown,
			"unparseable review response", err)
	}
	result.Provider = ProviderID
	result.Model = p.model
	result.InputTokens = int(msg.Usage.InputTokens)
	result.OutputTokens = int(msg.Usage.OutputTokens)

	logger.Debug("Anthropic review completed",
		zap.String("model", p.model),
		zap.Int("issues", len(result.Issues)),
		zap.Int("input_tokens", result.InputTokens),
		zap.Int("output_tokens", result.OutputTokens),
		zap.Duration("duration", time.Since(start)),
	)
	return result, nil
}

// classify maps SDK and transport errors onto the failure taxonomy
func classify(err error) *ai.ProviderError {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		ft := ai.ClassifyStatus(apiErr.StatusCode)
		pe := ai.NewProviderError(ProviderID, ft, "API call failed", err)
		pe.Status = apiErr.StatusCode
		return pe
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return ai.NewProviderError(ProviderID, ai.FailureTimeout, "API call timed out", err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ai.NewProviderError(ProviderID, ai.FailureTimeout, "API call timed out", err)
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return ai.NewProviderError(ProviderID, ai.FailureNetwork, "network error", err)
	}

	return ai.NewProviderError(ProviderID, ai.FailureUnknown, "API call failed", err)
}
