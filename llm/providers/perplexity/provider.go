// Package perplexity adapts the Perplexity online-search models API,
// which speaks the OpenAI-compatible wire.
package perplexity

import (
	"github.com/localrouter/localrouter/llm/providers"
	"github.com/localrouter/localrouter/llm/providers/openaicompat"
	"go.uber.org/zap"
)

const defaultBaseURL = "https://api.perplexity.ai"

// Provider is the Perplexity adapter.
type Provider struct {
	*openaicompat.Provider
}

// New builds a Perplexity provider from config.
func New(cfg providers.PerplexityConfig, logger *zap.Logger) *Provider {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	base := openaicompat.New(openaicompat.Config{
		ProviderName: "perplexity",
		APIKey:       cfg.APIKey,
		APIKeys:      cfg.APIKeys,
		BaseURL:      baseURL,
		DefaultModel: cfg.Model,
		Timeout:      cfg.Timeout,
	}, logger)
	return &Provider{Provider: base}
}
