// Package togetherai adapts the Together AI inference platform, which
// speaks the OpenAI-compatible wire.
package togetherai

import (
	"github.com/localrouter/localrouter/llm/providers"
	"github.com/localrouter/localrouter/llm/providers/openaicompat"
	"go.uber.org/zap"
)

const defaultBaseURL = "https://api.together.xyz"

// Provider is the Together AI adapter.
type Provider struct {
	*openaicompat.Provider
}

// New builds a Together AI provider from config.
func New(cfg providers.TogetherAIConfig, logger *zap.Logger) *Provider {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	base := openaicompat.New(openaicompat.Config{
		ProviderName: "togetherai",
		APIKey:       cfg.APIKey,
		APIKeys:      cfg.APIKeys,
		BaseURL:      baseURL,
		DefaultModel: cfg.Model,
		Timeout:      cfg.Timeout,
	}, logger)
	return &Provider{Provider: base}
}
