// Package xai adapts xAI's Grok models, which speak the
// OpenAI-compatible wire.
package xai

import (
	"github.com/localrouter/localrouter/llm/providers"
	"github.com/localrouter/localrouter/llm/providers/openaicompat"
	"go.uber.org/zap"
)

const defaultBaseURL = "https://api.x.ai"

// Provider is the xAI adapter.
type Provider struct {
	*openaicompat.Provider
}

// New builds an xAI provider from config.
func New(cfg providers.XAIConfig, logger *zap.Logger) *Provider {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	base := openaicompat.New(openaicompat.Config{
		ProviderName: "xai",
		APIKey:       cfg.APIKey,
		APIKeys:      cfg.APIKeys,
		BaseURL:      baseURL,
		DefaultModel: cfg.Model,
		Timeout:      cfg.Timeout,
	}, logger)
	return &Provider{Provider: base}
}
