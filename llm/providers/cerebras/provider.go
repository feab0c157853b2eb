// Package cerebras adapts the Cerebras wafer-scale inference API, which
// speaks the OpenAI-compatible wire.
package cerebras

import (
	"github.com/localrouter/localrouter/llm/providers"
	"github.com/localrouter/localrouter/llm/providers/openaicompat"
	"go.uber.org/zap"
)

const defaultBaseURL = "https://api.cerebras.ai"

// Provider is the Cerebras adapter.
type Provider struct {
	*openaicompat.Provider
}

// New builds a Cerebras provider from config.
func New(cfg providers.CerebrasConfig, logger *zap.Logger) *Provider {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	base := openaicompat.New(openaicompat.Config{
		ProviderName: "cerebras",
		APIKey:       cfg.APIKey,
		APIKeys:      cfg.APIKeys,
		BaseURL:      baseURL,
		DefaultModel: cfg.Model,
		Timeout:      cfg.Timeout,
	}, logger)
	return &Provider{Provider: base}
}
