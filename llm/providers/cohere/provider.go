// Package cohere adapts Cohere's OpenAI-compatibility endpoint
// (/compatibility/v1), which mirrors the chat completions and models
// shapes of the OpenAI wire family.
package cohere

import (
	"github.com/localrouter/localrouter/llm/providers"
	"github.com/localrouter/localrouter/llm/providers/openaicompat"
	"go.uber.org/zap"
)

const defaultBaseURL = "https://api.cohere.com/compatibility"

// Provider is the Cohere adapter.
type Provider struct {
	*openaicompat.Provider
}

// New builds a Cohere provider from config.
func New(cfg providers.CohereConfig, logger *zap.Logger) *Provider {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	base := openaicompat.New(openaicompat.Config{
		ProviderName: "cohere",
		APIKey:       cfg.APIKey,
		APIKeys:      cfg.APIKeys,
		BaseURL:      baseURL,
		DefaultModel: cfg.Model,
		Timeout:      cfg.Timeout,
	}, logger)
	return &Provider{Provider: base}
}
