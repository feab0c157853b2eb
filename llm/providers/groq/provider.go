// Package groq adapts the Groq low-latency inference API, which speaks
// the OpenAI-compatible wire.
package groq

import (
	"github.com/localrouter/localrouter/llm/providers"
	"github.com/localrouter/localrouter/llm/providers/openaicompat"
	"go.uber.org/zap"
)

const defaultBaseURL = "https://api.groq.com/openai"

// Provider is the Groq adapter.
type Provider struct {
	*openaicompat.Provider
}

// New builds a Groq provider from config.
func New(cfg providers.GroqConfig, logger *zap.Logger) *Provider {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	base := openaicompat.New(openaicompat.Config{
		ProviderName: "groq",
		APIKey:       cfg.APIKey,
		APIKeys:      cfg.APIKeys,
		BaseURL:      baseURL,
		DefaultModel: cfg.Model,
		Timeout:      cfg.Timeout,
	}, logger)
	return &Provider{Provider: base}
}
