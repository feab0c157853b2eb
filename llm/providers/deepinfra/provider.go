// Package deepinfra adapts the DeepInfra hosted-model platform, which
// speaks the OpenAI-compatible wire.
package deepinfra

import (
	"github.com/localrouter/localrouter/llm/providers"
	"github.com/localrouter/localrouter/llm/providers/openaicompat"
	"go.uber.org/zap"
)

const defaultBaseURL = "https://api.deepinfra.com/v1/openai"

// Provider is the DeepInfra adapter.
type Provider struct {
	*openaicompat.Provider
}

// New builds a DeepInfra provider from config.
func New(cfg providers.DeepInfraConfig, logger *zap.Logger) *Provider {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	base := openaicompat.New(openaicompat.Config{
		ProviderName: "deepinfra",
		APIKey:       cfg.APIKey,
		APIKeys:      cfg.APIKeys,
		BaseURL:      baseURL,
		DefaultModel: cfg.Model,
		Timeout:      cfg.Timeout,
	}, logger)
	return &Provider{Provider: base}
}
