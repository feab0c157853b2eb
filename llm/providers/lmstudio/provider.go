// Package lmstudio adapts a local LM Studio server, which exposes the
// same OpenAI-compatible wire as Ollama and needs no API key.
package lmstudio

import (
	"github.com/localrouter/localrouter/llm/providers"
	"github.com/localrouter/localrouter/llm/providers/openaicompat"
	"go.uber.org/zap"
)

const defaultBaseURL = "http://localhost:1234"

// Provider is the LM Studio adapter.
type Provider struct {
	*openaicompat.Provider
}

// New builds an LM Studio provider from config.
func New(cfg providers.LMStudioConfig, logger *zap.Logger) *Provider {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	base := openaicompat.New(openaicompat.Config{
		ProviderName: "lmstudio",
		APIKey:       cfg.APIKey,
		APIKeys:      cfg.APIKeys,
		BaseURL:      baseURL,
		DefaultModel: cfg.Model,
		Timeout:      cfg.Timeout,
	}, logger)
	return &Provider{Provider: base}
}
