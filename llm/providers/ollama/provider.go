// Package ollama adapts a local Ollama server. Ollama speaks the
// OpenAI-compatible wire under /v1 and needs no API key.
package ollama

import (
	"github.com/localrouter/localrouter/llm/providers"
	"github.com/localrouter/localrouter/llm/providers/openaicompat"
	"go.uber.org/zap"
)

const defaultBaseURL = "http://localhost:11434"

// Provider is the Ollama adapter.
type Provider struct {
	*openaicompat.Provider
}

// New builds an Ollama provider from config.
func New(cfg providers.OllamaConfig, logger *zap.Logger) *Provider {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	base := openaicompat.New(openaicompat.Config{
		ProviderName:  "ollama",
		APIKey:        cfg.APIKey,
		APIKeys:       cfg.APIKeys,
		BaseURL:       baseURL,
		DefaultModel:  cfg.Model,
		Timeout:       cfg.Timeout,
		SupportsTools: boolPtr(true),
	}, logger)
	return &Provider{Provider: base}
}

func boolPtr(b bool) *bool { return &b }
