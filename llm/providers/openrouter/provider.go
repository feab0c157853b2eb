// Package openrouter adapts the OpenRouter model aggregator, which speaks
// the OpenAI-compatible wire plus two attribution headers OpenRouter uses
// to attribute usage to the calling application.
package openrouter

import (
	"net/http"

	"github.com/localrouter/localrouter/llm/providers"
	"github.com/localrouter/localrouter/llm/providers/openaicompat"
	"go.uber.org/zap"
)

const defaultBaseURL = "https://openrouter.ai/api"

// Provider is the OpenRouter adapter.
type Provider struct {
	*openaicompat.Provider
}

// New builds an OpenRouter provider from config.
func New(cfg providers.OpenRouterConfig, logger *zap.Logger) *Provider {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	base := openaicompat.New(openaicompat.Config{
		ProviderName: "openrouter",
		APIKey:       cfg.APIKey,
		APIKeys:      cfg.APIKeys,
		BaseURL:      baseURL,
		DefaultModel: cfg.Model,
		Timeout:      cfg.Timeout,
		BuildHeaders: func(req *http.Request, apiKey string) {
			req.Header.Set("Authorization", "Bearer "+apiKey)
			req.Header.Set("Content-Type", "application/json")
			if cfg.HTTPReferer != "" {
				req.Header.Set("HTTP-Referer", cfg.HTTPReferer)
			}
			if cfg.XTitle != "" {
				req.Header.Set("X-Title", cfg.XTitle)
			}
		},
	}, logger)
	return &Provider{Provider: base}
}
