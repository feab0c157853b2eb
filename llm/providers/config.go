package providers

import "time"

// BaseProviderConfig holds the fields shared by every provider config.
// Embedding it gives a provider's own config APIKey, BaseURL, Model, and
// Timeout without repeating the fields.
type BaseProviderConfig struct {
	APIKey  string        `json:"api_key" yaml:"api_key"`
	APIKeys []string      `json:"api_keys,omitempty" yaml:"api_keys,omitempty"` // round-robin multi-key support
	BaseURL string        `json:"base_url" yaml:"base_url"`
	Model   string        `json:"model,omitempty" yaml:"model,omitempty"`
	Models  []string      `json:"models,omitempty" yaml:"models,omitempty"` // allowed model whitelist
	Timeout time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// OpenAIConfig configures the OpenAI provider.
type OpenAIConfig struct {
	BaseProviderConfig `yaml:",inline"`
	Organization       string `json:"organization,omitempty" yaml:"organization,omitempty"`
	UseResponsesAPI    bool   `json:"use_responses_api,omitempty" yaml:"use_responses_api,omitempty"`
}

// ClaudeConfig configures the Anthropic provider.
type ClaudeConfig struct {
	BaseProviderConfig `yaml:",inline"`
	AuthType           string `json:"auth_type,omitempty" yaml:"auth_type,omitempty"` // "api_key" (default) | "bearer"
	AnthropicVersion   string `json:"anthropic_version,omitempty" yaml:"anthropic_version,omitempty"` // default "2023-06-01"
}

// GeminiConfig configures the Gemini provider.
type GeminiConfig struct {
	BaseProviderConfig `yaml:",inline"`
	ProjectID          string `json:"project_id,omitempty" yaml:"project_id,omitempty"`
	Region             string `json:"region,omitempty" yaml:"region,omitempty"`
	AuthType           string `json:"auth_type,omitempty" yaml:"auth_type,omitempty"` // "api_key" (default) | "oauth"
}

// MistralConfig configures the Mistral AI provider (OpenAI-compatible wire).
type MistralConfig struct {
	BaseProviderConfig `yaml:",inline"`
}

// OllamaConfig configures a local Ollama server (OpenAI-compatible wire,
// no API key required).
type OllamaConfig struct {
	BaseProviderConfig `yaml:",inline"`
}

// LMStudioConfig configures a local LM Studio server (OpenAI-compatible
// wire, no API key required).
type LMStudioConfig struct {
	BaseProviderConfig `yaml:",inline"`
}

// OpenAICompatibleConfig configures a generic, user-pointed
// OpenAI-compatible endpoint not covered by a named vendor.
type OpenAICompatibleConfig struct {
	BaseProviderConfig `yaml:",inline"`
}

// OpenRouterConfig configures the OpenRouter aggregator (OpenAI-compatible
// wire, with HTTP-Referer/X-Title attribution headers).
type OpenRouterConfig struct {
	BaseProviderConfig `yaml:",inline"`
	HTTPReferer        string `json:"http_referer,omitempty" yaml:"http_referer,omitempty"`
	XTitle             string `json:"x_title,omitempty" yaml:"x_title,omitempty"`
}

// GroqConfig configures the Groq provider (OpenAI-compatible wire).
type GroqConfig struct {
	BaseProviderConfig `yaml:",inline"`
}

// CohereConfig configures the Cohere provider (OpenAI-compatible
// compatibility endpoint).
type CohereConfig struct {
	BaseProviderConfig `yaml:",inline"`
}

// TogetherAIConfig configures the Together AI provider (OpenAI-compatible
// wire).
type TogetherAIConfig struct {
	BaseProviderConfig `yaml:",inline"`
}

// PerplexityConfig configures the Perplexity provider (OpenAI-compatible
// wire).
type PerplexityConfig struct {
	BaseProviderConfig `yaml:",inline"`
}

// DeepInfraConfig configures the DeepInfra provider (OpenAI-compatible
// wire).
type DeepInfraConfig struct {
	BaseProviderConfig `yaml:",inline"`
}

// CerebrasConfig configures the Cerebras provider (OpenAI-compatible
// wire).
type CerebrasConfig struct {
	BaseProviderConfig `yaml:",inline"`
}

// XAIConfig configures the xAI Grok provider (OpenAI-compatible wire).
type XAIConfig struct {
	BaseProviderConfig `yaml:",inline"`
}
