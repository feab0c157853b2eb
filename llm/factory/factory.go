// Package factory provides a centralized factory for creating LLM Provider
// instances by name. It imports all provider sub-packages and maps string
// names to their constructors, breaking the import cycle that would occur
// if this logic lived in the llm package directly.
package factory

import (
	"fmt"
	"time"

	"github.com/localrouter/localrouter/llm"
	"github.com/localrouter/localrouter/llm/providers"
	claude "github.com/localrouter/localrouter/llm/providers/anthropic"
	"github.com/localrouter/localrouter/llm/providers/cerebras"
	"github.com/localrouter/localrouter/llm/providers/cohere"
	"github.com/localrouter/localrouter/llm/providers/deepinfra"
	"github.com/localrouter/localrouter/llm/providers/gemini"
	"github.com/localrouter/localrouter/llm/providers/groq"
	"github.com/localrouter/localrouter/llm/providers/lmstudio"
	"github.com/localrouter/localrouter/llm/providers/mistral"
	"github.com/localrouter/localrouter/llm/providers/ollama"
	"github.com/localrouter/localrouter/llm/providers/openai"
	"github.com/localrouter/localrouter/llm/providers/openaicompat"
	"github.com/localrouter/localrouter/llm/providers/openrouter"
	"github.com/localrouter/localrouter/llm/providers/perplexity"
	"github.com/localrouter/localrouter/llm/providers/togetherai"
	"github.com/localrouter/localrouter/llm/providers/xai"
	"go.uber.org/zap"
)

// ProviderConfig is the generic configuration accepted by the factory function.
// It uses a flat structure with an Extra map for provider-specific fields.
type ProviderConfig struct {
	APIKey  string         `json:"api_key" yaml:"api_key"`
	APIKeys []string       `json:"api_keys,omitempty" yaml:"api_keys,omitempty"`
	BaseURL string         `json:"base_url" yaml:"base_url"`
	Model   string         `json:"model,omitempty" yaml:"model,omitempty"`
	Timeout time.Duration  `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	Extra   map[string]any `json:"extra,omitempty" yaml:"extra,omitempty"`
}

// NewProviderFromConfig creates a Provider instance based on the provider
// type name and a generic ProviderConfig. The name must be one of the
// closed set of provider types: openai, anthropic, gemini, ollama,
// lmstudio, openai_compatible, openrouter, groq, mistral, cohere,
// togetherai, perplexity, deepinfra, cerebras, xai — or any other string,
// which is treated as a generic OpenAI-compatible endpoint requiring
// base_url.
func NewProviderFromConfig(name string, cfg ProviderConfig, logger *zap.Logger) (llm.Provider, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	base := providers.BaseProviderConfig{
		APIKey:  cfg.APIKey,
		APIKeys: cfg.APIKeys,
		BaseURL: cfg.BaseURL,
		Model:   cfg.Model,
		Timeout: cfg.Timeout,
	}

	switch name {
	case "openai":
		oc := providers.OpenAIConfig{BaseProviderConfig: base}
		if cfg.Extra != nil {
			if v, ok := cfg.Extra["organization"].(string); ok {
				oc.Organization = v
			}
			if v, ok := cfg.Extra["use_responses_api"].(bool); ok {
				oc.UseResponsesAPI = v
			}
		}
		return openai.NewOpenAIProvider(oc, logger), nil

	case "anthropic":
		cc := providers.ClaudeConfig{BaseProviderConfig: base}
		if cfg.Extra != nil {
			if v, ok := cfg.Extra["auth_type"].(string); ok {
				cc.AuthType = v
			}
			if v, ok := cfg.Extra["anthropic_version"].(string); ok {
				cc.AnthropicVersion = v
			}
		}
		return claude.NewClaudeProvider(cc, logger), nil

	case "gemini", "gemini-vertex":
		gc := providers.GeminiConfig{BaseProviderConfig: base}
		if cfg.Extra != nil {
			if v, ok := cfg.Extra["project_id"].(string); ok {
				gc.ProjectID = v
			}
			if v, ok := cfg.Extra["region"].(string); ok {
				gc.Region = v
			}
			if v, ok := cfg.Extra["auth_type"].(string); ok {
				gc.AuthType = v
			}
		}
		if name == "gemini-vertex" && gc.AuthType == "" {
			gc.AuthType = "oauth"
		}
		return gemini.NewGeminiProvider(gc, logger), nil

	case "mistral":
		return mistral.NewMistralProvider(providers.MistralConfig{BaseProviderConfig: base}, logger), nil

	case "ollama":
		return ollama.New(providers.OllamaConfig{BaseProviderConfig: base}, logger), nil

	case "lmstudio":
		return lmstudio.New(providers.LMStudioConfig{BaseProviderConfig: base}, logger), nil

	case "openrouter":
		oc := providers.OpenRouterConfig{BaseProviderConfig: base}
		if cfg.Extra != nil {
			if v, ok := cfg.Extra["http_referer"].(string); ok {
				oc.HTTPReferer = v
			}
			if v, ok := cfg.Extra["x_title"].(string); ok {
				oc.XTitle = v
			}
		}
		return openrouter.New(oc, logger), nil

	case "groq":
		return groq.New(providers.GroqConfig{BaseProviderConfig: base}, logger), nil

	case "cohere":
		return cohere.New(providers.CohereConfig{BaseProviderConfig: base}, logger), nil

	case "togetherai":
		return togetherai.New(providers.TogetherAIConfig{BaseProviderConfig: base}, logger), nil

	case "perplexity":
		return perplexity.New(providers.PerplexityConfig{BaseProviderConfig: base}, logger), nil

	case "deepinfra":
		return deepinfra.New(providers.DeepInfraConfig{BaseProviderConfig: base}, logger), nil

	case "cerebras":
		return cerebras.New(providers.CerebrasConfig{BaseProviderConfig: base}, logger), nil

	case "xai":
		return xai.New(providers.XAIConfig{BaseProviderConfig: base}, logger), nil

	case "openai_compatible":
		if cfg.BaseURL == "" {
			return nil, fmt.Errorf("provider type %q requires base_url", name)
		}
		oc := buildGenericConfig(name, cfg)
		return openaicompat.New(oc, logger), nil

	default:
		// Any unrecognized name is still accepted as a generic
		// OpenAI-compatible endpoint, provided base_url is set.
		if cfg.BaseURL == "" {
			return nil, fmt.Errorf("unknown provider type %q: not in the built-in set, and base_url is required for a generic OpenAI-compatible provider", name)
		}
		oc := buildGenericConfig(name, cfg)
		logger.Info("creating generic OpenAI-compatible provider",
			zap.String("provider", name),
			zap.String("base_url", cfg.BaseURL))
		return openaicompat.New(oc, logger), nil
	}
}

func buildGenericConfig(name string, cfg ProviderConfig) openaicompat.Config {
	oc := openaicompat.Config{
		ProviderName: name,
		APIKey:       cfg.APIKey,
		APIKeys:      cfg.APIKeys,
		BaseURL:      cfg.BaseURL,
		DefaultModel: cfg.Model,
		Timeout:      cfg.Timeout,
	}
	if cfg.Extra != nil {
		if v, ok := cfg.Extra["endpoint_path"].(string); ok {
			oc.EndpointPath = v
		}
		if v, ok := cfg.Extra["models_endpoint"].(string); ok {
			oc.ModelsEndpoint = v
		}
		if v, ok := cfg.Extra["auth_header"].(string); ok {
			oc.AuthHeaderName = v
		}
		if v, ok := cfg.Extra["supports_tools"].(bool); ok {
			oc.SupportsTools = &v
		}
		if v, ok := cfg.Extra["api_keys"].([]any); ok {
			for _, k := range v {
				if s, ok := k.(string); ok {
					oc.APIKeys = append(oc.APIKeys, s)
				}
			}
		}
	}
	return oc
}

// SupportedProviders returns the closed set of built-in provider type
// names. Any other name is still accepted as a generic OpenAI-compatible
// provider, requiring base_url in the configuration.
func SupportedProviders() []string {
	return []string{
		"openai", "anthropic", "gemini", "ollama", "lmstudio",
		"openai_compatible", "openrouter", "groq", "mistral", "cohere",
		"togetherai", "perplexity", "deepinfra", "cerebras", "xai",
	}
}

// RegistryConfig describes multiple named provider instances to create on
// an llm.Registry in one call.
type RegistryConfig struct {
	// Providers maps provider instance names to their configurations. Each
	// entry's Extra map must carry "type" naming one of SupportedProviders;
	// if absent, the instance name itself is taken as the provider_type.
	Providers map[string]ProviderConfig `json:"providers" yaml:"providers"`
}

// genericFactory adapts NewProviderFromConfig into an llm.ProviderFactory
// for one closed provider_type, so every vendor's adapter is reachable
// through the registry's CreateProvider/UpdateProvider lifecycle rather
// than only through the one-shot NewProviderFromConfig helper.
type genericFactory struct {
	providerType string
	requiresKey  bool
	requiresURL  bool
	logger       *zap.Logger
}

func (f *genericFactory) ProviderType() string { return f.providerType }

func (f *genericFactory) SetupParameters() []llm.SetupParameter {
	params := []llm.SetupParameter{
		{Key: "api_key", Type: llm.SetupParamAPIKey, Required: f.requiresKey, Sensitive: true},
		{Key: "base_url", Type: llm.SetupParamBaseURL, Required: f.requiresURL},
		{Key: "model", Type: llm.SetupParamModel},
	}
	return params
}

func (f *genericFactory) Build(config map[string]any) (llm.Provider, error) {
	pcfg := ProviderConfig{Extra: map[string]any{}}
	if v, ok := config["api_key"].(string); ok {
		pcfg.APIKey = v
	}
	if v, ok := config["base_url"].(string); ok {
		pcfg.BaseURL = v
	}
	if v, ok := config["model"].(string); ok {
		pcfg.Model = v
	}
	for k, v := range config {
		if k == "api_key" || k == "base_url" || k == "model" {
			continue
		}
		pcfg.Extra[k] = v
	}
	return NewProviderFromConfig(f.providerType, pcfg, f.logger)
}

// requiresAPIKey reports whether a built-in provider_type needs an API key
// to function (local runtimes like ollama/lmstudio don't).
func requiresAPIKey(providerType string) bool {
	switch providerType {
	case "ollama", "lmstudio":
		return false
	default:
		return true
	}
}

// requiresBaseURL reports whether a built-in provider_type needs an
// explicit base_url (generic OpenAI-compatible endpoints always do).
func requiresBaseURL(providerType string) bool {
	return providerType == "openai_compatible"
}

// RegisterAllFactories registers a genericFactory for every built-in
// provider_type plus the generic "openai_compatible" catch-all onto reg,
// so CreateProvider/UpdateProvider can instantiate any of them by name.
func RegisterAllFactories(reg *llm.Registry, logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}
	for _, pt := range SupportedProviders() {
		reg.RegisterFactory(&genericFactory{
			providerType: pt,
			requiresKey:  requiresAPIKey(pt),
			requiresURL:  requiresBaseURL(pt),
			logger:       logger,
		})
	}
}

// NewRegistryFromConfig creates an llm.Registry with every built-in
// provider_type factory registered, then creates one instance per entry in
// cfg.Providers. Any instance that fails to initialize is logged as a
// warning and skipped rather than failing the whole call.
func NewRegistryFromConfig(cfg RegistryConfig, logger *zap.Logger) (*llm.Registry, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	reg := llm.NewRegistry()
	RegisterAllFactories(reg, logger)

	for name, pcfg := range cfg.Providers {
		providerType := name
		if pcfg.Extra != nil {
			if v, ok := pcfg.Extra["type"].(string); ok && v != "" {
				providerType = v
			}
		}
		instanceConfig := map[string]any{
			"api_key":  pcfg.APIKey,
			"base_url": pcfg.BaseURL,
			"model":    pcfg.Model,
		}
		for k, v := range pcfg.Extra {
			if k == "type" {
				continue
			}
			instanceConfig[k] = v
		}
		if err := reg.CreateProvider(name, providerType, instanceConfig); err != nil {
			logger.Warn("skipping provider instance: initialization failed",
				zap.String("instance", name),
				zap.String("type", providerType),
				zap.Error(err))
			continue
		}
		logger.Info("provider instance registered", zap.String("instance", name), zap.String("type", providerType))
	}

	return reg, nil
}
