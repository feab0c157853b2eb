package factory

import (
	"testing"

	"github.com/localrouter/localrouter/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// =============================================================================
// Factory Tests
// =============================================================================

func TestNewProviderFromConfig_AllProviders(t *testing.T) {
	logger := zap.NewNop()

	tests := []struct {
		name         string
		providerName string
		cfg          ProviderConfig
		wantName     string
	}{
		{name: "openai", providerName: "openai", cfg: ProviderConfig{APIKey: "sk-test"}, wantName: "openai"},
		{name: "anthropic", providerName: "anthropic", cfg: ProviderConfig{APIKey: "sk-test"}, wantName: "claude"},
		{name: "gemini", providerName: "gemini", cfg: ProviderConfig{APIKey: "sk-test"}, wantName: "gemini"},
		{name: "mistral", providerName: "mistral", cfg: ProviderConfig{APIKey: "sk-test"}, wantName: "mistral"},
		{name: "ollama", providerName: "ollama", cfg: ProviderConfig{BaseURL: "http://localhost:11434"}, wantName: "ollama"},
		{name: "lmstudio", providerName: "lmstudio", cfg: ProviderConfig{BaseURL: "http://localhost:1234"}, wantName: "lmstudio"},
		{name: "openrouter", providerName: "openrouter", cfg: ProviderConfig{APIKey: "sk-test"}, wantName: "openrouter"},
		{name: "groq", providerName: "groq", cfg: ProviderConfig{APIKey: "sk-test"}, wantName: "groq"},
		{name: "cohere", providerName: "cohere", cfg: ProviderConfig{APIKey: "sk-test"}, wantName: "cohere"},
		{name: "togetherai", providerName: "togetherai", cfg: ProviderConfig{APIKey: "sk-test"}, wantName: "togetherai"},
		{name: "perplexity", providerName: "perplexity", cfg: ProviderConfig{APIKey: "sk-test"}, wantName: "perplexity"},
		{name: "deepinfra", providerName: "deepinfra", cfg: ProviderConfig{APIKey: "sk-test"}, wantName: "deepinfra"},
		{name: "cerebras", providerName: "cerebras", cfg: ProviderConfig{APIKey: "sk-test"}, wantName: "cerebras"},
		{name: "xai", providerName: "xai", cfg: ProviderConfig{APIKey: "sk-test"}, wantName: "xai"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewProviderFromConfig(tt.providerName, tt.cfg, logger)
			require.NoError(t, err)
			require.NotNil(t, p)
			assert.Equal(t, tt.wantName, p.Name())
		})
	}
}

func TestNewProviderFromConfig_UnknownProviderRequiresBaseURL(t *testing.T) {
	_, err := NewProviderFromConfig("some-custom-vendor", ProviderConfig{}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "base_url is required")
}

func TestNewProviderFromConfig_UnknownProviderWithBaseURL(t *testing.T) {
	p, err := NewProviderFromConfig("some-custom-vendor", ProviderConfig{BaseURL: "https://example.com/v1"}, nil)
	require.NoError(t, err)
	require.NotNil(t, p)
}

func TestNewProviderFromConfig_OpenAIExtras(t *testing.T) {
	p, err := NewProviderFromConfig("openai", ProviderConfig{
		APIKey: "sk-test",
		Extra: map[string]any{
			"organization":      "org-123",
			"use_responses_api": true,
		},
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, "openai", p.Name())
}

func TestNewProviderFromConfig_OpenRouterExtras(t *testing.T) {
	p, err := NewProviderFromConfig("openrouter", ProviderConfig{
		APIKey: "sk-test",
		Extra: map[string]any{
			"http_referer": "https://localrouter.example",
			"x_title":      "LocalRouter",
		},
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, "openrouter", p.Name())
}

func TestNewProviderFromConfig_NilLogger(t *testing.T) {
	p, err := NewProviderFromConfig("openai", ProviderConfig{APIKey: "sk-test"}, nil)
	require.NoError(t, err)
	require.NotNil(t, p)
}

func TestSupportedProviders(t *testing.T) {
	names := SupportedProviders()
	assert.Len(t, names, 15)
	assert.Contains(t, names, "openai")
	assert.Contains(t, names, "anthropic")
	assert.Contains(t, names, "gemini")
}

// =============================================================================
// Registry Tests
// =============================================================================

func TestRegisterAllFactories(t *testing.T) {
	reg := llm.NewRegistry()
	RegisterAllFactories(reg, zap.NewNop())

	for _, pt := range SupportedProviders() {
		_, ok := reg.Factory(pt)
		assert.True(t, ok, "expected factory registered for %s", pt)
	}
}

func TestRegistry_CreateProvider(t *testing.T) {
	reg := llm.NewRegistry()
	RegisterAllFactories(reg, zap.NewNop())

	err := reg.CreateProvider("primary-openai", "openai", map[string]any{"api_key": "sk-test"})
	require.NoError(t, err)

	p := reg.GetProvider("primary-openai")
	require.NotNil(t, p)
	assert.Equal(t, "openai", p.Name())

	_, ok := reg.Factory("openai")
	assert.True(t, ok)
}

func TestRegistry_CreateProvider_DuplicateName(t *testing.T) {
	reg := llm.NewRegistry()
	RegisterAllFactories(reg, zap.NewNop())

	require.NoError(t, reg.CreateProvider("primary", "openai", map[string]any{"api_key": "sk-test"}))
	err := reg.CreateProvider("primary", "openai", map[string]any{"api_key": "sk-test"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
}

func TestRegistry_CreateProvider_MissingRequiredKey(t *testing.T) {
	reg := llm.NewRegistry()
	RegisterAllFactories(reg, zap.NewNop())

	err := reg.CreateProvider("primary", "openai", map[string]any{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required")
}

func TestRegistry_CreateProvider_InvalidBaseURL(t *testing.T) {
	reg := llm.NewRegistry()
	RegisterAllFactories(reg, zap.NewNop())

	err := reg.CreateProvider("primary", "openai_compatible", map[string]any{
		"api_key":  "sk-test",
		"base_url": "not-a-url",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "base_url")
}

func TestRegistry_UpdateProvider_PreservesEnabledAndCreatedAt(t *testing.T) {
	reg := llm.NewRegistry()
	RegisterAllFactories(reg, zap.NewNop())

	require.NoError(t, reg.CreateProvider("primary", "openai", map[string]any{"api_key": "sk-test"}))
	require.NoError(t, reg.SetProviderEnabled("primary", false))

	before := reg.ListInstances()[0]

	require.NoError(t, reg.UpdateProvider("primary", map[string]any{"api_key": "sk-test-2"}))

	after := reg.ListInstances()[0]
	assert.Equal(t, before.CreatedAt, after.CreatedAt)
	assert.False(t, after.Enabled)
}

func TestRegistry_SetProviderEnabled_DisablesGet(t *testing.T) {
	reg := llm.NewRegistry()
	RegisterAllFactories(reg, zap.NewNop())

	require.NoError(t, reg.CreateProvider("primary", "openai", map[string]any{"api_key": "sk-test"}))
	require.NoError(t, reg.SetProviderEnabled("primary", false))

	assert.Nil(t, reg.GetProvider("primary"))
}

func TestRegistry_ListInstances_Sorted(t *testing.T) {
	reg := llm.NewRegistry()
	RegisterAllFactories(reg, zap.NewNop())

	require.NoError(t, reg.CreateProvider("zeta", "openai", map[string]any{"api_key": "sk-test"}))
	require.NoError(t, reg.CreateProvider("alpha", "openai", map[string]any{"api_key": "sk-test"}))

	instances := reg.ListInstances()
	require.Len(t, instances, 2)
	assert.Equal(t, "alpha", instances[0].InstanceName)
	assert.Equal(t, "zeta", instances[1].InstanceName)
}

func TestNewRegistryFromConfig(t *testing.T) {
	reg, err := NewRegistryFromConfig(RegistryConfig{
		Providers: map[string]ProviderConfig{
			"primary": {APIKey: "sk-test", Extra: map[string]any{"type": "openai"}},
		},
	}, zap.NewNop())
	require.NoError(t, err)
	require.NotNil(t, reg.GetProvider("primary"))
}
