package llm

import (
	"context"
	"fmt"
)

// ProviderWrapper wraps a Provider with a dynamic API key and base URL,
// letting the legacy per-request router attach request-scoped credentials
// to an otherwise statically-configured Provider.
type ProviderWrapper struct {
	baseProvider Provider
	apiKey       string
	baseURL      string
}

// NewProviderWrapper creates a wrapper around baseProvider carrying apiKey
// and baseURL for the legacy router's per-request provider selection.
func NewProviderWrapper(baseProvider Provider, apiKey, baseURL string) *ProviderWrapper {
	return &ProviderWrapper{
		baseProvider: baseProvider,
		apiKey:       apiKey,
		baseURL:      baseURL,
	}
}

func (w *ProviderWrapper) Completion(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	return w.baseProvider.Completion(ctx, req)
}

func (w *ProviderWrapper) Stream(ctx context.Context, req *ChatRequest) (<-chan StreamChunk, error) {
	return w.baseProvider.Stream(ctx, req)
}

func (w *ProviderWrapper) HealthCheck(ctx context.Context) (*HealthStatus, error) {
	return w.baseProvider.HealthCheck(ctx)
}

func (w *ProviderWrapper) Name() string {
	return w.baseProvider.Name()
}

func (w *ProviderWrapper) SupportsNativeFunctionCalling() bool {
	return w.baseProvider.SupportsNativeFunctionCalling()
}

func (w *ProviderWrapper) ListModels(ctx context.Context) ([]Model, error) {
	return w.baseProvider.ListModels(ctx)
}

// GetAPIKey returns the credential this wrapper was constructed with.
func (w *ProviderWrapper) GetAPIKey() string {
	return w.apiKey
}

// GetBaseURL returns the endpoint this wrapper was constructed with.
func (w *ProviderWrapper) GetBaseURL() string {
	return w.baseURL
}

// LegacyProviderFactory builds a Provider from a provider code plus a
// per-request API key and base URL. This is the legacy single-shot
// construction path used by the deprecated gorm-backed Router; the
// admin-managed instance lifecycle lives in Registry/ProviderFactory
// instead.
type LegacyProviderFactory interface {
	CreateProvider(providerCode string, apiKey string, baseURL string) (Provider, error)
}

// DefaultProviderFactory is a LegacyProviderFactory backed by a static map
// of per-code constructors.
type DefaultProviderFactory struct {
	constructors map[string]func(apiKey, baseURL string) (Provider, error)
}

func NewDefaultProviderFactory() *DefaultProviderFactory {
	return &DefaultProviderFactory{
		constructors: make(map[string]func(apiKey, baseURL string) (Provider, error)),
	}
}

func (f *DefaultProviderFactory) RegisterProvider(code string, constructor func(apiKey, baseURL string) (Provider, error)) {
	f.constructors[code] = constructor
}

func (f *DefaultProviderFactory) CreateProvider(providerCode string, apiKey string, baseURL string) (Provider, error) {
	constructor, exists := f.constructors[providerCode]
	if !exists {
		return nil, fmt.Errorf("provider %s not registered", providerCode)
	}
	return constructor(apiKey, baseURL)
}
