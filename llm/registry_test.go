package llm

import (
	"context"
	"testing"
)

type staticFactory struct {
	providerType string
	params       []SetupParameter
	build        func(config map[string]any) (Provider, error)
}

func (f *staticFactory) ProviderType() string             { return f.providerType }
func (f *staticFactory) SetupParameters() []SetupParameter { return f.params }
func (f *staticFactory) Build(config map[string]any) (Provider, error) {
	return f.build(config)
}

func newTestFactory(providerType string) *staticFactory {
	return &staticFactory{
		providerType: providerType,
		params: []SetupParameter{
			{Key: "api_key", Type: SetupParamAPIKey, Required: true},
			{Key: "base_url", Type: SetupParamBaseURL},
		},
		build: func(config map[string]any) (Provider, error) {
			return &fakeProbeProvider{name: providerType}, nil
		},
	}
}

func TestRegistry_CreateGetRemove(t *testing.T) {
	r := NewRegistry()
	r.RegisterFactory(newTestFactory("openai"))

	if err := r.CreateProvider("primary", "openai", map[string]any{"api_key": "sk-test"}); err != nil {
		t.Fatalf("CreateProvider: %v", err)
	}

	p := r.GetProvider("primary")
	if p == nil {
		t.Fatal("expected provider instance")
	}
	if p.Name() != "openai" {
		t.Fatalf("expected name openai, got %s", p.Name())
	}

	r.RemoveProvider("primary")
	if r.GetProvider("primary") != nil {
		t.Fatal("expected provider removed")
	}
}

func TestRegistry_CreateProvider_UnknownType(t *testing.T) {
	r := NewRegistry()
	if err := r.CreateProvider("primary", "does-not-exist", nil); err == nil {
		t.Fatal("expected error for unregistered provider type")
	}
}

func TestRegistry_CreateProvider_MissingRequired(t *testing.T) {
	r := NewRegistry()
	r.RegisterFactory(newTestFactory("openai"))
	if err := r.CreateProvider("primary", "openai", map[string]any{}); err == nil {
		t.Fatal("expected error for missing required api_key")
	}
}

func TestRegistry_SetProviderEnabled(t *testing.T) {
	r := NewRegistry()
	r.RegisterFactory(newTestFactory("openai"))
	if err := r.CreateProvider("primary", "openai", map[string]any{"api_key": "sk-test"}); err != nil {
		t.Fatalf("CreateProvider: %v", err)
	}

	if err := r.SetProviderEnabled("primary", false); err != nil {
		t.Fatalf("SetProviderEnabled: %v", err)
	}
	if r.GetProvider("primary") != nil {
		t.Fatal("expected disabled instance to be unreachable via GetProvider")
	}

	instances := r.ListInstances()
	if len(instances) != 1 || instances[0].Enabled {
		t.Fatalf("expected one disabled instance, got %+v", instances)
	}
}

func TestRegistry_ListAllModels_AggregatesAndSkipsFailures(t *testing.T) {
	r := NewRegistry()
	r.RegisterFactory(&staticFactory{
		providerType: "good",
		build: func(config map[string]any) (Provider, error) {
			return &fakeProbeProvider{name: "good", models: []Model{{ID: "m1"}, {ID: "m2"}}}, nil
		},
	})
	r.RegisterFactory(&staticFactory{
		providerType: "bad",
		build: func(config map[string]any) (Provider, error) {
			return &fakeProbeProvider{name: "bad", listErr: context.DeadlineExceeded}, nil
		},
	})

	if err := r.CreateProvider("good-1", "good", nil); err != nil {
		t.Fatalf("CreateProvider good-1: %v", err)
	}
	if err := r.CreateProvider("bad-1", "bad", nil); err != nil {
		t.Fatalf("CreateProvider bad-1: %v", err)
	}

	models := r.ListAllModels(context.Background(), nil)
	if len(models) != 2 {
		t.Fatalf("expected 2 models from the healthy instance only, got %d", len(models))
	}
	for _, m := range models {
		if m.ProviderInstance != "good-1" {
			t.Fatalf("expected ProviderInstance good-1, got %s", m.ProviderInstance)
		}
	}
}

func TestRegistry_RefreshModelCache(t *testing.T) {
	r := NewRegistry()
	r.RegisterFactory(&staticFactory{
		providerType: "good",
		build: func(config map[string]any) (Provider, error) {
			return &fakeProbeProvider{name: "good", models: []Model{{ID: "m1"}}}, nil
		},
	})
	if err := r.CreateProvider("good-1", "good", nil); err != nil {
		t.Fatalf("CreateProvider: %v", err)
	}

	r.RefreshModelCache(context.Background(), nil)
	cached, at := r.GetCachedModels()
	if len(cached) != 1 {
		t.Fatalf("expected 1 cached model, got %d", len(cached))
	}
	if at.IsZero() {
		t.Fatal("expected cache timestamp to be set")
	}
}
