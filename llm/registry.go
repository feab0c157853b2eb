package llm

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// SetupParamType enumerates the value types a provider factory's setup
// parameters can declare.
type SetupParamType string

const (
	SetupParamAPIKey       SetupParamType = "api_key"
	SetupParamBaseURL      SetupParamType = "base_url"
	SetupParamOrganization SetupParamType = "organization"
	SetupParamModel        SetupParamType = "model"
	SetupParamString       SetupParamType = "string"
	SetupParamNumber       SetupParamType = "number"
	SetupParamBoolean      SetupParamType = "boolean"
)

// SetupParameter describes one field of a provider factory's configuration
// schema, used to validate instance configs at CreateProvider time.
type SetupParameter struct {
	Key       string         `json:"key"`
	Type      SetupParamType `json:"type"`
	Required  bool           `json:"required"`
	Sensitive bool           `json:"sensitive"`
	Default   string         `json:"default,omitempty"`
}

// ProviderFactory constructs Provider instances of one provider_type from a
// raw instance configuration, and declares the config schema used to
// validate that configuration before construction.
type ProviderFactory interface {
	// ProviderType returns the closed provider_type this factory builds
	// (e.g. "openai", "anthropic", "ollama").
	ProviderType() string

	// SetupParameters returns the config schema for instances of this type.
	SetupParameters() []SetupParameter

	// Build constructs a Provider from a validated instance config.
	Build(config map[string]any) (Provider, error)
}

// ProviderInstanceConfig is a live provider instance's configuration plus
// registry-owned bookkeeping.
type ProviderInstanceConfig struct {
	InstanceName string         `json:"instance_name"`
	ProviderType string         `json:"provider_type"`
	Config       map[string]any `json:"config"`
	Enabled      bool           `json:"enabled"`
	CreatedAt    time.Time      `json:"created_at"`
}

type providerInstance struct {
	cfg      ProviderInstanceConfig
	provider Provider
}

// Registry owns the closed set of provider factories plus the live,
// admin-managed provider instances built from them. It replaces a
// register/get-only provider map with the full instance lifecycle: a
// factory is registered once per provider_type, then any number of named
// instances of that type can be created, updated, enabled/disabled, and
// queried for their aggregated model catalogue.
type Registry struct {
	mu             sync.RWMutex
	factories      map[string]ProviderFactory
	instances      map[string]*providerInstance
	cachedModels   []Model
	cachedModelsAt time.Time
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]ProviderFactory),
		instances: make(map[string]*providerInstance),
	}
}

// RegisterFactory registers a provider factory under its provider_type.
// Re-registering the same provider_type replaces the existing factory.
func (r *Registry) RegisterFactory(f ProviderFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[f.ProviderType()] = f
}

// Factory returns the registered factory for a provider_type, if any.
func (r *Registry) Factory(providerType string) (ProviderFactory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.factories[providerType]
	return f, ok
}

// validateConfig checks a raw instance config against a factory's declared
// setup parameters, applying defaults and enforcing the base_url scheme
// constraint. It returns a new map; the input is never mutated.
func validateConfig(params []SetupParameter, config map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(config))
	for k, v := range config {
		out[k] = v
	}

	for _, p := range params {
		v, present := out[p.Key]
		if !present || v == "" || v == nil {
			if p.Default != "" {
				out[p.Key] = p.Default
				continue
			}
			if p.Required {
				return nil, fmt.Errorf("%s is required", p.Key)
			}
			continue
		}
		if p.Type == SetupParamBaseURL {
			s, ok := v.(string)
			if !ok || (!strings.HasPrefix(s, "http://") && !strings.HasPrefix(s, "https://")) {
				return nil, fmt.Errorf("%s must start with http:// or https://", p.Key)
			}
		}
	}
	return out, nil
}

// CreateProvider validates instanceConfig against the provider_type's
// factory schema, builds the Provider, and registers it as a new enabled
// instance. It fails if instanceName already exists or providerType has no
// registered factory.
func (r *Registry) CreateProvider(instanceName, providerType string, instanceConfig map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.instances[instanceName]; exists {
		return fmt.Errorf("instance already exists")
	}

	f, ok := r.factories[providerType]
	if !ok {
		return fmt.Errorf("no factory registered for provider type %q", providerType)
	}

	validated, err := validateConfig(f.SetupParameters(), instanceConfig)
	if err != nil {
		return err
	}

	p, err := f.Build(validated)
	if err != nil {
		return fmt.Errorf("build provider: %w", err)
	}

	r.instances[instanceName] = &providerInstance{
		cfg: ProviderInstanceConfig{
			InstanceName: instanceName,
			ProviderType: providerType,
			Config:       validated,
			Enabled:      true,
			CreatedAt:    time.Now(),
		},
		provider: p,
	}
	return nil
}

// UpdateProvider atomically replaces an existing instance's configuration:
// it rebuilds the Provider from the factory and swaps it in, preserving the
// instance's Enabled flag and CreatedAt. The old instance is left in place
// if rebuilding fails.
func (r *Registry) UpdateProvider(instanceName string, instanceConfig map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.instances[instanceName]
	if !ok {
		return fmt.Errorf("instance %q not found", instanceName)
	}

	f, ok := r.factories[existing.cfg.ProviderType]
	if !ok {
		return fmt.Errorf("no factory registered for provider type %q", existing.cfg.ProviderType)
	}

	validated, err := validateConfig(f.SetupParameters(), instanceConfig)
	if err != nil {
		return err
	}

	p, err := f.Build(validated)
	if err != nil {
		return fmt.Errorf("build provider: %w", err)
	}

	r.instances[instanceName] = &providerInstance{
		cfg: ProviderInstanceConfig{
			InstanceName: instanceName,
			ProviderType: existing.cfg.ProviderType,
			Config:       validated,
			Enabled:      existing.cfg.Enabled,
			CreatedAt:    existing.cfg.CreatedAt,
		},
		provider: p,
	}
	return nil
}

// GetProvider returns the named instance's Provider, or nil if the instance
// doesn't exist or is disabled.
func (r *Registry) GetProvider(instanceName string) Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	inst, ok := r.instances[instanceName]
	if !ok || !inst.cfg.Enabled {
		return nil
	}
	return inst.provider
}

// SetProviderEnabled toggles an instance's Enabled flag.
func (r *Registry) SetProviderEnabled(instanceName string, enabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	inst, ok := r.instances[instanceName]
	if !ok {
		return fmt.Errorf("instance %q not found", instanceName)
	}
	inst.cfg.Enabled = enabled
	return nil
}

// RemoveProvider deletes an instance outright.
func (r *Registry) RemoveProvider(instanceName string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.instances, instanceName)
}

// ListInstances returns the sorted configs of every registered instance.
func (r *Registry) ListInstances() []ProviderInstanceConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ProviderInstanceConfig, 0, len(r.instances))
	for _, inst := range r.instances {
		out = append(out, inst.cfg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].InstanceName < out[j].InstanceName })
	return out
}

// enabledInstances snapshots the currently-enabled (name, provider) pairs.
func (r *Registry) enabledInstances() map[string]Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]Provider, len(r.instances))
	for name, inst := range r.instances {
		if inst.cfg.Enabled {
			out[name] = inst.provider
		}
	}
	return out
}

// modelLogger is the minimal logging surface ListAllModels needs, satisfied
// by *zap.SugaredLogger or any compatible wrapper.
type modelLogger interface {
	Warnw(msg string, keysAndValues ...any)
}

// ListAllModels fans out ListModels calls to every enabled instance in
// parallel, replaces each returned Model's ProviderInstance with the
// instance name it came from, and logs-and-continues past any single
// instance's failure rather than failing the whole call.
func (r *Registry) ListAllModels(ctx context.Context, logger modelLogger) []Model {
	instances := r.enabledInstances()

	var mu sync.Mutex
	var all []Model

	g, gctx := errgroup.WithContext(ctx)
	for name, p := range instances {
		name, p := name, p
		g.Go(func() error {
			models, err := p.ListModels(gctx)
			if err != nil {
				if logger != nil {
					logger.Warnw("list_models failed for provider instance", "instance", name, "error", err)
				}
				return nil
			}
			mu.Lock()
			for _, m := range models {
				m.ProviderInstance = name
				all = append(all, m)
			}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(all, func(i, j int) bool {
		if all[i].ProviderInstance != all[j].ProviderInstance {
			return all[i].ProviderInstance < all[j].ProviderInstance
		}
		return all[i].ID < all[j].ID
	})
	return all
}

// RefreshModelCache runs ListAllModels and stores the result for
// GetCachedModels to return synchronously.
func (r *Registry) RefreshModelCache(ctx context.Context, logger modelLogger) {
	models := r.ListAllModels(ctx, logger)
	r.mu.Lock()
	r.cachedModels = models
	r.cachedModelsAt = time.Now()
	r.mu.Unlock()
}

// GetCachedModels returns the last cached model list and when it was
// refreshed.
func (r *Registry) GetCachedModels() ([]Model, time.Time) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Model, len(r.cachedModels))
	copy(out, r.cachedModels)
	return out, r.cachedModelsAt
}
