package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// Factory builds an adapter from merged credentials.
type Factory func(creds Credentials, client *http.Client) (Adapter, error)

type cachedAdapter struct {
	updatedAt time.Time
	adapter   Adapter
}

// Registry resolves the order-creation target from the gateway config rows on
// every call, reusing built adapters until their row changes.
type Registry struct {
	repo      ConfigRepository
	client    *http.Client
	factories map[Provider]Factory
	defaults  map[Provider]Credentials

	mu    sync.Mutex
	cache map[Provider]cachedAdapter
}

func NewRegistry(repo ConfigRepository, timeout time.Duration) *Registry {
	return &Registry{
		repo:      repo,
		client:    &http.Client{Timeout: timeout},
		factories: make(map[Provider]Factory),
		defaults:  make(map[Provider]Credentials),
		cache:     make(map[Provider]cachedAdapter),
	}
}

// Register installs the factory and environment credentials for p.
func (r *Registry) Register(p Provider, f Factory, defaults Credentials) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.factories[p] = f
	r.defaults[p] = defaults
	delete(r.cache, p)
}

// Active returns the adapter for the active primary gateway together with
// the config row it was built from.
func (r *Registry) Active(ctx context.Context) (Adapter, Config, error) {
	cfg, err := r.repo.ActivePrimary(ctx)
	if err != nil {
		return nil, Config{}, err
	}
	adapter, err := r.build(*cfg)
	if err != nil {
		return nil, Config{}, err
	}
	return adapter, *cfg, nil
}

// Credentials returns the row credentials merged over environment defaults.
// A provider without a row uses the defaults alone.
func (r *Registry) Credentials(ctx context.Context, p Provider) (Credentials, error) {
	r.mu.Lock()
	defaults, known := r.defaults[p]
	r.mu.Unlock()
	if !known {
		return Credentials{}, fmt.Errorf("%w: %q", ErrUnknownProvider, p)
	}

	cfg, err := r.repo.Get(ctx, p)
	if errors.Is(err, ErrConfigNotFound) {
		return defaults, nil
	}
	if err != nil {
		return Credentials{}, err
	}

	creds, err := cfg.Credentials()
	if err != nil {
		return Credentials{}, fmt.Errorf("%s: decode config: %w", p, err)
	}
	return creds.Merge(defaults), nil
}

func (r *Registry) build(cfg Config) (Adapter, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cached, ok := r.cache[cfg.Provider]; ok && cached.updatedAt.Equal(cfg.UpdatedAt) {
		return cached.adapter, nil
	}

	factory, ok := r.factories[cfg.Provider]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, cfg.Provider)
	}

	creds, err := cfg.Credentials()
	if err != nil {
		return nil, fmt.Errorf("%s: decode config: %w", cfg.Provider, err)
	}

	adapter, err := factory(creds.Merge(r.defaults[cfg.Provider]), r.client)
	if err != nil {
		return nil, err
	}

	r.cache[cfg.Provider] = cachedAdapter{updatedAt: cfg.UpdatedAt, adapter: adapter}
	return adapter, nil
}
