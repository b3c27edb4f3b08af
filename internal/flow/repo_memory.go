package flow

import (
	"context"
	"sync"
)

// MemoryRepo is a simple in-memory repository useful for tests.
// It is not intended for production use.

type MemoryRepo struct {
	mu      sync.Mutex
	configs map[string]Configuration
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{configs: make(map[string]Configuration)}
}

func (r *MemoryRepo) GetConfiguration(ctx context.Context, orgID string) (Configuration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cfg, ok := r.configs[orgID]
	if !ok {
		return Configuration{}, ErrNotFound
	}
	return cfg, nil
}

func (r *MemoryRepo) SaveConfiguration(ctx context.Context, cfg Configuration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.configs[cfg.OrgID] = cfg
	return nil
}

// Saved reports whether a configuration was ever persisted for the org.
// Test helper for the never-persist-defaults invariant.
func (r *MemoryRepo) Saved(orgID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.configs[orgID]
	return ok
}
