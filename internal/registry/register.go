package registry

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/multierr"

	"agentd/internal/llm"
	"agentd/internal/resource"
	"agentd/pkg/types"
)

// ModelType tags models registered from disk.
const ModelType = "llm"

// Adapters holds the adapter behind each registered model.
type Adapters struct {
	mu   sync.Mutex
	byID map[string]llm.Adapter
}

// Get returns the adapter of a registered model.
func (s *Adapters) Get(id string) (llm.Adapter, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.byID[id]
	return a, ok
}

// ReleaseCaches asks every loaded adapter that supports it to drop warm
// caches. Models stay loaded.
func (s *Adapters) ReleaseCaches(ctx context.Context) error {
	s.mu.Lock()
	adapters := make(map[string]llm.Adapter, len(s.byID))
	for id, a := range s.byID {
		adapters[id] = a
	}
	s.mu.Unlock()

	var errs error
	for id, a := range adapters {
		r, ok := a.(llm.CacheReleaser)
		if !ok || !a.Loaded() {
			continue
		}
		if err := r.ReleaseCache(ctx); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("release %s: %w", id, err))
		}
	}
	return errs
}

// Register places each model under mgr's control with load and unload
// callbacks backed by an adapter from factory. Models are registered
// unloaded. Failures are combined; the remaining models still register and
// are present in the returned Adapters.
func Register(mgr *resource.Manager, models []types.Model, factory llm.Factory, priority resource.ModelPriority) (*Adapters, error) {
	set := &Adapters{byID: make(map[string]llm.Adapter, len(models))}
	var errs error
	for _, m := range models {
		adapter := factory()
		path := m.Path
		spec := resource.ModelSpec{
			ID:       m.ID,
			Type:     ModelType,
			Priority: priority,
			MemoryMB: float64(m.SizeMB),
			Load: func(ctx context.Context) error {
				if err := adapter.Load(ctx, path); err != nil {
					return err
				}
				if err := adapter.Warmup(ctx); err != nil {
					// the manager records a failed load as unloaded
					return multierr.Append(err, adapter.Unload(context.WithoutCancel(ctx)))
				}
				return nil
			},
			Unload: adapter.Unload,
		}
		if err := mgr.RegisterModel(spec); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("register %s: %w", m.ID, err))
			continue
		}
		set.byID[m.ID] = adapter
	}
	return set, errs
}
