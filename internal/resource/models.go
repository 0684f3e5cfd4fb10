package resource

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"
)

// LoadFunc loads or unloads a model. Synchronous and asynchronous runtimes
// both fit: an asynchronous one blocks until done or ctx expires.
type LoadFunc func(ctx context.Context) error

// ModelSpec describes a model handed to RegisterModel.
type ModelSpec struct {
	ID       string
	Type     string
	Priority ModelPriority
	Load     LoadFunc
	Unload   LoadFunc
	MemoryMB float64
	// Loaded marks a model that is already resident at registration.
	Loaded bool
}

// ModelInfo is a read-only snapshot of a registered model.
type ModelInfo struct {
	ID         string
	Type       string
	Priority   ModelPriority
	MemoryMB   float64
	Loaded     bool
	LastUsed   time.Time
	UsageCount int64
}

type model struct {
	spec       ModelSpec
	loaded     bool
	lastUsed   time.Time
	usageCount int64
	// busy is set while a load or unload callback is in flight.
	busy bool
}

func (md *model) info() ModelInfo {
	return ModelInfo{
		ID:         md.spec.ID,
		Type:       md.spec.Type,
		Priority:   md.spec.Priority,
		MemoryMB:   md.spec.MemoryMB,
		Loaded:     md.loaded,
		LastUsed:   md.lastUsed,
		UsageCount: md.usageCount,
	}
}

// RegisterModel places spec under the manager's control.
func (m *Manager) RegisterModel(spec ModelSpec) error {
	if spec.ID == "" {
		return errors.New("model id is required")
	}
	if spec.Priority < ModelIdle || spec.Priority > ModelHigh {
		return fmt.Errorf("invalid model priority %d", int(spec.Priority))
	}
	m.mu.Lock()
	if _, ok := m.models[spec.ID]; ok {
		m.mu.Unlock()
		return modelExistsError{id: spec.ID}
	}
	m.models[spec.ID] = &model{spec: spec, loaded: spec.Loaded, lastUsed: m.now()}
	loaded := m.loadedCountLocked()
	m.mu.Unlock()
	modelsLoaded.Set(float64(loaded))
	m.log.Info().Str("model_id", spec.ID).Str("type", spec.Type).Stringer("priority", spec.Priority).Float64("memory_mb", spec.MemoryMB).Msg("model registered")
	return nil
}

// UnregisterModel unloads the model if resident and removes it.
func (m *Manager) UnregisterModel(ctx context.Context, id string) error {
	m.mu.Lock()
	md, ok := m.models[id]
	if !ok {
		m.mu.Unlock()
		return ErrModelNotFound(id)
	}
	loaded := md.loaded
	m.mu.Unlock()
	if loaded {
		if err := m.UnloadModel(ctx, id); err != nil && !IsModelNotFound(err) {
			m.log.Warn().Err(err).Str("model_id", id).Msg("unload before unregister failed")
		}
	}
	m.mu.Lock()
	delete(m.models, id)
	n := m.loadedCountLocked()
	m.mu.Unlock()
	modelsLoaded.Set(float64(n))
	m.log.Info().Str("model_id", id).Msg("model unregistered")
	return nil
}

// LoadModel loads a registered model if it is not resident and marks it
// used.
func (m *Manager) LoadModel(ctx context.Context, id string) error {
	m.mu.Lock()
	md, ok := m.models[id]
	if !ok {
		m.mu.Unlock()
		return ErrModelNotFound(id)
	}
	if md.busy {
		m.mu.Unlock()
		return modelBusyError{id: id}
	}
	if md.loaded {
		md.lastUsed = m.now()
		m.mu.Unlock()
		return nil
	}
	md.busy = true
	load := md.spec.Load
	m.mu.Unlock()

	var err error
	if load != nil {
		err = callLoad(ctx, load)
	}

	m.mu.Lock()
	md.busy = false
	if err == nil {
		md.loaded = true
		md.lastUsed = m.now()
	}
	n := m.loadedCountLocked()
	m.mu.Unlock()
	if err != nil {
		m.log.Error().Err(err).Str("model_id", id).Msg("model load failed")
		return fmt.Errorf("load %s: %w", id, err)
	}
	modelsLoaded.Set(float64(n))
	m.pub.Publish(Event{Name: EventModelLoaded, ModelID: id, Fields: map[string]any{}})
	m.log.Info().Str("model_id", id).Msg("model loaded")
	return nil
}

// UnloadModel unloads a resident model on request.
func (m *Manager) UnloadModel(ctx context.Context, id string) error {
	m.mu.Lock()
	md, ok := m.models[id]
	if !ok {
		m.mu.Unlock()
		return ErrModelNotFound(id)
	}
	if md.busy {
		m.mu.Unlock()
		return modelBusyError{id: id}
	}
	if !md.loaded {
		m.mu.Unlock()
		return nil
	}
	md.busy = true
	m.mu.Unlock()
	return m.unload(ctx, md, "manual")
}

// UpdateUsage marks the model as just used.
func (m *Manager) UpdateUsage(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	md, ok := m.models[id]
	if !ok {
		return ErrModelNotFound(id)
	}
	md.lastUsed = m.now()
	md.usageCount++
	return nil
}

// Model returns a snapshot of one model.
func (m *Manager) Model(id string) (ModelInfo, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	md, ok := m.models[id]
	if !ok {
		return ModelInfo{}, false
	}
	return md.info(), true
}

// Models returns snapshots of all models ordered by id.
func (m *Manager) Models() []ModelInfo {
	m.mu.Lock()
	out := make([]ModelInfo, 0, len(m.models))
	for _, md := range m.models {
		out = append(out, md.info())
	}
	m.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// unload runs the unload callback of md, which the caller has marked busy.
func (m *Manager) unload(ctx context.Context, md *model, reason string) error {
	id := md.spec.ID
	var err error
	if md.spec.Unload != nil {
		err = callLoad(ctx, md.spec.Unload)
	}
	m.mu.Lock()
	md.busy = false
	if err == nil {
		md.loaded = false
		m.evictions++
	}
	n := m.loadedCountLocked()
	m.mu.Unlock()

	if err != nil {
		m.log.Error().Err(err).Str("model_id", id).Str("reason", reason).Msg("model unload failed")
		m.pub.Publish(Event{Name: EventModelUnloadFailed, ModelID: id, Fields: map[string]any{"reason": reason, "error": err.Error()}})
		return fmt.Errorf("unload %s: %w", id, err)
	}
	modelsLoaded.Set(float64(n))
	evictionsTotal.WithLabelValues(reason).Inc()
	m.pub.Publish(Event{Name: EventModelUnloaded, ModelID: id, Fields: map[string]any{"reason": reason, "memory_mb": md.spec.MemoryMB}})
	m.log.Info().Str("model_id", id).Str("reason", reason).Float64("memory_mb", md.spec.MemoryMB).Msg("model unloaded")
	return nil
}

// claimLocked marks loaded models accepted by match as busy and returns them
// in eviction order: lowest priority first, least recently used first.
// Caller holds mu.
func (m *Manager) claimLocked(match func(*model) bool) []*model {
	var out []*model
	for _, md := range m.models {
		if !md.loaded || md.busy || !match(md) {
			continue
		}
		out = append(out, md)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].spec.Priority != out[j].spec.Priority {
			return out[i].spec.Priority < out[j].spec.Priority
		}
		return out[i].lastUsed.Before(out[j].lastUsed)
	})
	for _, md := range out {
		md.busy = true
	}
	return out
}

func (m *Manager) loadedCountLocked() int {
	n := 0
	for _, md := range m.models {
		if md.loaded {
			n++
		}
	}
	return n
}

type panicError struct{ v any }

func (e panicError) Error() string { return fmt.Sprintf("panic: %v", e.v) }

func callLoad(ctx context.Context, fn LoadFunc) (err error) {
	defer func() {
		if v := recover(); v != nil {
			err = panicError{v: v}
		}
	}()
	return fn(ctx)
}
