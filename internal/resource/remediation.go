package resource

import (
	"context"
	"time"
)

// Tick runs one remediation pass: the tier for the worse of memory and GPU
// memory pressure, then idle unloads and cache trimming. It returns the
// pressure state acted on. Tick measures afresh instead of going through
// the per-type State rate limit shared with consumers.
func (m *Manager) Tick(ctx context.Context) State {
	state := m.pressure(m.monitor.StateNow)
	m.remediate(ctx, state)
	m.unloadIdle(ctx)
	m.trimCache()
	m.monitor.Sample()

	m.mu.Lock()
	m.lastState = state
	m.lastTick = m.now()
	m.mu.Unlock()
	return state
}

// OptimizeResources applies the remediation tier for the current pressure
// once, measuring afresh regardless of the sampling rate limit.
func (m *Manager) OptimizeResources(ctx context.Context) State {
	state := m.pressure(m.monitor.StateNow)
	m.log.Info().Stringer("state", state).Msg("manual resource optimization")
	m.remediate(ctx, state)
	m.mu.Lock()
	m.lastState = state
	m.mu.Unlock()
	return state
}

func (m *Manager) pressure(stateOf func(ResourceType) State) State {
	mem := stateOf(Memory)
	gpu := stateOf(GPUMemory)
	if gpu > mem {
		return gpu
	}
	return mem
}

// remediate applies exactly one tier for state.
func (m *Manager) remediate(ctx context.Context, state State) {
	if state == StateNormal {
		return
	}
	remediationsTotal.WithLabelValues(state.String()).Inc()
	m.log.Warn().Stringer("state", state).Msg("resource pressure remediation")

	var unloaded []string
	switch state {
	case StateEmergency:
		m.runCleanupCallbacks(ctx)
		unloaded = m.unloadBelow(ctx, ModelHigh, "emergency")
		m.clearAcceleratorCache(ctx)
		m.mu.Lock()
		m.cacheSizeMB = 0
		m.mu.Unlock()
		cacheSize.Set(0)
	case StateCritical:
		m.runCleanupCallbacks(ctx)
		unloaded = m.unloadBelow(ctx, ModelMedium, "critical")
		m.clearAcceleratorCache(ctx)
	case StateWarning:
		m.clearAcceleratorCache(ctx)
	}
	m.pub.Publish(Event{Name: EventRemediation, Fields: map[string]any{"state": state.String(), "unloaded": unloaded}})
}

// unloadBelow unloads every resident model with priority below floor.
func (m *Manager) unloadBelow(ctx context.Context, floor ModelPriority, reason string) []string {
	m.mu.Lock()
	victims := m.claimLocked(func(md *model) bool { return md.spec.Priority < floor })
	m.mu.Unlock()
	return m.unloadAll(ctx, victims, reason)
}

// unloadIdle unloads non-high models unused for longer than the unload
// timeout.
func (m *Manager) unloadIdle(ctx context.Context) []string {
	cutoff := m.now().Add(-m.cfg.ModelUnloadTimeout)
	m.mu.Lock()
	victims := m.claimLocked(func(md *model) bool {
		return md.spec.Priority != ModelHigh && md.lastUsed.Before(cutoff)
	})
	m.mu.Unlock()
	return m.unloadAll(ctx, victims, "idle")
}

func (m *Manager) unloadAll(ctx context.Context, victims []*model, reason string) []string {
	var out []string
	for _, md := range victims {
		if err := m.unload(ctx, md, reason); err == nil {
			out = append(out, md.spec.ID)
		}
	}
	return out
}

func (m *Manager) clearAcceleratorCache(ctx context.Context) {
	if !m.monitor.HasAccelerator() {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := m.monitor.ClearAcceleratorCache(ctx); err != nil {
		m.log.Warn().Err(err).Msg("clear accelerator cache failed")
	}
}

// trimCache shrinks the logical cache counter to 80% of its limit when it
// has grown past the limit.
func (m *Manager) trimCache() {
	m.mu.Lock()
	limit := m.cfg.CacheLimitMB
	trimmed := false
	if m.cacheSizeMB > limit {
		m.cacheSizeMB = limit * cacheTrimRatio
		trimmed = true
	}
	v := m.cacheSizeMB
	m.mu.Unlock()
	cacheSize.Set(v)
	if trimmed {
		m.log.Info().Float64("cache_size_mb", v).Float64("limit_mb", limit).Msg("cache counter trimmed")
	}
}
