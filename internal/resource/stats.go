package resource

import "time"

// Stats is a snapshot of resource usage and manager counters.
type Stats struct {
	Usage          Usage
	LoadedModels   int
	TotalModels    int
	LoadedMemoryMB float64
	CacheHits      uint64
	CacheMisses    uint64
	CacheSizeMB    float64
	CacheLimitMB   float64
	Evictions      uint64
	LastState      State
	LastTick       time.Time
	LowMemoryMode  bool
}

// Stats samples usage and returns it together with registry and cache
// counters.
func (m *Manager) Stats() Stats {
	usage := m.monitor.Sample()
	m.mu.Lock()
	defer m.mu.Unlock()
	st := Stats{
		Usage:         usage,
		TotalModels:   len(m.models),
		CacheHits:     m.cacheHits,
		CacheMisses:   m.cacheMisses,
		CacheSizeMB:   m.cacheSizeMB,
		CacheLimitMB:  m.cfg.CacheLimitMB,
		Evictions:     m.evictions,
		LastState:     m.lastState,
		LastTick:      m.lastTick,
		LowMemoryMode: m.cfg.LowMemoryMode,
	}
	for _, md := range m.models {
		if md.loaded {
			st.LoadedModels++
			st.LoadedMemoryMB += md.spec.MemoryMB
		}
	}
	return st
}
