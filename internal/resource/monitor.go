package resource

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const (
	defaultMinSampleInterval = time.Second
	acceleratorQueryTimeout  = 2 * time.Second
)

// Sampler measures host resources.
type Sampler interface {
	CPUPercent() (float64, error)
	ProcessMemoryMB() (float64, error)
	SystemMemoryPercent() (float64, error)
	DiskPercent() (float64, error)
}

// Accelerator reports and relieves GPU memory pressure.
type Accelerator interface {
	// MemoryMB returns used and total device memory.
	MemoryMB(ctx context.Context) (used, total float64, err error)
	// ClearCache releases cached allocations held by the inference runtime.
	ClearCache(ctx context.Context) error
}

// MonitorConfig configures a Monitor. A nil Accelerator means the host has
// no GPU.
type MonitorConfig struct {
	Sampler     Sampler
	Accelerator Accelerator
	// Thresholds overrides the defaults per resource type.
	Thresholds map[ResourceType]Threshold
	// MinSampleInterval rate-limits State per resource type. Zero uses 1s,
	// negative disables the limit.
	MinSampleInterval time.Duration
	Logger            *zerolog.Logger
}

// Monitor samples resources and classifies pressure.
type Monitor struct {
	sampler Sampler
	accel   Accelerator
	log     zerolog.Logger

	mu         sync.Mutex
	thresholds map[ResourceType]Threshold
	limiters   map[ResourceType]*rate.Limiter
	last       Usage
}

// NewMonitor builds a Monitor. Invalid thresholds in cfg are rejected.
func NewMonitor(cfg MonitorConfig) (*Monitor, error) {
	if cfg.Sampler == nil {
		return nil, fmt.Errorf("monitor requires a sampler")
	}
	if cfg.Logger == nil {
		nop := zerolog.Nop()
		cfg.Logger = &nop
	}
	thresholds := DefaultThresholds()
	for rt, t := range cfg.Thresholds {
		if err := t.Validate(); err != nil {
			return nil, fmt.Errorf("%s: %w", rt, err)
		}
		thresholds[rt] = t
	}
	limit := rate.Inf
	switch {
	case cfg.MinSampleInterval == 0:
		limit = rate.Every(defaultMinSampleInterval)
	case cfg.MinSampleInterval > 0:
		limit = rate.Every(cfg.MinSampleInterval)
	}
	limiters := make(map[ResourceType]*rate.Limiter, len(ResourceTypes))
	for _, rt := range ResourceTypes {
		limiters[rt] = rate.NewLimiter(limit, 1)
	}
	return &Monitor{
		sampler:    cfg.Sampler,
		accel:      cfg.Accelerator,
		log:        cfg.Logger.With().Str("component", "resource_monitor").Logger(),
		thresholds: thresholds,
		limiters:   limiters,
	}, nil
}

// Threshold returns the current threshold of rt.
func (m *Monitor) Threshold(rt ResourceType) Threshold {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.thresholds[rt]
}

// SetThreshold replaces the threshold of rt.
func (m *Monitor) SetThreshold(rt ResourceType, t Threshold) error {
	if err := t.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	m.thresholds[rt] = t
	m.mu.Unlock()
	return nil
}

// CPUUsage returns CPU utilisation in percent, 0 on sampling failure.
func (m *Monitor) CPUUsage() float64 {
	v, err := m.sampler.CPUPercent()
	if err != nil {
		m.log.Debug().Err(err).Msg("cpu sample failed")
		return 0
	}
	m.record(func(u *Usage) { u.CPUPercent = v })
	return v
}

// ProcessMemoryMB returns the resident memory of this process.
func (m *Monitor) ProcessMemoryMB() float64 {
	v, err := m.sampler.ProcessMemoryMB()
	if err != nil {
		m.log.Debug().Err(err).Msg("process memory sample failed")
		return 0
	}
	m.record(func(u *Usage) { u.ProcessMemoryMB = v })
	return v
}

// SystemMemoryPercent returns host memory utilisation in percent.
func (m *Monitor) SystemMemoryPercent() float64 {
	v, err := m.sampler.SystemMemoryPercent()
	if err != nil {
		m.log.Debug().Err(err).Msg("memory sample failed")
		return 0
	}
	m.record(func(u *Usage) { u.SystemMemoryPercent = v })
	return v
}

// DiskPercent returns utilisation of the monitored filesystem.
func (m *Monitor) DiskPercent() float64 {
	v, err := m.sampler.DiskPercent()
	if err != nil {
		m.log.Debug().Err(err).Msg("disk sample failed")
		return 0
	}
	m.record(func(u *Usage) { u.DiskPercent = v })
	return v
}

// GPUMemoryPercent returns accelerator memory utilisation; ok is false when
// there is no accelerator or it cannot be queried.
func (m *Monitor) GPUMemoryPercent() (float64, bool) {
	used, total, ok := m.gpuMemory()
	if !ok || total <= 0 {
		return 0, false
	}
	return used / total * 100, true
}

// GPUFreeMB returns free accelerator memory.
func (m *Monitor) GPUFreeMB() (float64, bool) {
	used, total, ok := m.gpuMemory()
	if !ok {
		return 0, false
	}
	return total - used, true
}

// HasAccelerator reports whether a GPU is configured.
func (m *Monitor) HasAccelerator() bool { return m.accel != nil }

// ClearAcceleratorCache asks the accelerator to release cached allocations.
func (m *Monitor) ClearAcceleratorCache(ctx context.Context) error {
	if m.accel == nil {
		return nil
	}
	return m.accel.ClearCache(ctx)
}

func (m *Monitor) gpuMemory() (used, total float64, ok bool) {
	if m.accel == nil {
		return 0, 0, false
	}
	ctx, cancel := context.WithTimeout(context.Background(), acceleratorQueryTimeout)
	defer cancel()
	used, total, err := m.accel.MemoryMB(ctx)
	if err != nil {
		m.log.Debug().Err(err).Msg("gpu sample failed")
		return 0, 0, false
	}
	m.record(func(u *Usage) {
		u.HasGPU = total > 0
		u.GPUMemoryUsedMB, u.GPUMemoryTotalMB = used, total
		if total > 0 {
			u.GPUMemoryPercent = used / total * 100
		}
	})
	return used, total, true
}

// Sample measures every resource and returns the result.
func (m *Monitor) Sample() Usage {
	m.CPUUsage()
	m.ProcessMemoryMB()
	m.SystemMemoryPercent()
	m.DiskPercent()
	if _, ok := m.GPUMemoryPercent(); !ok {
		m.record(func(u *Usage) { u.HasGPU = false })
	}
	u := m.Last()
	observeUsage(u)
	return u
}

// Last returns the most recent measurements without sampling.
func (m *Monitor) Last() Usage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}

// State classifies rt. Calls closer together than the minimum sample
// interval return StateNormal without measuring.
func (m *Monitor) State(rt ResourceType) State {
	m.mu.Lock()
	lim := m.limiters[rt]
	m.mu.Unlock()
	if lim != nil && !lim.Allow() {
		return StateNormal
	}
	return m.StateNow(rt)
}

// StateNow classifies rt from a fresh measurement, ignoring the rate limit.
func (m *Monitor) StateNow(rt ResourceType) State {
	usage, ok := m.measure(rt)
	if !ok {
		return StateNormal
	}
	st := Classify(usage, m.Threshold(rt))
	resourceState.WithLabelValues(string(rt)).Set(float64(st))
	resourceUsage.WithLabelValues(string(rt)).Set(usage)
	return st
}

func (m *Monitor) measure(rt ResourceType) (float64, bool) {
	var (
		v   float64
		err error
	)
	switch rt {
	case Memory:
		v, err = m.sampler.SystemMemoryPercent()
		if err == nil {
			m.record(func(u *Usage) { u.SystemMemoryPercent = v })
		}
	case CPU:
		v, err = m.sampler.CPUPercent()
		if err == nil {
			m.record(func(u *Usage) { u.CPUPercent = v })
		}
	case Disk:
		v, err = m.sampler.DiskPercent()
		if err == nil {
			m.record(func(u *Usage) { u.DiskPercent = v })
		}
	case GPUMemory:
		return m.GPUMemoryPercent()
	default:
		return 0, false
	}
	if err != nil {
		m.log.Debug().Err(err).Str("resource", string(rt)).Msg("sample failed")
		return 0, false
	}
	return v, true
}

func (m *Monitor) record(fn func(*Usage)) {
	m.mu.Lock()
	fn(&m.last)
	m.last.SampledAt = time.Now()
	m.mu.Unlock()
}
