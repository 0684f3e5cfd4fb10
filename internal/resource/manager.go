package resource

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// CleanupFunc releases memory held outside the model registry (caches,
// buffers). It runs during critical and emergency remediation.
type CleanupFunc func(ctx context.Context) error

// Manager owns registered models and remediates resource pressure.
// Construct one per process and pass it to consumers.
type Manager struct {
	cfg     ManagerConfig
	monitor *Monitor
	pub     EventPublisher
	log     zerolog.Logger
	now     func() time.Time

	// mu guards the model registry, callbacks and counters.
	mu          sync.Mutex
	models      map[string]*model
	callbacks   []CleanupFunc
	cacheHits   uint64
	cacheMisses uint64
	cacheSizeMB float64
	evictions   uint64
	lastState   State
	lastTick    time.Time

	runMu  sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewManager constructs a stopped Manager.
func NewManager(cfg ManagerConfig) (*Manager, error) {
	if cfg.Monitor == nil {
		return nil, errors.New("resource manager requires a monitor")
	}
	cfg = cfg.withDefaults()
	return &Manager{
		cfg:     cfg,
		monitor: cfg.Monitor,
		pub:     cfg.Publisher,
		log:     cfg.Logger.With().Str("component", "resource_manager").Logger(),
		now:     time.Now,
		models:  make(map[string]*model),
	}, nil
}

// Monitor returns the monitor the manager polls.
func (m *Manager) Monitor() *Monitor { return m.monitor }

// Start launches the background remediation loop. Starting a running
// manager is a no-op.
func (m *Manager) Start() {
	m.runMu.Lock()
	defer m.runMu.Unlock()
	if m.cancel != nil {
		m.log.Warn().Msg("resource manager already running")
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.done = make(chan struct{})
	go m.loop(ctx, m.done)
	m.log.Info().Dur("interval", m.cfg.Interval).Dur("model_unload_timeout", m.cfg.ModelUnloadTimeout).Msg("resource manager started")
}

// Stop halts the loop and waits for an in-progress tick to finish or ctx to
// expire.
func (m *Manager) Stop(ctx context.Context) error {
	m.runMu.Lock()
	cancel, done := m.cancel, m.done
	m.cancel, m.done = nil, nil
	m.runMu.Unlock()
	if cancel == nil {
		m.log.Warn().Msg("resource manager already stopped")
		return nil
	}
	cancel()
	select {
	case <-done:
		m.log.Info().Msg("resource manager stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Manager) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.safeTick(ctx)
		}
	}
}

// safeTick keeps the loop alive across a panicking tick.
func (m *Manager) safeTick(ctx context.Context) {
	defer func() {
		if v := recover(); v != nil {
			m.log.Error().Interface("panic", v).Msg("remediation tick panicked")
		}
	}()
	m.Tick(ctx)
}

// RegisterMemoryCleanupCallback appends fn to the callbacks run during
// critical and emergency remediation, in registration order.
func (m *Manager) RegisterMemoryCleanupCallback(fn CleanupFunc) {
	if fn == nil {
		return
	}
	m.mu.Lock()
	m.callbacks = append(m.callbacks, fn)
	m.mu.Unlock()
}

// runCleanupCallbacks invokes every callback; a failing one is logged and
// the rest still run.
func (m *Manager) runCleanupCallbacks(ctx context.Context) {
	m.mu.Lock()
	cbs := append([]CleanupFunc(nil), m.callbacks...)
	m.mu.Unlock()
	for i, cb := range cbs {
		if err := callCleanup(ctx, cb); err != nil {
			callbackFailures.Inc()
			m.log.Error().Err(err).Int("callback", i).Msg("memory cleanup callback failed")
			m.pub.Publish(Event{Name: EventCleanupCallbackFailed, Fields: map[string]any{"index": i, "error": err.Error()}})
		}
	}
}

func callCleanup(ctx context.Context, cb CleanupFunc) (err error) {
	defer func() {
		if v := recover(); v != nil {
			err = panicError{v: v}
		}
	}()
	return cb(ctx)
}

// RecordCacheHit counts a hit on a cache managed by a consumer.
func (m *Manager) RecordCacheHit() {
	m.mu.Lock()
	m.cacheHits++
	m.mu.Unlock()
}

// RecordCacheMiss counts a cache miss.
func (m *Manager) RecordCacheMiss() {
	m.mu.Lock()
	m.cacheMisses++
	m.mu.Unlock()
}

// AddCacheUsage adjusts the logical cache size counter by mb (may be
// negative). The counter never drops below zero.
func (m *Manager) AddCacheUsage(mb float64) {
	m.mu.Lock()
	m.cacheSizeMB += mb
	if m.cacheSizeMB < 0 {
		m.cacheSizeMB = 0
	}
	v := m.cacheSizeMB
	m.mu.Unlock()
	cacheSize.Set(v)
}
