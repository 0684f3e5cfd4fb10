package resource

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// fakeSampler returns configurable readings.
type fakeSampler struct {
	mu                          sync.Mutex
	cpu, procMB, memPct, diskPc float64
	err                         error
	calls                       int
}

func (f *fakeSampler) set(memPct float64) {
	f.mu.Lock()
	f.memPct = memPct
	f.mu.Unlock()
}

func (f *fakeSampler) read(v *float64) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return 0, f.err
	}
	return *v, nil
}

func (f *fakeSampler) CPUPercent() (float64, error)          { return f.read(&f.cpu) }
func (f *fakeSampler) ProcessMemoryMB() (float64, error)     { return f.read(&f.procMB) }
func (f *fakeSampler) SystemMemoryPercent() (float64, error) { return f.read(&f.memPct) }
func (f *fakeSampler) DiskPercent() (float64, error)         { return f.read(&f.diskPc) }

func (f *fakeSampler) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// fakeAccel reports fixed device memory and counts cache clears.
type fakeAccel struct {
	mu          sync.Mutex
	used, total float64
	clears      int
	err         error
}

func (a *fakeAccel) MemoryMB(context.Context) (float64, float64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return 0, 0, a.err
	}
	return a.used, a.total, nil
}

func (a *fakeAccel) ClearCache(context.Context) error {
	a.mu.Lock()
	a.clears++
	a.mu.Unlock()
	return nil
}

func (a *fakeAccel) clearCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.clears
}

func (a *fakeAccel) setUsed(used float64) {
	a.mu.Lock()
	a.used = used
	a.mu.Unlock()
}

// newTestManager builds a manager with an unthrottled monitor over the fakes.
func newTestManager(t *testing.T, s *fakeSampler, a Accelerator, cfg ManagerConfig) (*Manager, *MemoryPublisher) {
	t.Helper()
	mon, err := NewMonitor(MonitorConfig{Sampler: s, Accelerator: a, MinSampleInterval: -1})
	if err != nil {
		t.Fatalf("monitor: %v", err)
	}
	pub := NewMemoryPublisher()
	cfg.Monitor = mon
	cfg.Publisher = pub
	m, err := NewManager(cfg)
	if err != nil {
		t.Fatalf("manager: %v", err)
	}
	return m, pub
}

// trackedModel registers a loaded model whose unload flips a flag.
type trackedModel struct {
	mu       sync.Mutex
	unloads  int
	loads    int
	failNext bool
}

func (tm *trackedModel) load(context.Context) error {
	tm.mu.Lock()
	tm.loads++
	tm.mu.Unlock()
	return nil
}

func (tm *trackedModel) unload(context.Context) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	if tm.failNext {
		tm.failNext = false
		return errors.New("unload refused")
	}
	tm.unloads++
	return nil
}

func (tm *trackedModel) unloadCount() int {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	return tm.unloads
}

func registerTracked(t *testing.T, m *Manager, id string, p ModelPriority, lastUsed time.Time) *trackedModel {
	t.Helper()
	tm := &trackedModel{}
	if err := m.RegisterModel(ModelSpec{ID: id, Type: "llm", Priority: p, Load: tm.load, Unload: tm.unload, MemoryMB: 100, Loaded: true}); err != nil {
		t.Fatalf("register %s: %v", id, err)
	}
	if !lastUsed.IsZero() {
		m.mu.Lock()
		m.models[id].lastUsed = lastUsed
		m.mu.Unlock()
	}
	return tm
}

func isLoaded(t *testing.T, m *Manager, id string) bool {
	t.Helper()
	info, ok := m.Model(id)
	if !ok {
		t.Fatalf("model %s missing", id)
	}
	return info.Loaded
}
