package resource

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestNewManagerRequiresMonitor(t *testing.T) {
	if _, err := NewManager(ManagerConfig{}); err == nil {
		t.Fatalf("expected error without monitor")
	}
}

func TestManagerDefaults(t *testing.T) {
	m, _ := newTestManager(t, &fakeSampler{}, nil, ManagerConfig{})
	if m.cfg.Interval != defaultInterval || m.cfg.ModelUnloadTimeout != defaultModelUnloadTimeout || m.cfg.CacheLimitMB != defaultCacheLimitMB {
		t.Fatalf("defaults not applied: %+v", m.cfg)
	}
}

func TestRegisterModelErrors(t *testing.T) {
	m, _ := newTestManager(t, &fakeSampler{}, nil, ManagerConfig{})
	registerTracked(t, m, "m1", ModelLow, time.Time{})
	err := m.RegisterModel(ModelSpec{ID: "m1", Priority: ModelLow})
	if !IsModelExists(err) {
		t.Fatalf("expected duplicate error, got %v", err)
	}
	if err := m.RegisterModel(ModelSpec{ID: ""}); err == nil {
		t.Fatalf("expected error for empty id")
	}
	if err := m.RegisterModel(ModelSpec{ID: "bad", Priority: ModelPriority(9)}); err == nil {
		t.Fatalf("expected error for invalid priority")
	}
	ctx := context.Background()
	if err := m.LoadModel(ctx, "nope"); !IsModelNotFound(err) {
		t.Fatalf("load: expected not found, got %v", err)
	}
	if err := m.UnloadModel(ctx, "nope"); !IsModelNotFound(err) {
		t.Fatalf("unload: expected not found, got %v", err)
	}
	if err := m.UpdateUsage("nope"); !IsModelNotFound(err) {
		t.Fatalf("usage: expected not found, got %v", err)
	}
	if err := m.UnregisterModel(ctx, "nope"); !IsModelNotFound(err) {
		t.Fatalf("unregister: expected not found, got %v", err)
	}
}

func TestLoadUnloadLifecycle(t *testing.T) {
	m, pub := newTestManager(t, &fakeSampler{}, nil, ManagerConfig{})
	tm := &trackedModel{}
	if err := m.RegisterModel(ModelSpec{ID: "m1", Priority: ModelMedium, Load: tm.load, Unload: tm.unload, MemoryMB: 512}); err != nil {
		t.Fatalf("register: %v", err)
	}
	ctx := context.Background()
	if isLoaded(t, m, "m1") {
		t.Fatalf("model should start unloaded")
	}
	if err := m.LoadModel(ctx, "m1"); err != nil {
		t.Fatalf("load: %v", err)
	}
	// loading a resident model does not call the callback again
	if err := m.LoadModel(ctx, "m1"); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if tm.loads != 1 || !isLoaded(t, m, "m1") {
		t.Fatalf("loads=%d loaded=%v", tm.loads, isLoaded(t, m, "m1"))
	}
	if len(pub.Named(EventModelLoaded)) != 1 {
		t.Fatalf("expected one model_loaded event")
	}
	if err := m.UpdateUsage("m1"); err != nil {
		t.Fatalf("usage: %v", err)
	}
	if info, _ := m.Model("m1"); info.UsageCount != 1 {
		t.Fatalf("usage count=%d", info.UsageCount)
	}
	if err := m.UnloadModel(ctx, "m1"); err != nil {
		t.Fatalf("unload: %v", err)
	}
	if isLoaded(t, m, "m1") || tm.unloadCount() != 1 {
		t.Fatalf("model should be unloaded once")
	}
	ev := pub.Named(EventModelUnloaded)
	if len(ev) != 1 || ev[0].ModelID != "m1" || ev[0].Fields["reason"] != "manual" {
		t.Fatalf("unexpected unload events: %+v", ev)
	}
	if err := m.LoadModel(ctx, "m1"); err != nil {
		t.Fatalf("load again: %v", err)
	}
	if err := m.UnregisterModel(ctx, "m1"); err != nil {
		t.Fatalf("unregister: %v", err)
	}
	if tm.unloadCount() != 2 {
		t.Fatalf("unregister should unload a resident model")
	}
	if _, ok := m.Model("m1"); ok {
		t.Fatalf("model still registered")
	}
}

func TestLoadFailureLeavesModelUnloaded(t *testing.T) {
	m, _ := newTestManager(t, &fakeSampler{}, nil, ManagerConfig{})
	boom := errors.New("out of memory")
	if err := m.RegisterModel(ModelSpec{ID: "m1", Load: func(context.Context) error { return boom }}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := m.LoadModel(context.Background(), "m1"); !errors.Is(err, boom) {
		t.Fatalf("expected load error, got %v", err)
	}
	if isLoaded(t, m, "m1") {
		t.Fatalf("failed load marked model loaded")
	}
}

func TestCriticalUnloadsLowKeepsHigh(t *testing.T) {
	s := &fakeSampler{memPct: 10}
	m, pub := newTestManager(t, s, nil, ManagerConfig{})
	high := registerTracked(t, m, "high", ModelHigh, time.Time{})
	low := registerTracked(t, m, "low", ModelLow, time.Time{})

	s.set(90)
	if st := m.Tick(context.Background()); st != StateCritical {
		t.Fatalf("state=%s want critical", st)
	}
	if isLoaded(t, m, "low") || low.unloadCount() != 1 {
		t.Fatalf("low model should be unloaded")
	}
	if !isLoaded(t, m, "high") || high.unloadCount() != 0 {
		t.Fatalf("high model should remain loaded")
	}
	if len(pub.Named(EventRemediation)) != 1 {
		t.Fatalf("expected one remediation event")
	}
}

func TestCriticalKeepsMedium(t *testing.T) {
	s := &fakeSampler{memPct: 90}
	m, _ := newTestManager(t, s, nil, ManagerConfig{})
	registerTracked(t, m, "idle", ModelIdle, time.Time{})
	registerTracked(t, m, "med", ModelMedium, time.Time{})
	m.Tick(context.Background())
	if isLoaded(t, m, "idle") {
		t.Fatalf("idle-priority model should be unloaded")
	}
	if !isLoaded(t, m, "med") {
		t.Fatalf("medium model should survive critical pressure")
	}
}

func TestEmergencyNeverUnloadsHigh(t *testing.T) {
	s := &fakeSampler{memPct: 99}
	m, _ := newTestManager(t, s, nil, ManagerConfig{})
	registerTracked(t, m, "high", ModelHigh, time.Time{})
	registerTracked(t, m, "med", ModelMedium, time.Time{})
	registerTracked(t, m, "low", ModelLow, time.Time{})
	m.AddCacheUsage(500)

	if st := m.Tick(context.Background()); st != StateEmergency {
		t.Fatalf("state=%s want emergency", st)
	}
	if !isLoaded(t, m, "high") {
		t.Fatalf("high model unloaded during emergency")
	}
	if isLoaded(t, m, "med") || isLoaded(t, m, "low") {
		t.Fatalf("medium and low models should be unloaded")
	}
	if st := m.Stats(); st.CacheSizeMB != 0 {
		t.Fatalf("emergency should reset cache, got %v", st.CacheSizeMB)
	}
}

func TestWarningOnlyClearsAcceleratorCache(t *testing.T) {
	s := &fakeSampler{memPct: 80}
	a := &fakeAccel{used: 100, total: 8000}
	m, _ := newTestManager(t, s, a, ManagerConfig{})
	registerTracked(t, m, "low", ModelLow, time.Time{})
	var called int
	m.RegisterMemoryCleanupCallback(func(context.Context) error { called++; return nil })

	if st := m.Tick(context.Background()); st != StateWarning {
		t.Fatalf("state=%s want warning", st)
	}
	if !isLoaded(t, m, "low") {
		t.Fatalf("warning must not unload models")
	}
	if called != 0 {
		t.Fatalf("warning must not run cleanup callbacks")
	}
	if a.clearCount() != 1 {
		t.Fatalf("clears=%d want 1", a.clearCount())
	}
}

func TestGPUPressureDrivesRemediation(t *testing.T) {
	s := &fakeSampler{memPct: 10}
	a := &fakeAccel{used: 7000, total: 8000}
	m, _ := newTestManager(t, s, a, ManagerConfig{})
	registerTracked(t, m, "low", ModelLow, time.Time{})
	if st := m.Tick(context.Background()); st != StateCritical {
		t.Fatalf("state=%s want critical from gpu memory", st)
	}
	if isLoaded(t, m, "low") {
		t.Fatalf("low model should be unloaded under gpu pressure")
	}
}

func TestIdleTimeoutUnloadsUnderNormalPressure(t *testing.T) {
	s := &fakeSampler{memPct: 10}
	m, _ := newTestManager(t, s, nil, ManagerConfig{ModelUnloadTimeout: 300 * time.Second})
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }
	stale := now.Add(-301 * time.Second)
	m1 := registerTracked(t, m, "m1", ModelLow, stale)
	registerTracked(t, m, "fresh", ModelLow, now.Add(-10*time.Second))
	registerTracked(t, m, "pinned", ModelHigh, stale)

	if st := m.Tick(context.Background()); st != StateNormal {
		t.Fatalf("state=%s want normal", st)
	}
	if isLoaded(t, m, "m1") || m1.unloadCount() != 1 {
		t.Fatalf("idle model should be unloaded")
	}
	if !isLoaded(t, m, "fresh") {
		t.Fatalf("recently used model should stay loaded")
	}
	if !isLoaded(t, m, "pinned") {
		t.Fatalf("high priority model is exempt from idle unload")
	}
}

func TestEvictionOrder(t *testing.T) {
	m, _ := newTestManager(t, &fakeSampler{}, nil, ManagerConfig{})
	base := time.Now()
	registerTracked(t, m, "low-new", ModelLow, base.Add(-1*time.Minute))
	registerTracked(t, m, "low-old", ModelLow, base.Add(-5*time.Minute))
	registerTracked(t, m, "idle", ModelIdle, base)
	registerTracked(t, m, "med", ModelMedium, base.Add(-time.Hour))
	registerTracked(t, m, "high", ModelHigh, base.Add(-time.Hour))

	got := m.unloadBelow(context.Background(), ModelHigh, "test")
	want := []string{"idle", "low-old", "low-new", "med"}
	if len(got) != len(want) {
		t.Fatalf("unloaded=%v want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("unloaded=%v want %v", got, want)
		}
	}
}

func TestUnloadFailureKeepsModelLoaded(t *testing.T) {
	s := &fakeSampler{memPct: 90}
	m, pub := newTestManager(t, s, nil, ManagerConfig{})
	tm := registerTracked(t, m, "low", ModelLow, time.Time{})
	tm.failNext = true
	m.Tick(context.Background())
	if !isLoaded(t, m, "low") {
		t.Fatalf("model with failed unload should stay loaded")
	}
	if len(pub.Named(EventModelUnloadFailed)) != 1 {
		t.Fatalf("expected unload failure event")
	}
	// the next tick retries
	m.Tick(context.Background())
	if isLoaded(t, m, "low") {
		t.Fatalf("retry should unload the model")
	}
}

func TestCleanupCallbacksIsolatedAndOrdered(t *testing.T) {
	s := &fakeSampler{memPct: 90}
	m, pub := newTestManager(t, s, nil, ManagerConfig{})
	var (
		mu    sync.Mutex
		order []int
	)
	mark := func(i int) {
		mu.Lock()
		order = append(order, i)
		mu.Unlock()
	}
	m.RegisterMemoryCleanupCallback(func(context.Context) error { mark(1); return nil })
	m.RegisterMemoryCleanupCallback(func(context.Context) error { mark(2); return errors.New("cache locked") })
	m.RegisterMemoryCleanupCallback(func(context.Context) error { mark(3); panic("bad callback") })
	m.RegisterMemoryCleanupCallback(func(context.Context) error { mark(4); return nil })
	m.RegisterMemoryCleanupCallback(nil)

	m.Tick(context.Background())
	mu.Lock()
	defer mu.Unlock()
	if len(order) != 4 {
		t.Fatalf("callbacks run=%v", order)
	}
	for i, v := range order {
		if v != i+1 {
			t.Fatalf("callbacks out of order: %v", order)
		}
	}
	if n := len(pub.Named(EventCleanupCallbackFailed)); n != 2 {
		t.Fatalf("failure events=%d want 2", n)
	}
}

func TestCacheTrim(t *testing.T) {
	m, _ := newTestManager(t, &fakeSampler{}, nil, ManagerConfig{CacheLimitMB: 1000})
	m.AddCacheUsage(900)
	m.Tick(context.Background())
	if st := m.Stats(); st.CacheSizeMB != 900 {
		t.Fatalf("cache under limit trimmed: %v", st.CacheSizeMB)
	}
	m.AddCacheUsage(300)
	m.Tick(context.Background())
	if st := m.Stats(); st.CacheSizeMB != 800 {
		t.Fatalf("cache=%v want 800", st.CacheSizeMB)
	}
	m.AddCacheUsage(-5000)
	if st := m.Stats(); st.CacheSizeMB != 0 {
		t.Fatalf("cache counter went negative: %v", st.CacheSizeMB)
	}
}

func TestCacheCountersAndStats(t *testing.T) {
	m, _ := newTestManager(t, &fakeSampler{memPct: 42}, nil, ManagerConfig{})
	registerTracked(t, m, "a", ModelLow, time.Time{})
	if err := m.RegisterModel(ModelSpec{ID: "b", MemoryMB: 50}); err != nil {
		t.Fatalf("register: %v", err)
	}
	m.RecordCacheHit()
	m.RecordCacheHit()
	m.RecordCacheMiss()
	st := m.Stats()
	if st.CacheHits != 2 || st.CacheMisses != 1 {
		t.Fatalf("hits=%d misses=%d", st.CacheHits, st.CacheMisses)
	}
	if st.TotalModels != 2 || st.LoadedModels != 1 || st.LoadedMemoryMB != 100 {
		t.Fatalf("unexpected model stats: %+v", st)
	}
	if st.Usage.SystemMemoryPercent != 42 {
		t.Fatalf("usage not sampled: %+v", st.Usage)
	}
}

func TestOptimalPrecision(t *testing.T) {
	cases := []struct {
		name  string
		accel *fakeAccel
		want  Precision
	}{
		{"no accelerator", nil, PrecisionFP16},
		{"emergency", &fakeAccel{used: 7800, total: 8000}, PrecisionFP4},
		{"critical", &fakeAccel{used: 7000, total: 8000}, PrecisionFP8},
		{"plenty free", &fakeAccel{used: 1000, total: 8000}, PrecisionFP16},
		{"moderate free", &fakeAccel{used: 3000, total: 8000}, PrecisionFP8},
		{"little free", &fakeAccel{used: 1000, total: 2500}, PrecisionFP4},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			var a Accelerator
			if c.accel != nil {
				a = c.accel
			}
			m, _ := newTestManager(t, &fakeSampler{}, a, ManagerConfig{})
			if got := m.OptimalPrecision(); got != c.want {
				t.Fatalf("precision=%s want %s", got, c.want)
			}
		})
	}
}

func TestShouldUseLowMemoryMode(t *testing.T) {
	m, _ := newTestManager(t, &fakeSampler{memPct: 10}, nil, ManagerConfig{LowMemoryMode: true})
	if !m.ShouldUseLowMemoryMode() {
		t.Fatalf("configured low memory mode ignored")
	}
	s := &fakeSampler{memPct: 10}
	m, _ = newTestManager(t, s, nil, ManagerConfig{})
	if m.ShouldUseLowMemoryMode() {
		t.Fatalf("low memory mode under normal pressure")
	}
	s.set(90)
	if !m.ShouldUseLowMemoryMode() {
		t.Fatalf("low memory mode expected under critical pressure")
	}
}

func TestOptimizeResourcesIgnoresRateLimit(t *testing.T) {
	s := &fakeSampler{memPct: 90}
	mon, err := NewMonitor(MonitorConfig{Sampler: s, MinSampleInterval: time.Hour})
	if err != nil {
		t.Fatalf("monitor: %v", err)
	}
	m, err := NewManager(ManagerConfig{Monitor: mon})
	if err != nil {
		t.Fatalf("manager: %v", err)
	}
	registerTracked(t, m, "low", ModelLow, time.Time{})
	mon.State(Memory) // consume the token
	if st := m.OptimizeResources(context.Background()); st != StateCritical {
		t.Fatalf("state=%s want critical", st)
	}
	if isLoaded(t, m, "low") {
		t.Fatalf("optimize should unload low model")
	}
}

func TestStartStopIdempotent(t *testing.T) {
	s := &fakeSampler{memPct: 90}
	m, _ := newTestManager(t, s, nil, ManagerConfig{Interval: 10 * time.Millisecond})
	registerTracked(t, m, "low", ModelLow, time.Time{})
	m.Start()
	m.Start()
	deadline := time.Now().Add(2 * time.Second)
	for isLoaded(t, m, "low") {
		if time.Now().After(deadline) {
			t.Fatalf("background loop never remediated")
		}
		time.Sleep(5 * time.Millisecond)
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := m.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if err := m.Stop(ctx); err != nil {
		t.Fatalf("second stop: %v", err)
	}
}

func TestTickRemediatesAfterConsumerQueries(t *testing.T) {
	s := &fakeSampler{memPct: 90}
	a := &fakeAccel{used: 1000, total: 10000}
	mon, err := NewMonitor(MonitorConfig{Sampler: s, Accelerator: a})
	if err != nil {
		t.Fatalf("monitor: %v", err)
	}
	m, err := NewManager(ManagerConfig{Monitor: mon})
	if err != nil {
		t.Fatalf("manager: %v", err)
	}
	low := registerTracked(t, m, "low", ModelLow, time.Now())

	if !m.ShouldUseLowMemoryMode() {
		t.Fatalf("low memory mode expected at 90%% memory")
	}
	m.OptimalPrecision()
	if st := m.Tick(context.Background()); st != StateCritical {
		t.Fatalf("tick state=%s want critical", st)
	}
	if isLoaded(t, m, "low") || low.unloadCount() != 1 {
		t.Fatalf("low model should be unloaded by the tick")
	}
}
