package resource

// OptimalPrecision recommends a load precision from GPU pressure and free
// device memory. Without an accelerator it recommends fp16.
func (m *Manager) OptimalPrecision() Precision {
	switch m.monitor.State(GPUMemory) {
	case StateEmergency:
		return PrecisionFP4
	case StateCritical:
		return PrecisionFP8
	}
	free, ok := m.monitor.GPUFreeMB()
	if !ok {
		return PrecisionFP16
	}
	switch {
	case free < fp4FreeMBBelow:
		return PrecisionFP4
	case free < fp8FreeMBBelow:
		return PrecisionFP8
	default:
		return PrecisionFP16
	}
}

// ShouldUseLowMemoryMode reports whether consumers should trade speed for
// memory: when configured, or when memory or GPU memory is critical or
// worse.
func (m *Manager) ShouldUseLowMemoryMode() bool {
	if m.cfg.LowMemoryMode {
		return true
	}
	return m.monitor.State(Memory) >= StateCritical || m.monitor.State(GPUMemory) >= StateCritical
}
