package resource

import (
	"time"

	"github.com/rs/zerolog"
)

// Defaults applied when corresponding ManagerConfig fields are unset.
const (
	defaultInterval           = 10 * time.Second
	defaultModelUnloadTimeout = 300 * time.Second
	defaultCacheLimitMB       = 2048
	cacheTrimRatio            = 0.8
)

// Free accelerator memory below which lower precisions are recommended.
const (
	fp4FreeMBBelow = 2048
	fp8FreeMBBelow = 6144
)

// ManagerConfig encapsulates all tunables for Manager construction.
type ManagerConfig struct {
	// Monitor is required.
	Monitor *Monitor
	// Interval between background remediation ticks.
	Interval time.Duration
	// ModelUnloadTimeout is the idle time after which non-high models are
	// unloaded regardless of pressure.
	ModelUnloadTimeout time.Duration
	// CacheLimitMB bounds the logical cache counter.
	CacheLimitMB float64
	// LowMemoryMode forces ShouldUseLowMemoryMode to report true.
	LowMemoryMode bool
	Publisher     EventPublisher
	Logger        *zerolog.Logger
}

func (c ManagerConfig) withDefaults() ManagerConfig {
	if c.Interval <= 0 {
		c.Interval = defaultInterval
	}
	if c.ModelUnloadTimeout <= 0 {
		c.ModelUnloadTimeout = defaultModelUnloadTimeout
	}
	if c.CacheLimitMB <= 0 {
		c.CacheLimitMB = defaultCacheLimitMB
	}
	if c.Publisher == nil {
		c.Publisher = noopPublisher{}
	}
	if c.Logger == nil {
		nop := zerolog.Nop()
		c.Logger = &nop
	}
	return c
}
