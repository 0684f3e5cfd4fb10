package scheduler

import (
	"time"

	"github.com/rs/zerolog"
)

// Defaults applied when corresponding Config fields are unset.
const (
	defaultWorkers         = 4
	defaultCPUPoolSize     = 4
	defaultMaxQueueDepth   = 1024
	defaultPollInterval    = time.Second
	defaultCleanupInterval = 5 * time.Minute
	defaultRetention       = time.Hour
)

// Config encapsulates all tunables for Scheduler construction.
type Config struct {
	// Workers is the number of worker loops started when Start is given 0.
	Workers int
	// CPUPoolSize bounds concurrently executing CPU-bound task bodies.
	CPUPoolSize int
	// MaxQueueDepth bounds pending tasks; submissions beyond it fail with a
	// queue-full error.
	MaxQueueDepth int
	// PollInterval is how long an idle worker waits before re-checking the
	// queue and the running flag.
	PollInterval time.Duration
	// CleanupInterval and Retention drive automatic garbage collection of
	// terminal tasks. A negative CleanupInterval disables it.
	CleanupInterval time.Duration
	Retention       time.Duration
	Logger          *zerolog.Logger
}

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = defaultWorkers
	}
	if c.CPUPoolSize <= 0 {
		c.CPUPoolSize = defaultCPUPoolSize
	}
	if c.MaxQueueDepth <= 0 {
		c.MaxQueueDepth = defaultMaxQueueDepth
	}
	if c.PollInterval <= 0 {
		c.PollInterval = defaultPollInterval
	}
	if c.CleanupInterval == 0 {
		c.CleanupInterval = defaultCleanupInterval
	}
	if c.Retention <= 0 {
		c.Retention = defaultRetention
	}
	if c.Logger == nil {
		nop := zerolog.Nop()
		c.Logger = &nop
	}
	return c
}
