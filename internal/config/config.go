package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/multierr"

	"agentd/internal/resource"
)

// Config holds runtime parameters for the daemon.
type Config struct {
	Addr      string `json:"addr" yaml:"addr" toml:"addr"`
	ModelsDir string `json:"models_dir" yaml:"models_dir" toml:"models_dir"`
	// ModelPriority applies to every model found in ModelsDir.
	ModelPriority string `json:"model_priority" yaml:"model_priority" toml:"model_priority"`
	// PreloadModels are loaded at startup as GPU tasks.
	PreloadModels []string        `json:"preload_models" yaml:"preload_models" toml:"preload_models"`
	Log           LogConfig       `json:"log" yaml:"log" toml:"log"`
	Scheduler     SchedulerConfig `json:"scheduler" yaml:"scheduler" toml:"scheduler"`
	Resources     ResourceConfig  `json:"resources" yaml:"resources" toml:"resources"`
	CORS          CORSConfig      `json:"cors" yaml:"cors" toml:"cors"`
	// ShutdownTimeoutSeconds bounds graceful shutdown of all services.
	ShutdownTimeoutSeconds int `json:"shutdown_timeout_seconds" yaml:"shutdown_timeout_seconds" toml:"shutdown_timeout_seconds"`
}

// LogConfig selects level and output format ("console" or "json").
type LogConfig struct {
	Level  string `json:"level" yaml:"level" toml:"level"`
	Format string `json:"format" yaml:"format" toml:"format"`
}

type SchedulerConfig struct {
	Workers       int `json:"workers" yaml:"workers" toml:"workers"`
	CPUPoolSize   int `json:"cpu_pool_size" yaml:"cpu_pool_size" toml:"cpu_pool_size"`
	MaxQueueDepth int `json:"max_queue_depth" yaml:"max_queue_depth" toml:"max_queue_depth"`
	// CleanupIntervalSeconds < 0 disables task garbage collection.
	CleanupIntervalSeconds int `json:"cleanup_interval_seconds" yaml:"cleanup_interval_seconds" toml:"cleanup_interval_seconds"`
	RetentionSeconds       int `json:"retention_seconds" yaml:"retention_seconds" toml:"retention_seconds"`
}

type ResourceConfig struct {
	IntervalSeconds           int `json:"interval_seconds" yaml:"interval_seconds" toml:"interval_seconds"`
	ModelUnloadTimeoutSeconds int `json:"model_unload_timeout_seconds" yaml:"model_unload_timeout_seconds" toml:"model_unload_timeout_seconds"`
	// MinSampleIntervalMS rate-limits pressure sampling; negative disables.
	MinSampleIntervalMS int     `json:"min_sample_interval_ms" yaml:"min_sample_interval_ms" toml:"min_sample_interval_ms"`
	CacheLimitMB        float64 `json:"cache_limit_mb" yaml:"cache_limit_mb" toml:"cache_limit_mb"`
	LowMemoryMode       bool    `json:"low_memory_mode" yaml:"low_memory_mode" toml:"low_memory_mode"`
	// DiskPath is the filesystem whose usage is monitored.
	DiskPath string `json:"disk_path" yaml:"disk_path" toml:"disk_path"`
	// GPU enables nvidia-smi probing.
	GPU        bool                          `json:"gpu" yaml:"gpu" toml:"gpu"`
	Thresholds map[string]resource.Threshold `json:"thresholds" yaml:"thresholds" toml:"thresholds"`
}

// CORS configuration (opt-in). If disabled, no CORS middleware is added.
type CORSConfig struct {
	Enabled        bool     `json:"enabled" yaml:"enabled" toml:"enabled"`
	AllowedOrigins []string `json:"allowed_origins" yaml:"allowed_origins" toml:"allowed_origins"`
	AllowedMethods []string `json:"allowed_methods" yaml:"allowed_methods" toml:"allowed_methods"`
	AllowedHeaders []string `json:"allowed_headers" yaml:"allowed_headers" toml:"allowed_headers"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		Addr:          ":8080",
		ModelsDir:     "~/models/llm",
		ModelPriority: "medium",
		Log:           LogConfig{Level: "info", Format: "console"},
		Scheduler: SchedulerConfig{
			Workers:                4,
			CPUPoolSize:            4,
			MaxQueueDepth:          1024,
			CleanupIntervalSeconds: 300,
			RetentionSeconds:       3600,
		},
		Resources: ResourceConfig{
			IntervalSeconds:           10,
			ModelUnloadTimeoutSeconds: 300,
			MinSampleIntervalMS:       1000,
			CacheLimitMB:              2048,
			DiskPath:                  "/",
			GPU:                       true,
		},
		ShutdownTimeoutSeconds: 10,
	}
}

var validLevels = map[string]bool{"trace": true, "debug": true, "info": true, "warn": true, "error": true, "disabled": true}

// Validate reports every invalid field.
func (c Config) Validate() error {
	var errs error
	if strings.TrimSpace(c.Addr) == "" {
		errs = multierr.Append(errs, errors.New("addr is required"))
	}
	if _, err := resource.ParseModelPriority(c.ModelPriority); err != nil {
		errs = multierr.Append(errs, err)
	}
	if !validLevels[strings.ToLower(c.Log.Level)] {
		errs = multierr.Append(errs, fmt.Errorf("unknown log level %q", c.Log.Level))
	}
	if f := strings.ToLower(c.Log.Format); f != "console" && f != "json" {
		errs = multierr.Append(errs, fmt.Errorf("unknown log format %q", c.Log.Format))
	}
	if c.Scheduler.Workers <= 0 {
		errs = multierr.Append(errs, errors.New("scheduler.workers must be positive"))
	}
	if c.Scheduler.CPUPoolSize <= 0 {
		errs = multierr.Append(errs, errors.New("scheduler.cpu_pool_size must be positive"))
	}
	if c.Scheduler.MaxQueueDepth <= 0 {
		errs = multierr.Append(errs, errors.New("scheduler.max_queue_depth must be positive"))
	}
	if c.Scheduler.RetentionSeconds <= 0 {
		errs = multierr.Append(errs, errors.New("scheduler.retention_seconds must be positive"))
	}
	if c.Resources.IntervalSeconds <= 0 {
		errs = multierr.Append(errs, errors.New("resources.interval_seconds must be positive"))
	}
	if c.Resources.ModelUnloadTimeoutSeconds <= 0 {
		errs = multierr.Append(errs, errors.New("resources.model_unload_timeout_seconds must be positive"))
	}
	if c.Resources.CacheLimitMB < 0 {
		errs = multierr.Append(errs, errors.New("resources.cache_limit_mb must not be negative"))
	}
	for name, th := range c.Resources.Thresholds {
		if !knownResource(name) {
			errs = multierr.Append(errs, fmt.Errorf("unknown resource type %q in thresholds", name))
			continue
		}
		if err := th.Validate(); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("thresholds.%s: %w", name, err))
		}
	}
	if c.ShutdownTimeoutSeconds <= 0 {
		errs = multierr.Append(errs, errors.New("shutdown_timeout_seconds must be positive"))
	}
	return errs
}

func knownResource(name string) bool {
	for _, rt := range resource.ResourceTypes {
		if string(rt) == name {
			return true
		}
	}
	return false
}

// ResourceThresholds converts configured thresholds to monitor overrides.
func (c ResourceConfig) ResourceThresholds() map[resource.ResourceType]resource.Threshold {
	if len(c.Thresholds) == 0 {
		return nil
	}
	out := make(map[resource.ResourceType]resource.Threshold, len(c.Thresholds))
	for name, th := range c.Thresholds {
		out[resource.ResourceType(name)] = th
	}
	return out
}

func (c SchedulerConfig) CleanupInterval() time.Duration {
	if c.CleanupIntervalSeconds < 0 {
		return -1
	}
	return time.Duration(c.CleanupIntervalSeconds) * time.Second
}

func (c SchedulerConfig) Retention() time.Duration {
	return time.Duration(c.RetentionSeconds) * time.Second
}

func (c ResourceConfig) Interval() time.Duration {
	return time.Duration(c.IntervalSeconds) * time.Second
}

func (c ResourceConfig) ModelUnloadTimeout() time.Duration {
	return time.Duration(c.ModelUnloadTimeoutSeconds) * time.Second
}

// MinSampleInterval returns -1 when sampling is unthrottled.
func (c ResourceConfig) MinSampleInterval() time.Duration {
	if c.MinSampleIntervalMS < 0 {
		return -1
	}
	return time.Duration(c.MinSampleIntervalMS) * time.Millisecond
}

func (c Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutSeconds) * time.Second
}
