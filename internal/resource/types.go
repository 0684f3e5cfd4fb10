package resource

import (
	"fmt"
	"strings"
	"time"
)

// ResourceType names a monitored resource.
type ResourceType string

const (
	Memory    ResourceType = "memory"
	CPU       ResourceType = "cpu"
	GPUMemory ResourceType = "gpu_memory"
	Disk      ResourceType = "disk"
)

// ResourceTypes lists every monitored resource.
var ResourceTypes = []ResourceType{Memory, CPU, GPUMemory, Disk}

// State is the pressure classification of a resource. Values are ordered.
type State int

const (
	StateNormal State = iota
	StateWarning
	StateCritical
	StateEmergency
)

func (s State) String() string {
	switch s {
	case StateNormal:
		return "normal"
	case StateWarning:
		return "warning"
	case StateCritical:
		return "critical"
	case StateEmergency:
		return "emergency"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Threshold holds the usage percentages at which a resource enters each
// pressure state.
type Threshold struct {
	Warning   float64 `json:"warning" yaml:"warning" toml:"warning"`
	Critical  float64 `json:"critical" yaml:"critical" toml:"critical"`
	Emergency float64 `json:"emergency" yaml:"emergency" toml:"emergency"`
}

// Validate enforces warning <= critical <= emergency.
func (t Threshold) Validate() error {
	if t.Warning < 0 || t.Emergency > 100 {
		return fmt.Errorf("threshold out of range: %+v", t)
	}
	if t.Warning > t.Critical || t.Critical > t.Emergency {
		return fmt.Errorf("threshold must satisfy warning <= critical <= emergency: %+v", t)
	}
	return nil
}

// DefaultThresholds returns the built-in thresholds per resource type.
func DefaultThresholds() map[ResourceType]Threshold {
	return map[ResourceType]Threshold{
		Memory:    {Warning: 75, Critical: 85, Emergency: 95},
		CPU:       {Warning: 80, Critical: 90, Emergency: 95},
		GPUMemory: {Warning: 75, Critical: 85, Emergency: 95},
		Disk:      {Warning: 80, Critical: 90, Emergency: 95},
	}
}

// Classify maps usage to a State, testing emergency first.
func Classify(usage float64, t Threshold) State {
	switch {
	case usage >= t.Emergency:
		return StateEmergency
	case usage >= t.Critical:
		return StateCritical
	case usage >= t.Warning:
		return StateWarning
	default:
		return StateNormal
	}
}

// ModelPriority orders eviction. Lower values are evicted first.
type ModelPriority int

const (
	ModelIdle ModelPriority = iota
	ModelLow
	ModelMedium
	ModelHigh
)

func (p ModelPriority) String() string {
	switch p {
	case ModelIdle:
		return "idle"
	case ModelLow:
		return "low"
	case ModelMedium:
		return "medium"
	case ModelHigh:
		return "high"
	default:
		return fmt.Sprintf("model_priority(%d)", int(p))
	}
}

// ParseModelPriority maps a case-insensitive name to a ModelPriority.
func ParseModelPriority(s string) (ModelPriority, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "idle":
		return ModelIdle, nil
	case "low":
		return ModelLow, nil
	case "medium", "":
		return ModelMedium, nil
	case "high":
		return ModelHigh, nil
	}
	return 0, fmt.Errorf("unknown model priority %q", s)
}

// Precision is a numeric precision recommendation for model loading.
type Precision string

const (
	PrecisionFP4  Precision = "fp4"
	PrecisionFP8  Precision = "fp8"
	PrecisionFP16 Precision = "fp16"
)

// Usage is one measurement of every resource. GPU fields are only
// meaningful when HasGPU is set.
type Usage struct {
	CPUPercent          float64
	ProcessMemoryMB     float64
	SystemMemoryPercent float64
	DiskPercent         float64
	HasGPU              bool
	GPUMemoryPercent    float64
	GPUMemoryUsedMB     float64
	GPUMemoryTotalMB    float64
	SampledAt           time.Time
}
