//go:build !linux

package resource

import "errors"

var errUnsupported = errors.New("resource sampling is only supported on linux")

// ProcSampler is unavailable off linux; every measurement fails.
type ProcSampler struct{}

// NewProcSampler returns a sampler whose measurements always fail.
func NewProcSampler(string) (*ProcSampler, error) { return &ProcSampler{}, nil }

func (*ProcSampler) CPUPercent() (float64, error)          { return 0, errUnsupported }
func (*ProcSampler) ProcessMemoryMB() (float64, error)     { return 0, errUnsupported }
func (*ProcSampler) SystemMemoryPercent() (float64, error) { return 0, errUnsupported }
func (*ProcSampler) DiskPercent() (float64, error)         { return 0, errUnsupported }
