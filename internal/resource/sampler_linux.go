//go:build linux

package resource

import (
	"fmt"
	"sync"
	"syscall"

	"github.com/prometheus/procfs"
)

// ProcSampler reads host and process usage from /proc. CPU utilisation is
// computed from the delta between consecutive calls; the first call reports
// the average since boot.
type ProcSampler struct {
	fs       procfs.FS
	self     procfs.Proc
	diskPath string

	mu        sync.Mutex
	prevBusy  float64
	prevTotal float64
}

// NewProcSampler opens /proc. diskPath selects the filesystem reported by
// DiskPercent ("/" when empty).
func NewProcSampler(diskPath string) (*ProcSampler, error) {
	fs, err := procfs.NewDefaultFS()
	if err != nil {
		return nil, fmt.Errorf("open procfs: %w", err)
	}
	self, err := fs.Self()
	if err != nil {
		return nil, fmt.Errorf("procfs self: %w", err)
	}
	if diskPath == "" {
		diskPath = "/"
	}
	return &ProcSampler{fs: fs, self: self, diskPath: diskPath}, nil
}

func (s *ProcSampler) CPUPercent() (float64, error) {
	st, err := s.fs.Stat()
	if err != nil {
		return 0, fmt.Errorf("read /proc/stat: %w", err)
	}
	c := st.CPUTotal
	idle := c.Idle + c.Iowait
	total := c.User + c.Nice + c.System + c.Idle + c.Iowait + c.IRQ + c.SoftIRQ + c.Steal
	busy := total - idle

	s.mu.Lock()
	defer s.mu.Unlock()
	dBusy, dTotal := busy-s.prevBusy, total-s.prevTotal
	s.prevBusy, s.prevTotal = busy, total
	if dTotal <= 0 {
		return 0, nil
	}
	return dBusy / dTotal * 100, nil
}

func (s *ProcSampler) ProcessMemoryMB() (float64, error) {
	ps, err := s.self.Stat()
	if err != nil {
		return 0, fmt.Errorf("read process stat: %w", err)
	}
	return float64(ps.ResidentMemory()) / (1 << 20), nil
}

func (s *ProcSampler) SystemMemoryPercent() (float64, error) {
	mi, err := s.fs.Meminfo()
	if err != nil {
		return 0, fmt.Errorf("read /proc/meminfo: %w", err)
	}
	if mi.MemTotal == nil || mi.MemAvailable == nil || *mi.MemTotal == 0 {
		return 0, fmt.Errorf("meminfo missing MemTotal/MemAvailable")
	}
	total, avail := float64(*mi.MemTotal), float64(*mi.MemAvailable)
	return (total - avail) / total * 100, nil
}

func (s *ProcSampler) DiskPercent() (float64, error) {
	var st syscall.Statfs_t
	if err := syscall.Statfs(s.diskPath, &st); err != nil {
		return 0, fmt.Errorf("statfs %s: %w", s.diskPath, err)
	}
	bsize := uint64(st.Bsize)
	total := st.Blocks * bsize
	if total == 0 {
		return 0, nil
	}
	free := st.Bavail * bsize
	return float64(total-free) / float64(total) * 100, nil
}
