package resource

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// NvidiaSMI queries device memory through the nvidia-smi binary. Memory is
// summed across all visible devices.
type NvidiaSMI struct {
	Bin string
	// Clear, when set, is invoked by ClearCache to release caches held by
	// the loaded models.
	Clear func(ctx context.Context) error
}

// DetectNvidiaSMI returns an accelerator when nvidia-smi is on PATH.
func DetectNvidiaSMI() (*NvidiaSMI, bool) {
	bin, err := exec.LookPath("nvidia-smi")
	if err != nil {
		return nil, false
	}
	return &NvidiaSMI{Bin: bin}, true
}

func (n *NvidiaSMI) MemoryMB(ctx context.Context) (used, total float64, err error) {
	bin := n.Bin
	if bin == "" {
		bin = "nvidia-smi"
	}
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, bin, "--query-gpu=memory.used,memory.total", "--format=csv,noheader,nounits")
	cmd.Stdout, cmd.Stderr = &stdout, &stderr
	if err := cmd.Run(); err != nil {
		return 0, 0, fmt.Errorf("nvidia-smi: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return parseNvidiaSMI(stdout.Bytes())
}

func (n *NvidiaSMI) ClearCache(ctx context.Context) error {
	if n.Clear == nil {
		return nil
	}
	return n.Clear(ctx)
}

// parseNvidiaSMI parses "used, total" lines in MiB.
func parseNvidiaSMI(out []byte) (used, total float64, err error) {
	sc := bufio.NewScanner(bytes.NewReader(out))
	devices := 0
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		parts := strings.Split(line, ",")
		if len(parts) != 2 {
			return 0, 0, fmt.Errorf("unexpected nvidia-smi line %q", line)
		}
		u, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
		if err != nil {
			return 0, 0, fmt.Errorf("parse used memory: %w", err)
		}
		t, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if err != nil {
			return 0, 0, fmt.Errorf("parse total memory: %w", err)
		}
		used += u
		total += t
		devices++
	}
	if err := sc.Err(); err != nil {
		return 0, 0, err
	}
	if devices == 0 {
		return 0, 0, ErrNoAccelerator
	}
	return used, total, nil
}
