package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"agentd/internal/common/fsutil"
	"agentd/pkg/types"
)

// quantRe matches llama.cpp quantization tags such as Q4_K_M, Q8_0 or F16.
var quantRe = regexp.MustCompile(`(?i)(?:^|[-._])((?:iq|q)\d+(?:_[a-z0-9]+)*|bf16|f16|f32)$`)

// GGUFScanner discovers *.gguf model files in a directory.
type GGUFScanner struct{}

func NewGGUFScanner() *GGUFScanner { return &GGUFScanner{} }

// Scan lists *.gguf files in dir, non-recursively and ordered by ID.
// ID is the full filename (including extension); Path is the absolute file path.
func (s *GGUFScanner) Scan(dir string) ([]types.Model, error) {
	abs, err := fsutil.Dir(dir)
	if err != nil {
		return nil, fmt.Errorf("models dir: %w", err)
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, fmt.Errorf("read dir: %w", err)
	}
	var models []types.Model
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(strings.ToLower(name), ".gguf") {
			continue
		}
		m := parseName(name)
		m.Path = filepath.Join(abs, name)
		m.SizeMB = estimateMB(e)
		models = append(models, m)
	}
	sort.Slice(models, func(i, j int) bool { return models[i].ID < models[j].ID })
	return models, nil
}

// LoadDir scans a directory for *.gguf files.
func LoadDir(dir string) ([]types.Model, error) {
	return NewGGUFScanner().Scan(dir)
}

// parseName derives name, quantization and family from a filename like
// "llama-3.1-8b-instruct.Q4_K_M.gguf".
func parseName(file string) types.Model {
	stem := file[:len(file)-len(filepath.Ext(file))]
	m := types.Model{ID: file, Name: stem}
	if loc := quantRe.FindStringSubmatchIndex(stem); loc != nil {
		m.Quant = strings.ToUpper(stem[loc[2]:loc[3]])
		m.Name = strings.TrimRight(stem[:loc[0]], "-._")
		if m.Name == "" {
			m.Name = stem
		}
	}
	family := strings.ToLower(m.Name)
	if i := strings.IndexAny(family, "-._ "); i > 0 {
		family = family[:i]
	}
	m.Family = strings.TrimRight(family, "0123456789")
	return m
}

// estimateMB uses the file size as the memory estimate, never below 1MB so
// an unreadable entry is not free.
func estimateMB(e os.DirEntry) int64 {
	fi, err := e.Info()
	if err != nil {
		return 1
	}
	mb := fi.Size() / (1024 * 1024)
	if mb <= 0 {
		mb = 1
	}
	return mb
}
