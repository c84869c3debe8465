package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"inferd/internal/common/fsutil"
	"inferd/pkg/types"
)

// Known quantization markers, most specific first so "q4_k_m" is not
// reported as "q4_0"'s neighbor.
var quantMarkers = []string{
	"q8_0", "q6_k", "q5_k_m", "q5_k_s", "q5_1", "q5_0",
	"q4_k_m", "q4_k_s", "q4_1", "q4_0",
	"q3_k_l", "q3_k_m", "q3_k_s", "q2_k",
	"bf16", "f16", "f32",
}

var familyMarkers = []string{"tinyllama", "llama", "mistral", "phi", "qwen", "gemma"}

// LoadDir scans a directory for *.gguf files and builds a registry from filenames.
// ID is the full filename (including extension); Path is the absolute file path.
// Quant and family are sniffed from the filename, empty when unrecognizable.
func LoadDir(dir string) ([]types.Model, error) {
	base, err := fsutil.ExpandHome(dir)
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(base)
	if err != nil {
		return nil, fmt.Errorf("abs path: %w", err)
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
		// Full filename as ID (e.g., "llama-3.1-8b-q4_k_m.gguf")
		models = append(models, types.Model{
			ID:     name,
			Name:   name,
			Path:   filepath.Join(abs, name),
			Quant:  sniffQuant(name),
			Family: sniffFamily(name),
		})
	}
	return models, nil
}

// Find returns the model with the given id, nil when absent.
func Find(models []types.Model, id string) *types.Model {
	for i := range models {
		if models[i].ID == id {
			return &models[i]
		}
	}
	return nil
}

func sniffQuant(name string) string {
	lower := strings.ToLower(name)
	for _, m := range quantMarkers {
		if strings.Contains(lower, m) {
			return strings.ToUpper(m)
		}
	}
	return ""
}

func sniffFamily(name string) string {
	lower := strings.ToLower(name)
	for _, m := range familyMarkers {
		if strings.Contains(lower, m) {
			return m
		}
	}
	return ""
}
