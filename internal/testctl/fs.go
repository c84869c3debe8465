package testctl

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// firstGGUF returns the name of the first .gguf file in dir.
func firstGGUF(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasSuffix(strings.ToLower(name), ".gguf") {
			return name, nil
		}
	}
	return "", fmt.Errorf("no .gguf models found in %s", dir)
}

// modelsDir is the default host model directory the server also scans.
func modelsDir() string {
	return filepath.Join(homeDir(), "models", "llm")
}

func hasHostModels() bool {
	entries, err := os.ReadDir(modelsDir())
	if err != nil {
		return false
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.HasSuffix(strings.ToLower(e.Name()), ".gguf") {
			return true
		}
	}
	return false
}

func homeDir() string {
	if h := os.Getenv("HOME"); h != "" {
		return h
	}
	h, _ := os.UserHomeDir()
	return h
}
