package registry

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

func TestLoadDirFiltersGGUF(t *testing.T) {
	dir := t.TempDir()
	files := []string{
		"a.gguf",
		"b.GGUF", // case-insensitive
		"not-model.txt",
		"model.bin",
	}
	for _, f := range files {
		if err := os.WriteFile(filepath.Join(dir, f), []byte(""), 0o644); err != nil {
			t.Fatalf("write temp file: %v", err)
		}
	}
	models, err := LoadDir(dir)
	if err != nil {
		t.Fatalf("scan error: %v", err)
	}
	if len(models) != 2 {
		t.Fatalf("expected 2 models, got %d", len(models))
	}
	for _, m := range models {
		if !strings.HasSuffix(strings.ToLower(m.ID), ".gguf") {
			t.Fatalf("id not gguf: %s", m.ID)
		}
		if !filepath.IsAbs(m.Path) {
			t.Fatalf("path not absolute: %s", m.Path)
		}
	}
}

func TestLoadDirExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skipf("no home dir on this platform: %v", err)
	}
	hTmp, err := os.MkdirTemp(home, "inferd-registry-*")
	if err != nil {
		t.Skipf("cannot create temp under home: %v", err)
	}
	defer os.RemoveAll(hTmp)
	if err := os.WriteFile(filepath.Join(hTmp, "x.gguf"), []byte(""), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	var tildePath string
	if runtime.GOOS == "windows" {
		tildePath = filepath.Join("~", filepath.Base(hTmp))
	} else {
		tildePath = "~/" + filepath.Base(hTmp)
	}
	models, err := LoadDir(tildePath)
	if err != nil {
		t.Fatalf("scan error: %v", err)
	}
	if len(models) != 1 || models[0].ID != "x.gguf" {
		t.Fatalf("unexpected models: %+v", models)
	}
}

func TestSniffQuant(t *testing.T) {
	cases := []struct {
		name string
		want string
	}{
		{"llama-3.1-8b-q4_k_m.gguf", "Q4_K_M"},
		{"TinyLlama.Q4_K_M.gguf", "Q4_K_M"},
		{"mistral-7b-Q5_0.gguf", "Q5_0"},
		{"phi-2.q8_0.gguf", "Q8_0"},
		{"model-f16.gguf", "F16"},
		{"plain.gguf", ""},
	}
	for _, tc := range cases {
		if got := sniffQuant(tc.name); got != tc.want {
			t.Fatalf("sniffQuant(%q) = %q, want %q", tc.name, got, tc.want)
		}
	}
}

func TestSniffFamily(t *testing.T) {
	if got := sniffFamily("TinyLlama.Q4_K_M.gguf"); got != "tinyllama" {
		t.Fatalf("family = %q, want tinyllama", got)
	}
	if got := sniffFamily("mistral-7b.gguf"); got != "mistral" {
		t.Fatalf("family = %q, want mistral", got)
	}
	if got := sniffFamily("unknown.gguf"); got != "" {
		t.Fatalf("family = %q, want empty", got)
	}
}

func TestFind(t *testing.T) {
	dir := t.TempDir()
	for _, f := range []string{"a.gguf", "b.gguf"} {
		if err := os.WriteFile(filepath.Join(dir, f), []byte(""), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	models, err := LoadDir(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if m := Find(models, "b.gguf"); m == nil || m.ID != "b.gguf" {
		t.Fatalf("Find b.gguf = %+v", m)
	}
	if m := Find(models, "missing.gguf"); m != nil {
		t.Fatalf("Find missing = %+v, want nil", m)
	}
}
