package yzma

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLibFileName(t *testing.T) {
	name := libFileName()
	if name == "" {
		t.Fatal("empty library file name")
	}
	if filepath.Ext(name) == "" {
		t.Fatalf("library file name %q has no extension", name)
	}
}

func TestDiscoverLibDirExplicitWins(t *testing.T) {
	t.Setenv(EnvLibDir, "/env/should/lose")
	if got := discoverLibDir("/explicit/lib"); got != "/explicit/lib" {
		t.Fatalf("discoverLibDir = %q, want explicit path", got)
	}
}

func TestDiscoverLibDirEnv(t *testing.T) {
	t.Setenv(EnvLibDir, "/from/env")
	if got := discoverLibDir(""); got != "/from/env" {
		t.Fatalf("discoverLibDir = %q, want env path", got)
	}
}

func TestHasLib(t *testing.T) {
	dir := t.TempDir()
	if hasLib(dir) {
		t.Fatal("empty dir reported as having the library")
	}
	path := filepath.Join(dir, libFileName())
	if err := os.WriteFile(path, []byte("not a real library"), 0o644); err != nil {
		t.Fatal(err)
	}
	if !hasLib(dir) {
		t.Fatalf("library at %s not found", path)
	}
}
