package testctl

import (
	"os"
	"path/filepath"
	"runtime"
)

// findLlamaLib locates a directory holding the llama.cpp shared libraries
// for the purego backend. Preference order:
// 1) $INFERD_LLAMA_LIB, the same directory variable the server consults
// 2) builds under ~/src/llama.cpp produced by `testctl install llama[:cuda]`
// Returns "" when nothing usable is found.
func findLlamaLib() string {
	if dir := os.Getenv("INFERD_LLAMA_LIB"); dir != "" && hasLlamaLib(dir) {
		return dir
	}
	llamaDir := filepath.Join(homeDir(), "src", "llama.cpp")
	candidates := []string{
		filepath.Join(llamaDir, "build", "bin"),
		filepath.Join(llamaDir, "build"),
		filepath.Join(llamaDir, "build-cuda14", "bin"),
		filepath.Join(llamaDir, "build-cuda14"),
	}
	for _, dir := range candidates {
		if hasLlamaLib(dir) {
			return dir
		}
	}
	return ""
}

// hasLlamaLib reports whether dir contains the llama shared library.
func hasLlamaLib(dir string) bool {
	name := "libllama.so"
	switch runtime.GOOS {
	case "darwin":
		name = "libllama.dylib"
	case "windows":
		name = "llama.dll"
	}
	fi, err := os.Stat(filepath.Join(dir, name))
	return err == nil && !fi.IsDir()
}

func hasBackendLib() bool { return findLlamaLib() != "" }
