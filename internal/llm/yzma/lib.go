package yzma

import (
	"os"
	"path/filepath"
	"runtime"
)

// EnvLibDir overrides shared-library discovery when set. It should name the
// directory holding the llama.cpp libraries, as produced by
// `testctl install llama`.
const EnvLibDir = "INFERD_LLAMA_LIB"

// libFileName returns the llama shared-library file name for the current OS.
func libFileName() string {
	switch runtime.GOOS {
	case "darwin":
		return "libllama.dylib"
	case "windows":
		return "llama.dll"
	default:
		return "libllama.so"
	}
}

// hasLib reports whether dir contains the llama shared library.
func hasLib(dir string) bool {
	fi, err := os.Stat(filepath.Join(dir, libFileName()))
	return err == nil && !fi.IsDir()
}

// discoverLibDir locates the llama.cpp shared libraries. An explicit libPath
// wins, then EnvLibDir, then common locations relative to the executable and
// the working directory. When nothing is found the default ./lib is returned
// so the load error names a sensible place to install into.
func discoverLibDir(libPath string) string {
	if libPath != "" {
		return libPath
	}
	if env := os.Getenv(EnvLibDir); env != "" {
		return env
	}
	candidates := []string{"./lib"}
	if exe, err := os.Executable(); err == nil {
		dir := filepath.Dir(exe)
		candidates = append(candidates,
			filepath.Join(dir, "lib"),
			filepath.Join(dir, "..", "lib"),
		)
	}
	candidates = append(candidates,
		"/usr/local/lib/llama",
		"/opt/homebrew/lib/llama",
	)
	for _, c := range candidates {
		if hasLib(c) {
			return c
		}
	}
	return "./lib"
}
