package testctl

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
)

// installLlama clones and builds llama.cpp as shared libraries for the
// purego backend. It clones to ~/src/llama.cpp (or updates it), configures
// a plain CPU build, and reports where libllama.so landed.
func installLlama() error {
	if _, err := exec.LookPath("cmake"); err != nil {
		return fmt.Errorf("cmake is required to build llama.cpp: %w", err)
	}
	if _, err := exec.LookPath("git"); err != nil {
		return fmt.Errorf("git is required to fetch llama.cpp: %w", err)
	}

	llamaDir, err := syncLlamaSource()
	if err != nil {
		return err
	}
	buildDir := filepath.Join(llamaDir, "build")

	info("[llama] Configuring CMake (CPU, shared libs)")
	if err := runCmdVerbose(context.Background(), "cmake",
		"-S", llamaDir,
		"-B", buildDir,
		"-DCMAKE_BUILD_TYPE=Release",
		"-DBUILD_SHARED_LIBS=ON",
		"-DLLAMA_BUILD_TESTS=OFF",
		"-DLLAMA_BUILD_EXAMPLES=OFF",
	); err != nil {
		return err
	}
	if err := runCmdVerbose(context.Background(), "cmake", "--build", buildDir, "-j"); err != nil {
		return err
	}

	lib, err := locateBuiltLibDir(buildDir)
	if err != nil {
		return err
	}
	info("[llama] Built libraries in: %s", lib)
	info("[llama] Run the server with:")
	info("    inferd --backend yzma --lib-path %s", lib)
	info("[llama] or export INFERD_LLAMA_LIB=%s", lib)
	return nil
}

// installLlamaCUDA installs and builds llama.cpp with CUDA on Arch-like
// systems. It configures with CUDA enabled, preferring gcc-14/g++-14 as the
// CUDA host compiler when available, and builds under build-cuda14.
func installLlamaCUDA() error {
	if !isArchLike() {
		return fmt.Errorf("llama:cuda installer currently supports Arch Linux-like distros; on %s please follow llama.cpp build docs for CUDA", runtime.GOOS)
	}
	info("[llama] Installing prerequisites (Arch)...")
	// Base toolchain and optional BLAS (harmless even for CUDA builds)
	_ = runCmdVerbose(context.Background(), "pacman", "-S", "--needed", "--noconfirm", "base-devel", "cmake", "git", "ninja", "openblas", "cblas", "lapack")
	// CUDA toolkit
	if err := runMaybeSudo("pacman", "-S", "--needed", "--noconfirm", "cuda"); err != nil {
		return fmt.Errorf("failed to install cuda via pacman: %w", err)
	}

	// Prefer GCC 14 for CUDA host compiler on Arch
	hostCXX := "/usr/bin/g++-14"
	if _, err := os.Stat(hostCXX); os.IsNotExist(err) {
		info("[llama] gcc-14 not found; attempting installation...")
		if err := runMaybeSudo("pacman", "-S", "--needed", "--noconfirm", "gcc14", "gcc14-libs"); err != nil {
			info("[llama] Could not install gcc14 automatically: %v", err)
			// Fallback to default g++ if gcc14 unavailable
			if p, lookErr := exec.LookPath("g++"); lookErr == nil {
				hostCXX = p
			} else {
				hostCXX = "/usr/bin/g++"
			}
		}
	}

	llamaDir, err := syncLlamaSource()
	if err != nil {
		return err
	}
	buildDir := filepath.Join(llamaDir, "build-cuda14")

	info("[llama] Configuring CMake (CUDA) with host compiler: %s", hostCXX)
	if err := runCmdVerbose(context.Background(), "cmake",
		"-S", llamaDir,
		"-B", buildDir,
		"-DCMAKE_BUILD_TYPE=Release",
		"-DBUILD_SHARED_LIBS=ON",
		"-DGGML_CUDA=ON",
		"-DCUDAToolkit_ROOT=/opt/cuda",
		"-DCMAKE_CUDA_HOST_COMPILER="+hostCXX,
	); err != nil {
		return err
	}
	if err := runCmdVerbose(context.Background(), "cmake", "--build", buildDir, "-j"); err != nil {
		return err
	}

	lib, err := locateBuiltLibDir(buildDir)
	if err != nil {
		return err
	}
	info("[llama] Built libraries in: %s", lib)
	info("[llama] Run the server with:")
	info("    inferd --backend yzma --lib-path %s", lib)
	info("[llama] For the cgo backend instead, build the server with:")
	info("    CGO_ENABLED=1 go build -tags llama ./cmd/inferd")
	return nil
}

// syncLlamaSource clones llama.cpp under ~/src, or fast-forwards an
// existing checkout, and returns the checkout path.
func syncLlamaSource() (string, error) {
	srcDir := filepath.Join(homeDir(), "src")
	llamaDir := filepath.Join(srcDir, "llama.cpp")
	if _, err := os.Stat(llamaDir); os.IsNotExist(err) {
		if err := os.MkdirAll(srcDir, 0o755); err != nil {
			return "", err
		}
		info("[llama] Cloning llama.cpp into %s", llamaDir)
		if err := runCmdVerbose(context.Background(), "git", "clone", "https://github.com/ggerganov/llama.cpp.git", llamaDir); err != nil {
			return "", err
		}
		return llamaDir, nil
	}
	info("[llama] Updating llama.cpp in %s", llamaDir)
	_ = RunCmd(context.Background(), Cmd{Path: "git", Args: []string{"pull", "--ff-only"}, Dir: llamaDir})
	return llamaDir, nil
}

// locateBuiltLibDir finds the directory holding libllama.so in a finished
// build tree. Older llama.cpp layouts place it directly in the build dir,
// newer ones under bin/.
func locateBuiltLibDir(buildDir string) (string, error) {
	candidates := []string{
		filepath.Join(buildDir, "bin"),
		buildDir,
	}
	for _, dir := range candidates {
		if hasLlamaLib(dir) {
			return dir, nil
		}
	}
	return "", fmt.Errorf("libllama.so not found under %s", buildDir)
}

// runMaybeSudo tries sudo if not root, else runs directly.
func runMaybeSudo(name string, args ...string) error {
	if os.Geteuid() == 0 {
		return runCmdVerbose(context.Background(), name, args...)
	}
	if _, err := exec.LookPath("sudo"); err == nil {
		return runCmdVerbose(context.Background(), "sudo", append([]string{name}, args...)...)
	}
	return runCmdVerbose(context.Background(), name, args...)
}
