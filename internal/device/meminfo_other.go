//go:build !linux && !darwin

package device

// totalMemoryMB has no probe on this platform; Detect applies the default.
func totalMemoryMB() int { return 0 }
