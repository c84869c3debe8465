package device

import "golang.org/x/sys/unix"

// totalMemoryMB reads hw.memsize via sysctl. Returns 0 on failure.
func totalMemoryMB() int {
	bytes, err := unix.SysctlUint64("hw.memsize")
	if err != nil {
		return 0
	}
	return int(bytes / (1024 * 1024))
}
