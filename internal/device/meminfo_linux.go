package device

import "os"

// totalMemoryMB reads MemTotal from /proc/meminfo. Returns 0 when the file
// is missing or malformed.
func totalMemoryMB() int {
	b, err := os.ReadFile("/proc/meminfo")
	if err != nil {
		return 0
	}
	return parseMemTotalMB(b)
}
