// Package device reads the host capability snapshot (total physical memory,
// logical cores) that resource planning is based on. Memory probing is
// platform-specific; a failed probe falls back to a conservative mid-range
// default rather than an error.
package device

import (
	"runtime"

	"inferd/pkg/types"
)

// DefaultMemoryMB is assumed when the platform probe fails or is not
// implemented. Treats the host as a mid-range device.
const DefaultMemoryMB = 4096

// Detect profiles the host. It never fails: an unreadable memory total is
// replaced by DefaultMemoryMB, and the core count is floored at 1.
func Detect() types.DeviceProfile {
	mb := totalMemoryMB()
	if mb <= 0 {
		mb = DefaultMemoryMB
	}
	cores := runtime.NumCPU()
	if cores < 1 {
		cores = 1
	}
	return types.DeviceProfile{TotalMemoryMB: mb, LogicalCores: cores}
}
