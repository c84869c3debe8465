// Package policy maps a device profile to a resource plan. PlanFor is pure
// and deterministic; the session recomputes it on every load.
package policy

import "inferd/pkg/types"

// memoryTier selects context/batch/generation budgets for devices whose
// total memory is at most MaxMemoryMB. Tiers are ordered ascending and
// context/max-tokens never decrease from one tier to the next.
type memoryTier struct {
	MaxMemoryMB        int
	ContextSize        int
	BatchSize          int
	MaxGeneratedTokens int
}

var memoryTiers = []memoryTier{
	{MaxMemoryMB: 3072, ContextSize: 512, BatchSize: 128, MaxGeneratedTokens: 256},
	{MaxMemoryMB: 4096, ContextSize: 1024, BatchSize: 256, MaxGeneratedTokens: 384},
	{MaxMemoryMB: 6144, ContextSize: 1536, BatchSize: 256, MaxGeneratedTokens: 512},
	{MaxMemoryMB: 8192, ContextSize: 2048, BatchSize: 256, MaxGeneratedTokens: 512},
}

// topTier applies above the largest bounded tier.
var topTier = memoryTier{ContextSize: 2048, BatchSize: 256, MaxGeneratedTokens: 768}

// Thread caps keep low-end devices from oversubscribing their cores.
const (
	lowEndMemoryMB  = 3072
	lowEndThreadCap = 4
	threadCap       = 8
)

// PlanFor derives the resource plan for a device. Thread count is bounded by
// both the logical core count and the device-class cap.
func PlanFor(p types.DeviceProfile) types.ResourcePlan {
	tier := topTier
	for _, t := range memoryTiers {
		if p.TotalMemoryMB <= t.MaxMemoryMB {
			tier = t
			break
		}
	}
	cap := threadCap
	if p.TotalMemoryMB <= lowEndMemoryMB {
		cap = lowEndThreadCap
	}
	threads := p.LogicalCores
	if threads > cap {
		threads = cap
	}
	if threads < 1 {
		threads = 1
	}
	return types.ResourcePlan{
		ContextSize:        tier.ContextSize,
		BatchSize:          tier.BatchSize,
		ThreadCount:        threads,
		MaxGeneratedTokens: tier.MaxGeneratedTokens,
	}
}
