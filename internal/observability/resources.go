package observability

import (
	"context"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// ResourceSnapshot is a point-in-time read of host resource usage, reported
// through Engine.GetStats. The discovery worker pool does not consult it.
type ResourceSnapshot struct {
	CPUPercent    float64
	MemoryPercent float64
}

// SampleResources reads current CPU and memory utilization.
func SampleResources(ctx context.Context) (ResourceSnapshot, error) {
	cpuPct, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil {
		return ResourceSnapshot{}, err
	}
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return ResourceSnapshot{}, err
	}
	snap := ResourceSnapshot{MemoryPercent: vm.UsedPercent}
	if len(cpuPct) > 0 {
		snap.CPUPercent = cpuPct[0]
	}
	return snap, nil
}

// Overloaded reports whether host CPU or memory utilization is above 90%.
// Nothing in the discovery engine calls it.
func (s ResourceSnapshot) Overloaded() bool {
	return s.CPUPercent > 90 || s.MemoryPercent > 90
}
