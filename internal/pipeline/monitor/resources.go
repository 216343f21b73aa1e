package monitor

import (
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// HostSnapshot reads current memory and CPU usage from the host. It is
// meant to be passed to WithResourceSnapshot; any probe failure yields nil
// so the report simply omits the resources block.
func HostSnapshot() *ResourceSnapshot {
	vm, err := mem.VirtualMemory()
	if err != nil {
		return nil
	}
	snap := &ResourceSnapshot{
		MemoryTotal:     vm.Total,
		MemoryAvailable: vm.Available,
		MemoryUsedPct:   vm.UsedPercent,
	}
	if pcts, err := cpu.Percent(100*time.Millisecond, false); err == nil && len(pcts) > 0 {
		snap.CPUPercent = pcts[0]
	}
	return snap
}
