// Package hostinfo captures a snapshot of the host's resources for the
// report's optional footer, grounded on the gopsutil-based introspection
// in sarchlab-akita's monitoring package (see SPEC_FULL.md's DOMAIN STACK
// section).
package hostinfo

import (
	"fmt"

	"github.com/shirou/gopsutil/cpu"
	"github.com/shirou/gopsutil/mem"
)

// Snapshot is a point-in-time view of the host running the simulation.
type Snapshot struct {
	LogicalCPUs          int
	TotalMemoryBytes     uint64
	AvailableMemoryBytes uint64
}

// Capture reads the current host's logical CPU count and memory
// availability. It is best-effort: an error from either underlying probe
// is wrapped and returned rather than partially populating the snapshot.
func Capture() (Snapshot, error) {
	counts, err := cpu.Counts(true)
	if err != nil {
		return Snapshot{}, fmt.Errorf("hostinfo: cpu count: %w", err)
	}

	vm, err := mem.VirtualMemory()
	if err != nil {
		return Snapshot{}, fmt.Errorf("hostinfo: virtual memory: %w", err)
	}

	return Snapshot{
		LogicalCPUs:          counts,
		TotalMemoryBytes:     vm.Total,
		AvailableMemoryBytes: vm.Available,
	}, nil
}
