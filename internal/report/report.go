// Package report renders the final human-readable simulation report
// (spec.md §6), reproducing original_source/stats.cpp's exact field order
// and labels (see SPEC_FULL.md's "SUPPLEMENTED BEHAVIOR" section).
package report

import (
	"fmt"
	"strings"

	"github.com/Readm/mesisim/bus"
	"github.com/Readm/mesisim/core"
	"github.com/Readm/mesisim/internal/hostinfo"
	"github.com/Readm/mesisim/sim"
	"github.com/Readm/mesisim/stats"
)

// Render builds the final report text for one completed run.
func Render(cfg *sim.Config, st *stats.Stats, b *bus.Bus) string {
	var out strings.Builder

	blockSizeBytes := cfg.BlockSizeBytes()
	numSets := core.NumSets(uint(cfg.SetIndexBits))

	fmt.Fprintln(&out, "Simulation Parameters:")
	fmt.Fprintf(&out, "  Trace Prefix: %s\n", cfg.TracePrefix)
	fmt.Fprintf(&out, "  Set Index Bits: %d\n", cfg.SetIndexBits)
	fmt.Fprintf(&out, "  Associativity: %d\n", cfg.Associativity)
	fmt.Fprintf(&out, "  Block Bits: %d\n", cfg.BlockBits)
	fmt.Fprintf(&out, "  Block Size (Bytes): %d\n", blockSizeBytes)
	fmt.Fprintf(&out, "  Number of Sets: %d\n", numSets)
	fmt.Fprintln(&out, "  MESI Protocol: Enabled")
	fmt.Fprintln(&out, "  Write Policy: Write-back, Write-allocate")
	fmt.Fprintln(&out, "  Replacement Policy: LRU")
	fmt.Fprintln(&out, "  Bus: Central snooping bus")
	fmt.Fprintln(&out)

	for i := 0; i < st.NumCores(); i++ {
		pc := st.PerCore(i)
		totalInstructions := pc.ReadInstructions + pc.WriteInstructions

		fmt.Fprintf(&out, "Core %d Statistics:\n", i)
		fmt.Fprintf(&out, "  Total Instructions: %d\n", totalInstructions)
		fmt.Fprintf(&out, "  Total Reads: %d\n", pc.ReadInstructions)
		fmt.Fprintf(&out, "  Total Writes: %d\n", pc.WriteInstructions)
		fmt.Fprintf(&out, "  Total Execution Cycles: %d\n", pc.TotalCycles)
		fmt.Fprintf(&out, "  Idle Cycles: %d\n", pc.StallCycles)
		fmt.Fprintf(&out, "  Cache Misses: %d\n", pc.CacheMisses)
		fmt.Fprintf(&out, "  Cache Miss Rate: %.4f%%\n", st.MissRatePercent(i))
		fmt.Fprintf(&out, "  Cache Evictions: %d\n", pc.CacheEvictions)
		fmt.Fprintf(&out, "  Writebacks: %d\n", pc.Writebacks)
		fmt.Fprintf(&out, "  Bus Invalidations Received: %d\n", pc.InvalidationsReceived)
		fmt.Fprintf(&out, "  Data Traffic Caused (Bytes): %d\n", pc.DataTrafficBytes)
		fmt.Fprintln(&out)
	}

	fmt.Fprintln(&out, "Overall Bus Summary:")
	fmt.Fprintf(&out, "  Total Bus Transactions: %d\n", b.TotalTransactions())
	fmt.Fprintf(&out, "  Total Bus Traffic (Bytes): %d\n", st.TotalBusTrafficBytes)
	fmt.Fprintln(&out)

	return out.String()
}

// RenderHostFooter appends the optional host-context footer (an ambient
// addition beyond spec.md's report contract, see SPEC_FULL.md's DOMAIN
// STACK section).
func RenderHostFooter(snap hostinfo.Snapshot) string {
	var out strings.Builder
	fmt.Fprintln(&out, "Host Context:")
	fmt.Fprintf(&out, "  Logical CPUs: %d\n", snap.LogicalCPUs)
	fmt.Fprintf(&out, "  Total Memory (Bytes): %d\n", snap.TotalMemoryBytes)
	fmt.Fprintf(&out, "  Available Memory (Bytes): %d\n", snap.AvailableMemoryBytes)
	return out.String()
}
