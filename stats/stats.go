// Package stats accumulates the append-only counters described in
// spec.md §4.4. It never influences simulation state.
package stats

import "github.com/Readm/mesisim/core"

// PerCore holds every counter keyed by a single core id.
type PerCore struct {
	ReadInstructions      uint64
	WriteInstructions     uint64
	TotalCycles           uint64
	CacheAccesses         uint64
	CacheMisses           uint64
	CacheEvictions        uint64
	Writebacks            uint64
	StallCycles           uint64
	InvalidationsReceived uint64
	DataTrafficBytes      uint64
}

// Stats is a plain accumulator, owned by the simulation driver and passed
// to Core/Cache/Bus by non-owning pointer (spec.md §9's "no global mutable
// state" note).
type Stats struct {
	perCore []PerCore

	TotalInvalidations   uint64
	TotalBusTrafficBytes uint64
	OverallTransactions  uint64
}

// New allocates a Stats accumulator for numCores cores.
func New(numCores int) *Stats {
	return &Stats{perCore: make([]PerCore, numCores)}
}

func (s *Stats) valid(coreID int) bool {
	return s != nil && coreID >= 0 && coreID < len(s.perCore)
}

// PerCore returns a copy of the accumulated counters for coreID.
func (s *Stats) PerCore(coreID int) PerCore {
	if !s.valid(coreID) {
		return PerCore{}
	}
	return s.perCore[coreID]
}

// NumCores returns how many per-core slots this accumulator tracks.
func (s *Stats) NumCores() int {
	if s == nil {
		return 0
	}
	return len(s.perCore)
}

// RecordAccess logs one retired or in-flight access issued by coreID.
func (s *Stats) RecordAccess(coreID int, op core.Operation) {
	if !s.valid(coreID) {
		return
	}
	s.perCore[coreID].CacheAccesses++
	if op == core.OpRead {
		s.perCore[coreID].ReadInstructions++
	} else {
		s.perCore[coreID].WriteInstructions++
	}
}

// RecordMiss logs a cache miss for coreID.
func (s *Stats) RecordMiss(coreID int) {
	if !s.valid(coreID) {
		return
	}
	s.perCore[coreID].CacheMisses++
}

// RecordEviction logs a line eviction for coreID.
func (s *Stats) RecordEviction(coreID int) {
	if !s.valid(coreID) {
		return
	}
	s.perCore[coreID].CacheEvictions++
}

// RecordWriteback logs a writeback initiated by coreID.
func (s *Stats) RecordWriteback(coreID int) {
	if !s.valid(coreID) {
		return
	}
	s.perCore[coreID].Writebacks++
}

// RecordInvalidationReceived logs coreID's cache having been invalidated
// by a snoop, and increments the global invalidation counter.
func (s *Stats) RecordInvalidationReceived(coreID int) {
	if s == nil {
		return
	}
	if s.valid(coreID) {
		s.perCore[coreID].InvalidationsReceived++
	}
	s.TotalInvalidations++
}

// AddBusTraffic attributes bytes of bus traffic to causingCoreID and to the
// global total. The Bus passes the requesting core for every dispatched
// transaction; a cache passes its own id for the silent writeback of a
// Modified line snooped by a BusRd.
func (s *Stats) AddBusTraffic(bytes uint64, causingCoreID int) {
	if s == nil {
		return
	}
	s.TotalBusTrafficBytes += bytes
	if s.valid(causingCoreID) {
		s.perCore[causingCoreID].DataTrafficBytes += bytes
	}
}

// IncrementStallCycles logs one stall cycle for coreID.
func (s *Stats) IncrementStallCycles(coreID int) {
	if !s.valid(coreID) {
		return
	}
	s.perCore[coreID].StallCycles++
}

// SetCoreCycles stamps coreID's total execution cycle count. Called once
// per core at simulation halt with the same global cycle value for every
// core, per original_source/simulator.cpp's post-loop stats pass.
func (s *Stats) SetCoreCycles(coreID int, cycles uint64) {
	if !s.valid(coreID) {
		return
	}
	s.perCore[coreID].TotalCycles = cycles
}

// RecordTransaction increments the global transaction counter. The Bus
// calls this once per dispatched transaction.
func (s *Stats) RecordTransaction() {
	if s == nil {
		return
	}
	s.OverallTransactions++
}

// MissRatePercent returns coreID's miss rate as a percentage, or 0 if the
// core made no accesses.
func (s *Stats) MissRatePercent(coreID int) float64 {
	if !s.valid(coreID) {
		return 0
	}
	pc := s.perCore[coreID]
	if pc.CacheAccesses == 0 {
		return 0
	}
	return float64(pc.CacheMisses) / float64(pc.CacheAccesses) * 100.0
}
