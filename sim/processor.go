package sim

import (
	"github.com/Readm/mesisim/cache"
	"github.com/Readm/mesisim/core"
	"github.com/Readm/mesisim/stats"
	"github.com/Readm/mesisim/trace"
)

// Processor drives one core's trace cursor into its L1 cache, one access
// per cycle, honoring stalls (spec.md §4.1). It is named Processor rather
// than Core to avoid colliding with the core package's shared domain
// types.
type Processor struct {
	id     int
	cache  *cache.Cache
	stats  *stats.Stats
	reader *trace.Reader

	traceFinished    bool
	stalled          bool
	processingAccess bool

	currentOp   core.Operation
	currentAddr uint64

	lastCycle uint64
}

// NewProcessor constructs a Processor for coreID, reading from reader and
// issuing accesses against c.
func NewProcessor(id int, c *cache.Cache, st *stats.Stats, reader *trace.Reader) *Processor {
	return &Processor{id: id, cache: c, stats: st, reader: reader}
}

// ID returns the core id this processor drives.
func (p *Processor) ID() int { return p.id }

// Cycle returns the last cycle this processor was ticked on.
func (p *Processor) Cycle() uint64 { return p.lastCycle }

// Finished reports trace exhaustion with no outstanding stall (spec.md
// §4.1's finished condition).
func (p *Processor) Finished() bool {
	return p.traceFinished && !p.stalled
}

// Tick executes one cycle worth of work for this core, following
// spec.md §4.1's four numbered steps.
func (p *Processor) Tick(cycle uint64) {
	p.lastCycle = cycle

	// Step 1: previously stalled and the cache has cleared the stall —
	// consume one cycle in which nothing new is issued, then resume
	// normal issuing next cycle.
	if p.stalled && !p.cache.Stalled() {
		p.stalled = false
		p.processingAccess = false
		return
	}

	// Step 2: still stalled.
	if p.stalled {
		p.stats.IncrementStallCycles(p.id)
		return
	}

	if p.traceFinished {
		return
	}

	// Step 3: fetch the next trace record if none is in flight.
	if !p.processingAccess {
		if op, addr, ok := p.reader.Next(); ok {
			p.currentOp = op
			p.currentAddr = addr
			p.processingAccess = true
		} else {
			p.traceFinished = true
			p.processingAccess = false
			return
		}
	}

	// Step 4: submit the access.
	hit := p.cache.Access(p.currentAddr, p.currentOp, cycle)
	if hit {
		p.processingAccess = false
		return
	}
	p.stalled = true
	p.stats.IncrementStallCycles(p.id)
}
