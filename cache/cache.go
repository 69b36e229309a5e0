// Package cache implements the per-core L1 cache described in spec.md
// §3 and §4.2: an S-set x E-way array of MESI lines with LRU replacement,
// a single-slot pending-miss record, and the access/snoop/completion
// state machine that drives bus interaction.
package cache

import (
	"fmt"

	"github.com/Readm/mesisim/bus"
	"github.com/Readm/mesisim/core"
	"github.com/Readm/mesisim/hooks"
	"github.com/Readm/mesisim/stats"
)

// set is a fixed-length sequence of E lines.
type set []core.CacheLine

// Cache is one core's private L1. It implements bus.Snooper so the Bus
// can hold it by non-owning back-reference.
type Cache struct {
	coreID int
	s, e   uint // set-index bits, associativity
	b      uint // block-offset bits

	sets []set

	pending *core.PendingMiss
	stalled bool

	bus    *bus.Bus
	stats  *stats.Stats
	broker *hooks.PluginBroker
}

// New constructs a Cache with 2^s sets of e ways each, block-offset bits
// b, wired to the given bus and stats accumulator.
func New(coreID int, s uint, e uint, b uint, busRef *bus.Bus, st *stats.Stats, broker *hooks.PluginBroker) (*Cache, error) {
	if e == 0 {
		return nil, fmt.Errorf("cache %d: associativity must be > 0", coreID)
	}
	if b < 2 {
		return nil, fmt.Errorf("cache %d: block-offset bits must be >= 2", coreID)
	}
	if busRef == nil {
		return nil, fmt.Errorf("cache %d: bus must not be nil", coreID)
	}
	if st == nil {
		return nil, fmt.Errorf("cache %d: stats accumulator must not be nil", coreID)
	}

	numSets := core.NumSets(s)
	sets := make([]set, numSets)
	for i := range sets {
		sets[i] = make(set, e)
		for w := range sets[i] {
			sets[i][w] = core.CacheLine{State: core.MESIInvalid}
		}
	}

	c := &Cache{
		coreID: coreID,
		s:      s,
		e:      e,
		b:      b,
		sets:   sets,
		bus:    busRef,
		stats:  st,
		broker: broker,
	}
	return c, nil
}

// CoreID satisfies bus.Snooper.
func (c *Cache) CoreID() int { return c.coreID }

// Stalled reports whether this cache currently has an outstanding miss.
func (c *Cache) Stalled() bool { return c.stalled }

func (c *Cache) decompose(addr uint64) core.DecomposedAddress {
	return core.DecomposeAddress(addr, c.s, c.b)
}

func (c *Cache) findWay(setIdx uint64, tag uint64) int {
	for w, line := range c.sets[setIdx] {
		if line.State.IsValid() && line.Tag == tag {
			return w
		}
	}
	return -1
}

// Access implements spec.md §4.2's access path. It returns true on a hit.
func (c *Cache) Access(addr uint64, op core.Operation, cycle uint64) bool {
	c.stats.RecordAccess(c.coreID, op)
	da := c.decompose(addr)
	way := c.findWay(da.Index, da.Tag)

	hit := false
	if way < 0 {
		c.stats.RecordMiss(c.coreID)
		c.stalled = true
		if op == core.OpRead {
			c.beginFill(da, op, cycle, core.BusRd)
		} else {
			c.beginFill(da, op, cycle, core.BusRdX)
		}
	} else {
		line := &c.sets[da.Index][way]
		switch {
		case op == core.OpRead:
			line.LastUsedCycle = cycle
			hit = true
		case line.State == core.MESIModified:
			line.LastUsedCycle = cycle
			hit = true
		case line.State == core.MESIExclusive:
			line.State = core.MESIModified
			line.LastUsedCycle = cycle
			hit = true
		case line.State == core.MESIShared:
			c.stats.RecordMiss(c.coreID)
			c.stalled = true
			c.beginUpgrade(da, way, cycle)
		}
	}

	c.broker.FireAccess(hooks.AccessContext{
		CoreID:  c.coreID,
		Address: addr,
		Op:      op,
		Cycle:   cycle,
		Hit:     hit,
	})
	return hit
}

// beginUpgrade enqueues a BusUpgr for a write-hit on a Shared line.
func (c *Cache) beginUpgrade(da core.DecomposedAddress, way int, cycle uint64) {
	if c.pending != nil && c.pending.BlockAddress == da.BlockAddress {
		return
	}
	c.pending = &core.PendingMiss{
		Op:           core.OpWrite,
		BlockAddress: da.BlockAddress,
		Way:          way,
		IssuedCycle:  cycle,
	}
	c.enqueue(core.BusUpgr, da.BlockAddress, cycle)
}

// beginFill allocates a target way and enqueues a BusRd/BusRdX for a miss.
func (c *Cache) beginFill(da core.DecomposedAddress, op core.Operation, cycle uint64, kind core.TransactionKind) {
	if c.pending != nil && c.pending.BlockAddress == da.BlockAddress {
		return
	}
	way := c.allocateBlock(da, cycle)
	c.pending = &core.PendingMiss{
		Op:           op,
		BlockAddress: da.BlockAddress,
		Way:          way,
		IssuedCycle:  cycle,
	}
	c.enqueue(kind, da.BlockAddress, cycle)
}

// allocateBlock picks a target way per spec.md §4.2: an Invalid line if
// one exists, otherwise the LRU victim (minimum last_used_cycle, ties
// broken by lowest way index). A Modified victim triggers a writeback.
func (c *Cache) allocateBlock(da core.DecomposedAddress, cycle uint64) int {
	lines := c.sets[da.Index]

	victim := -1
	for w, line := range lines {
		if !line.State.IsValid() {
			victim = w
			break
		}
	}

	if victim < 0 {
		victim = 0
		best := lines[0].LastUsedCycle
		for w := 1; w < len(lines); w++ {
			if lines[w].LastUsedCycle < best {
				best = lines[w].LastUsedCycle
				victim = w
			}
		}

		c.stats.RecordEviction(c.coreID)
		victimLine := lines[victim]
		if victimLine.State == core.MESIModified {
			victimBlockAddr := core.ReassembleBlockAddress(victimLine.Tag, da.Index, c.s, c.b)
			c.stats.RecordWriteback(c.coreID)
			c.enqueue(core.Writeback, victimBlockAddr, cycle)
		}
	}

	lines[victim] = core.CacheLine{
		State:         core.MESIInvalid,
		Tag:           da.Tag,
		LastUsedCycle: cycle,
	}
	return victim
}

func (c *Cache) enqueue(kind core.TransactionKind, blockAddress uint64, cycle uint64) {
	c.broker.FireMiss(hooks.MissContext{
		CoreID:       c.coreID,
		BlockAddress: blockAddress,
		Kind:         kind,
		Cycle:        cycle,
	})
	c.bus.AddRequest(core.BusRequest{
		RequestingCoreID: c.coreID,
		Kind:             kind,
		BlockAddress:     blockAddress,
	}, cycle)
}

// Snoop implements bus.Snooper: it is invoked by the Bus on every
// transaction not originated by this cache (spec.md §4.2's snoop table).
func (c *Cache) Snoop(kind core.TransactionKind, blockAddress uint64, cycle uint64) core.SnoopContribution {
	if kind == core.Writeback {
		return core.SnoopContribution{}
	}

	da := core.DecomposeAddress(blockAddress, c.s, c.b)
	way := c.findWay(da.Index, da.Tag)
	if way < 0 {
		return core.SnoopContribution{}
	}
	line := &c.sets[da.Index][way]
	if line.State == core.MESIInvalid {
		return core.SnoopContribution{}
	}

	var contribution core.SnoopContribution

	switch kind {
	case core.BusRd:
		if line.State.CanProvideData() {
			contribution.DataSupplied = true
			if line.State == core.MESIModified {
				contribution.WasDirty = true
				// The dirty copy is written back to memory as a side
				// effect of the snoop itself: silent, not a second
				// arbitrated transaction.
				c.stats.RecordWriteback(c.coreID)
				c.stats.AddBusTraffic(core.BlockSizeBytes(c.b), c.coreID)
			}
		}
		line.State = core.MESIShared
		contribution.StillHoldsValid = line.State.IsValid()

	case core.BusRdX:
		if line.State.CanProvideData() {
			contribution.DataSupplied = true
			if line.State == core.MESIModified {
				contribution.WasDirty = true
			}
		}
		c.stats.RecordInvalidationReceived(c.coreID)
		line.State = core.MESIInvalid
		contribution.StillHoldsValid = false

	case core.BusUpgr:
		if line.State != core.MESIShared {
			c.broker.FireInvariantViolation(hooks.InvariantViolationContext{
				Description: fmt.Sprintf("BusUpgr snoop observed on a non-Shared line (state %s)", line.State),
				CoreID:      c.coreID,
				Cycle:       cycle,
			})
		}
		c.stats.RecordInvalidationReceived(c.coreID)
		line.State = core.MESIInvalid
		contribution.StillHoldsValid = false
	}

	c.broker.FireSnoop(hooks.SnoopContext{
		CoreID:       c.coreID,
		BlockAddress: blockAddress,
		Kind:         kind,
		Cycle:        cycle,
		Contribution: contribution,
	})
	return contribution
}

// OnCompletion implements bus.Snooper: it is invoked when this cache's
// in-flight transaction's timer expires. summary.IsSharedAfter is the
// aggregated snoop result the Bus computed at dispatch time — this is the
// value that must be threaded through to correctly distinguish an
// Exclusive fill from a Shared one (spec.md §9).
func (c *Cache) OnCompletion(request core.BusRequest, summary core.SnoopResult, cycle uint64) {
	if request.Kind == core.Writeback {
		return
	}

	if c.pending == nil || c.pending.BlockAddress != request.BlockAddress {
		c.broker.FireInvariantViolation(hooks.InvariantViolationContext{
			Description: fmt.Sprintf("bus completion for block 0x%x with no matching pending miss", request.BlockAddress),
			CoreID:      c.coreID,
			Cycle:       cycle,
		})
		c.stalled = false
		return
	}

	da := core.DecomposeAddress(request.BlockAddress, c.s, c.b)
	if c.pending.Way < 0 || c.pending.Way >= len(c.sets[da.Index]) {
		c.broker.FireInvariantViolation(hooks.InvariantViolationContext{
			Description: fmt.Sprintf("pending miss referenced invalid way %d", c.pending.Way),
			CoreID:      c.coreID,
			Cycle:       cycle,
		})
		c.pending = nil
		c.stalled = false
		return
	}

	line := &c.sets[da.Index][c.pending.Way]

	switch request.Kind {
	case core.BusRd:
		if summary.IsSharedAfter {
			line.State = core.MESIShared
		} else {
			line.State = core.MESIExclusive
		}
		line.Tag = da.Tag
		line.LastUsedCycle = cycle
	case core.BusRdX:
		line.State = core.MESIModified
		line.Tag = da.Tag
		line.LastUsedCycle = cycle
	case core.BusUpgr:
		line.State = core.MESIModified
		line.LastUsedCycle = cycle
	}

	c.pending = nil
	c.stalled = false
}
