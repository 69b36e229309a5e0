// Package bus implements the shared snooping bus described in spec.md
// §3 and §4.3: one FIFO request queue per core, round-robin arbitration,
// a single in-flight transaction with a latency timer, and a snoop
// broadcast that aggregates each non-requesting cache's contribution.
package bus

import (
	"fmt"

	"github.com/Readm/mesisim/core"
	"github.com/Readm/mesisim/hooks"
	"github.com/Readm/mesisim/internal/logging"
	"github.com/Readm/mesisim/queue"
	"github.com/Readm/mesisim/stats"
)

// Snooper is the back-reference contract the Bus holds on each registered
// cache. It is intentionally minimal: the Bus never reaches into a
// Cache's internal state, only invokes these two callbacks (spec.md §9's
// "arena/registry, non-owning back-reference" note).
type Snooper interface {
	CoreID() int
	Snoop(kind core.TransactionKind, blockAddress uint64, cycle uint64) core.SnoopContribution
	OnCompletion(request core.BusRequest, result core.SnoopResult, cycle uint64)
}

// Bus arbitrates and serializes coherence transactions among the
// registered caches.
type Bus struct {
	queues             []*queue.TrackedQueue[core.BusRequest]
	arbitrationPointer int
	caches             []Snooper

	busy               bool
	current            core.BusRequest
	currentSnoopResult core.SnoopResult
	endCycle           uint64

	blockSizeBytes uint64
	wordsPerBlock  uint64

	stats  *stats.Stats
	broker *hooks.PluginBroker
	log    *logging.Logger
}

// New constructs a Bus for the given block size (bytes). st and broker may
// not be nil; broker may be a no-op *hooks.PluginBroker if instrumentation
// is not needed.
func New(blockSizeBytes uint64, st *stats.Stats, broker *hooks.PluginBroker) (*Bus, error) {
	if blockSizeBytes == 0 || blockSizeBytes%core.WordSizeBytes != 0 {
		return nil, fmt.Errorf("bus: block size must be non-zero and a multiple of %d, got %d", core.WordSizeBytes, blockSizeBytes)
	}
	if st == nil {
		return nil, fmt.Errorf("bus: stats accumulator must not be nil")
	}

	b := &Bus{
		queues:         make([]*queue.TrackedQueue[core.BusRequest], core.NumCores),
		blockSizeBytes: blockSizeBytes,
		wordsPerBlock:  blockSizeBytes / core.WordSizeBytes,
		stats:          st,
		broker:         broker,
		log:            logging.Default(),
	}
	for i := range b.queues {
		b.queues[i] = queue.New[core.BusRequest](fmt.Sprintf("bus-core-%d", i), queue.UnlimitedCapacity, nil, queue.Hooks[core.BusRequest]{})
	}
	return b, nil
}

// RegisterCache attaches a cache to the bus. Caches must register in core
// id order, exactly once each, before the simulation begins.
func (b *Bus) RegisterCache(c Snooper) error {
	if len(b.caches) >= core.NumCores {
		return fmt.Errorf("bus: cannot register more than %d caches", core.NumCores)
	}
	b.caches = append(b.caches, c)
	return nil
}

// AddRequest enqueues req onto its requesting core's queue. Returns false
// (without enqueueing) if the core id is out of range (spec.md §7).
func (b *Bus) AddRequest(req core.BusRequest, cycle uint64) bool {
	if req.RequestingCoreID < 0 || req.RequestingCoreID >= len(b.queues) {
		b.log.Errorf("bus: rejected request with invalid core id %d", req.RequestingCoreID)
		return false
	}
	req.EnqueueCycle = cycle
	b.queues[req.RequestingCoreID].Enqueue(req, cycle)
	return true
}

// Busy reports whether a transaction is currently in flight.
func (b *Bus) Busy() bool { return b.busy }

// TotalTransactions returns the number of transactions dispatched so far.
func (b *Bus) TotalTransactions() uint64 {
	if b.stats == nil {
		return 0
	}
	return b.stats.OverallTransactions
}

// Tick executes one cycle of the bus's completion-then-dispatch protocol
// (spec.md §4.3).
func (b *Bus) Tick(cycle uint64) {
	if b.busy && cycle >= b.endCycle {
		owner := b.ownerOf(b.current.RequestingCoreID)
		if owner != nil {
			owner.OnCompletion(b.current, b.currentSnoopResult, cycle)
		}
		b.broker.FireTransactionCompleted(hooks.TransactionContext{
			Request: b.current,
			Result:  b.currentSnoopResult,
			Cycle:   cycle,
		})
		b.busy = false
		b.current = core.BusRequest{}
		b.currentSnoopResult = core.SnoopResult{}
	}

	if !b.busy {
		if req, ok := b.arbitrate(); ok {
			result := b.snoopBroadcast(req, cycle)
			b.startTransaction(req, result, cycle)
		}
	}
}

func (b *Bus) ownerOf(coreID int) Snooper {
	for _, c := range b.caches {
		if c.CoreID() == coreID {
			return c
		}
	}
	return nil
}

// arbitrate performs strict round-robin selection: scan cores
// p, p+1, ..., p+N-1 (mod N); the first non-empty queue wins.
func (b *Bus) arbitrate() (core.BusRequest, bool) {
	n := len(b.queues)
	for checked := 0; checked < n; checked++ {
		idx := (b.arbitrationPointer + checked) % n
		if b.queues[idx].Len() == 0 {
			continue
		}
		req, _ := b.queues[idx].PopFront(0)
		b.arbitrationPointer = (idx + 1) % n
		return req, true
	}
	return core.BusRequest{}, false
}

// snoopBroadcast invokes Snoop on every cache other than the requester and
// aggregates the result. This is the fix for the historical bug described
// in spec.md §9: is_shared_after is computed here, once, correctly, and
// threaded through to the requester's completion handler by Tick, rather
// than inferred from the request kind alone.
func (b *Bus) snoopBroadcast(req core.BusRequest, cycle uint64) core.SnoopResult {
	var result core.SnoopResult
	sharerCount := 0

	for _, c := range b.caches {
		if c.CoreID() == req.RequestingCoreID {
			continue
		}
		contribution := c.Snoop(req.Kind, req.BlockAddress, cycle)

		b.broker.FireSnoop(hooks.SnoopContext{
			CoreID:       c.CoreID(),
			BlockAddress: req.BlockAddress,
			Kind:         req.Kind,
			Cycle:        cycle,
			Contribution: contribution,
		})

		if contribution.DataSupplied {
			if result.DataSupplied {
				b.broker.FireInvariantViolation(hooks.InvariantViolationContext{
					Description: fmt.Sprintf("multiple caches supplied data for block 0x%x", req.BlockAddress),
					CoreID:      req.RequestingCoreID,
					Cycle:       cycle,
				})
			} else {
				result.DataSupplied = true
				result.WasDirty = contribution.WasDirty
			}
		}
		if contribution.StillHoldsValid {
			sharerCount++
		}
	}

	result.IsSharedAfter = sharerCount > 0
	return result
}

func (b *Bus) startTransaction(req core.BusRequest, result core.SnoopResult, cycle uint64) {
	b.busy = true
	b.current = req
	b.currentSnoopResult = result

	var latency uint64
	var traffic uint64

	switch req.Kind {
	case core.BusRd, core.BusRdX:
		if result.DataSupplied {
			latency = core.C2CPerWordFactor * b.wordsPerBlock
		} else {
			latency = core.MemAccessLatency
		}
		traffic = b.blockSizeBytes
	case core.Writeback:
		latency = core.MemAccessLatency
		traffic = b.blockSizeBytes
	case core.BusUpgr:
		latency = 1
		traffic = 0
	default:
		b.busy = false
		return
	}

	b.endCycle = cycle + latency
	if traffic > 0 {
		b.stats.AddBusTraffic(traffic, req.RequestingCoreID)
	}
	b.stats.RecordTransaction()

	b.broker.FireTransactionDispatched(hooks.TransactionContext{
		Request: req,
		Result:  result,
		Cycle:   cycle,
	})
}
