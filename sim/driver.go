// Package sim wires the Bus, per-core Caches, and per-core trace-driven
// Processors together and runs the cycle-by-cycle driver loop described
// in spec.md §2 and §5.
package sim

import (
	"fmt"

	"github.com/Readm/mesisim/bus"
	"github.com/Readm/mesisim/cache"
	"github.com/Readm/mesisim/core"
	"github.com/Readm/mesisim/hooks"
	"github.com/Readm/mesisim/internal/logging"
	"github.com/Readm/mesisim/stats"
	"github.com/Readm/mesisim/trace"
)

// Simulator owns the bus, caches, and processors for one run and drives
// them through the fixed per-cycle order: Bus.tick, then Core.tick for
// each core in ascending id order (spec.md §5).
type Simulator struct {
	cfg *Config

	bus        *bus.Bus
	caches     []*cache.Cache
	processors []*Processor
	readers    []*trace.Reader

	stats  *stats.Stats
	broker *hooks.PluginBroker
	log    *logging.Logger
}

// New constructs a Simulator from an already-validated Config. Opening a
// trace file that does not exist is a fatal configuration error (spec.md
// §7) and is reported here, before any cycle is simulated.
func New(cfg *Config, broker *hooks.PluginBroker) (*Simulator, error) {
	if broker == nil {
		broker = hooks.NewPluginBroker()
	}
	registerDiagnosticsLogging(broker)

	st := stats.New(core.NumCores)
	busRef, err := bus.New(cfg.BlockSizeBytes(), st, broker)
	if err != nil {
		return nil, fmt.Errorf("sim: %w", err)
	}

	s, e, b := cfg.Geometry()

	sim := &Simulator{
		cfg:    cfg,
		bus:    busRef,
		stats:  st,
		broker: broker,
		log:    logging.Default(),
	}

	for i := 0; i < core.NumCores; i++ {
		c, err := cache.New(i, s, e, b, busRef, st, broker)
		if err != nil {
			return nil, fmt.Errorf("sim: %w", err)
		}
		if err := busRef.RegisterCache(c); err != nil {
			return nil, fmt.Errorf("sim: %w", err)
		}

		reader, err := trace.Open(cfg.TracePrefix, i)
		if err != nil {
			return nil, fmt.Errorf("sim: %w", err)
		}

		sim.caches = append(sim.caches, c)
		sim.readers = append(sim.readers, reader)
		sim.processors = append(sim.processors, NewProcessor(i, c, st, reader))
	}

	return sim, nil
}

// Stats returns the accumulator this simulator writes into.
func (s *Simulator) Stats() *stats.Stats { return s.stats }

// Bus returns the shared bus, primarily so the report layer can read the
// final transaction count.
func (s *Simulator) Bus() *bus.Bus { return s.bus }

// Run drives the simulation to completion and returns the final global
// cycle count. It stops early with an error if the sanity cycle bound is
// exceeded (spec.md §5/§7).
func (s *Simulator) Run() (uint64, error) {
	defer s.closeReaders()

	var cycle uint64
	for {
		cycle++

		s.bus.Tick(cycle)
		for _, p := range s.processors {
			p.Tick(cycle)
		}

		if s.allFinished() {
			break
		}
		if cycle > s.cfg.SanityCycleBound {
			return cycle, fmt.Errorf("runaway simulation: exceeded sanity bound of %d cycles", s.cfg.SanityCycleBound)
		}
	}

	// Every core is stamped with the same final global cycle count,
	// matching original_source/simulator.cpp's post-loop stats pass
	// rather than each processor's own last-active cycle.
	for _, p := range s.processors {
		s.stats.SetCoreCycles(p.ID(), cycle)
	}

	return cycle, nil
}

func (s *Simulator) allFinished() bool {
	for _, p := range s.processors {
		if !p.Finished() {
			return false
		}
	}
	return true
}

// registerDiagnosticsLogging is the broker's default subscriber: it turns
// invariant violations into Error-level log lines and, at Debug level,
// traces every dispatched bus transaction. cache.go and bus.go only fire
// these hooks; whether anything happens with them lives here.
func registerDiagnosticsLogging(broker *hooks.PluginBroker) {
	log := logging.Default()

	broker.Register(hooks.PluginDescriptor{
		Name:        "diagnostics-logger",
		Category:    hooks.PluginCategoryDiagnostics,
		Description: "logs invariant violations reported by the bus and caches",
	}, hooks.HookBundle{
		OnInvariantViolation: []hooks.InvariantViolationHook{func(ctx *hooks.InvariantViolationContext) {
			log.Errorf("invariant violation: %s (core %d, cycle %d)", ctx.Description, ctx.CoreID, ctx.Cycle)
		}},
	})

	broker.Register(hooks.PluginDescriptor{
		Name:        "transaction-tracer",
		Category:    hooks.PluginCategoryInstrumentation,
		Description: "traces bus transaction dispatch and completion at debug level",
	}, hooks.HookBundle{
		OnTransactionDispatched: []hooks.TransactionDispatchedHook{func(ctx *hooks.TransactionContext) {
			log.Debugf("dispatch core=%d kind=%s block=0x%x cycle=%d", ctx.Request.RequestingCoreID, ctx.Request.Kind, ctx.Request.BlockAddress, ctx.Cycle)
		}},
		OnTransactionCompleted: []hooks.TransactionCompletedHook{func(ctx *hooks.TransactionContext) {
			log.Debugf("complete core=%d kind=%s block=0x%x cycle=%d shared=%v", ctx.Request.RequestingCoreID, ctx.Request.Kind, ctx.Request.BlockAddress, ctx.Cycle, ctx.Result.IsSharedAfter)
		}},
	})
}

func (s *Simulator) closeReaders() {
	for _, r := range s.readers {
		if err := r.Close(); err != nil {
			s.log.Warnf("sim: error closing trace file: %v", err)
		}
	}
}
