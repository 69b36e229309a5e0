package sim

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/Readm/mesisim/bus"
	"github.com/Readm/mesisim/cache"
	"github.com/Readm/mesisim/core"
	"github.com/Readm/mesisim/hooks"
	"github.com/Readm/mesisim/stats"
	"github.com/Readm/mesisim/trace"
)

func newTestProcessor(t *testing.T, traceContent string) (*Processor, *bus.Bus, *stats.Stats) {
	t.Helper()
	dir := t.TempDir()
	prefix := filepath.Join(dir, "app")
	if err := os.WriteFile(trace.Path(prefix, 0), []byte(traceContent), 0644); err != nil {
		t.Fatalf("writing trace fixture: %v", err)
	}

	st := stats.New(core.NumCores)
	b, err := bus.New(16, st, hooks.NewPluginBroker())
	if err != nil {
		t.Fatalf("bus.New() error: %v", err)
	}
	c, err := cache.New(0, 2, 2, 4, b, st, hooks.NewPluginBroker())
	if err != nil {
		t.Fatalf("cache.New() error: %v", err)
	}
	if err := b.RegisterCache(c); err != nil {
		t.Fatalf("RegisterCache() error: %v", err)
	}

	reader, err := trace.Open(prefix, 0)
	if err != nil {
		t.Fatalf("trace.Open() error: %v", err)
	}
	t.Cleanup(func() { reader.Close() })

	return NewProcessor(0, c, st, reader), b, st
}

func TestProcessorRunsSingleReadToCompletion(t *testing.T) {
	p, b, _ := newTestProcessor(t, "R 0x100\n")

	var cycle uint64
	for cycle = 1; !p.Finished(); cycle++ {
		if cycle > 1000 {
			t.Fatal("processor did not finish within a generous cycle bound")
		}
		b.Tick(cycle)
		p.Tick(cycle)
	}

	// Miss detected on cycle 1, dispatched on cycle 2 (the earliest the bus
	// can see a request enqueued during the prior cycle's processor tick),
	// completes on cycle 2+MemAccessLatency, consumes one unstall cycle,
	// then discovers trace exhaustion the cycle after that.
	if got, want := cycle-1, uint64(3+core.MemAccessLatency); got != want {
		t.Errorf("finished after cycle %d, want %d", got, want)
	}
}

func TestProcessorAccumulatesStallCycles(t *testing.T) {
	p, b, st := newTestProcessor(t, "R 0x100\n")

	var cycle uint64
	for cycle = 1; !p.Finished(); cycle++ {
		if cycle > 1000 {
			t.Fatal("processor did not finish within a generous cycle bound")
		}
		b.Tick(cycle)
		p.Tick(cycle)
	}

	if st.PerCore(0).StallCycles == 0 {
		t.Error("expected some stall cycles to be recorded for a cold-cache read")
	}
}

func TestProcessorFinishedRequiresBothTraceExhaustionAndNoStall(t *testing.T) {
	p, _, _ := newTestProcessor(t, "R 0x100\n")
	if p.Finished() {
		t.Error("a fresh processor with an unread trace should not be finished")
	}
}
