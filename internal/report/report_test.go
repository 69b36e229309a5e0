package report

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Readm/mesisim/bus"
	"github.com/Readm/mesisim/core"
	"github.com/Readm/mesisim/hooks"
	"github.com/Readm/mesisim/internal/hostinfo"
	"github.com/Readm/mesisim/sim"
	"github.com/Readm/mesisim/stats"
)

func TestRenderIncludesEveryFieldForEveryCore(t *testing.T) {
	cfg := &sim.Config{TracePrefix: "app", SetIndexBits: 2, Associativity: 2, BlockBits: 4}
	st := stats.New(core.NumCores)
	st.RecordAccess(0, core.OpRead)
	st.RecordMiss(0)

	b, err := bus.New(cfg.BlockSizeBytes(), st, hooks.NewPluginBroker())
	require.NoError(t, err)

	out := Render(cfg, st, b)

	assert.Contains(t, out, "Trace Prefix: app")
	assert.Contains(t, out, "Number of Sets: 4")
	assert.Contains(t, out, "Block Size (Bytes): 16")
	for i := 0; i < core.NumCores; i++ {
		assert.Contains(t, out, "Core "+string(rune('0'+i))+" Statistics:")
	}
	assert.Contains(t, out, "Cache Miss Rate: 100.0000%")
	assert.Contains(t, out, "Overall Bus Summary:")
}

func TestRenderOrdersCoresBeforeTheOverallSummary(t *testing.T) {
	cfg := &sim.Config{TracePrefix: "app", SetIndexBits: 1, Associativity: 1, BlockBits: 2}
	st := stats.New(core.NumCores)
	b, err := bus.New(cfg.BlockSizeBytes(), st, hooks.NewPluginBroker())
	require.NoError(t, err)

	out := Render(cfg, st, b)
	lastCoreIdx := strings.LastIndex(out, "Core 3 Statistics:")
	summaryIdx := strings.Index(out, "Overall Bus Summary:")
	if lastCoreIdx == -1 || summaryIdx == -1 || summaryIdx < lastCoreIdx {
		t.Errorf("expected the overall summary to follow every per-core section, got:\n%s", out)
	}
}

func TestRenderHostFooterIncludesResourceFigures(t *testing.T) {
	out := RenderHostFooter(hostinfo.Snapshot{LogicalCPUs: 8, TotalMemoryBytes: 1024, AvailableMemoryBytes: 512})
	assert.Contains(t, out, "Logical CPUs: 8")
	assert.Contains(t, out, "Total Memory (Bytes): 1024")
	assert.Contains(t, out, "Available Memory (Bytes): 512")
}
