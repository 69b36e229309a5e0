package sim

import (
	"errors"
	"fmt"

	"github.com/Readm/mesisim/internal/logging"
)

// DefaultSanityCycleBound is the runaway-simulation guard from spec.md
// §5/§7. The original source carries no such bound (original_source's
// driver loop runs unconditionally until every core finishes); this value
// is a fresh Open Question decision (see DESIGN.md), sized generously
// above what any of the end-to-end scenarios in spec.md §8 would ever
// reach (the slowest, scenario 6, finishes within ~400 cycles).
const DefaultSanityCycleBound = 50_000_000

// Config holds the geometry and I/O parameters for one simulation run,
// mirroring the CLI surface in spec.md §6 plus the ambient additions this
// module carries beyond the distilled spec (ledger path, host-info
// footer, sanity bound override).
type Config struct {
	TracePrefix   string
	SetIndexBits  int
	Associativity int
	BlockBits     int
	OutputPath    string

	SanityCycleBound uint64

	HistoryDBPath  string
	HistoryCSVPath string
	ShowHostInfo   bool
}

// Validate applies the structural checks from spec.md §6/§7 and
// original_source/main.cpp, and fills in ambient defaults. Configuration
// errors are fatal at startup and are reported here before any cycle is
// simulated.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	if c.TracePrefix == "" {
		return errors.New("trace prefix (-t) is required")
	}
	if c.SetIndexBits < 0 {
		return fmt.Errorf("set-index bits (-s) must be >= 0, got %d", c.SetIndexBits)
	}
	if c.Associativity <= 0 {
		return fmt.Errorf("associativity (-E) must be > 0, got %d", c.Associativity)
	}
	if c.BlockBits < 2 {
		return fmt.Errorf("block-offset bits (-b) must be >= 2, got %d", c.BlockBits)
	}
	if c.SetIndexBits+c.BlockBits >= 64 {
		// Non-fatal: address bits beyond the 64-bit address width are
		// simply treated as zero tag bits per spec.md §4.2's overflow
		// guard (original_source/main.cpp warns rather than rejects).
		logging.Default().Warnf("set-index bits + block bits (%d) meets or exceeds the address width; tags will be truncated", c.SetIndexBits+c.BlockBits)
	}

	if c.SanityCycleBound == 0 {
		c.SanityCycleBound = DefaultSanityCycleBound
	}

	return nil
}

// Geometry returns the validated (s, E, b) triple as unsigned values for
// downstream cache/bus construction.
func (c *Config) Geometry() (s uint, e uint, b uint) {
	return uint(c.SetIndexBits), uint(c.Associativity), uint(c.BlockBits)
}

// BlockSizeBytes returns 2^b for this config's block-offset bits.
func (c *Config) BlockSizeBytes() uint64 {
	return uint64(1) << uint(c.BlockBits)
}
