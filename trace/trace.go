// Package trace reads per-core memory-reference trace files: one line per
// access, "R"/"W" (case-insensitive) followed by a hexadecimal address
// (spec.md §6).
package trace

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/Readm/mesisim/core"
)

// Path builds the per-core trace file path from a base prefix, following
// the "<base>_proc<i>.trace" naming convention (spec.md §6).
func Path(prefix string, coreID int) string {
	return fmt.Sprintf("%s_proc%d.trace", prefix, coreID)
}

// Reader is a forward-only cursor over one core's trace file.
type Reader struct {
	file    *os.File
	scanner *bufio.Scanner
	done    bool
}

// Open opens the trace file for coreID under prefix. A missing or
// unreadable trace file is a fatal configuration error (spec.md §7).
func Open(prefix string, coreID int) (*Reader, error) {
	path := Path(prefix, coreID)
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("trace: could not open %q: %w", path, err)
	}
	return &Reader{file: f, scanner: bufio.NewScanner(f)}, nil
}

// Close releases the underlying file handle.
func (r *Reader) Close() error {
	if r == nil || r.file == nil {
		return nil
	}
	return r.file.Close()
}

// Next returns the next well-formed access record, skipping malformed
// lines silently (spec.md §6). ok is false once the trace is exhausted.
func (r *Reader) Next() (op core.Operation, address uint64, ok bool) {
	if r == nil || r.done {
		return "", 0, false
	}
	for r.scanner.Scan() {
		line := strings.TrimSpace(r.scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 2 {
			continue
		}
		opField := strings.ToUpper(fields[0])
		if opField != "R" && opField != "W" {
			continue
		}
		addrField := strings.TrimPrefix(strings.TrimPrefix(fields[1], "0x"), "0X")
		addr, err := strconv.ParseUint(addrField, 16, 64)
		if err != nil {
			continue
		}
		if opField == "R" {
			op = core.OpRead
		} else {
			op = core.OpWrite
		}
		return op, addr, true
	}
	r.done = true
	return "", 0, false
}
