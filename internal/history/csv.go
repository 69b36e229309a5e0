package history

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"github.com/tebeka/atexit"
)

var csvHeader = []string{
	"run_id", "trace_prefix", "set_index_bits", "associativity", "block_bits",
	"final_cycle", "total_transactions", "total_traffic_bytes", "duration_millis",
}

// CSVWriter appends one row per run to a flat CSV file, grounded on
// sarchlab-akita/tracing/csvtracewriter.go. It writes the header only the
// first time the file is created.
type CSVWriter struct {
	file   *os.File
	writer *csv.Writer
}

// NewCSVWriter opens path for appending, writing the header row if the
// file is new, and registers a flush-and-close with atexit.Register; that
// handler runs only when the process exits through atexit.Exit. Only
// summaries passed to Write are recorded.
func NewCSVWriter(path string) (*CSVWriter, error) {
	_, statErr := os.Stat(path)
	needsHeader := os.IsNotExist(statErr)

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("history: opening %q: %w", path, err)
	}

	w := &CSVWriter{file: f, writer: csv.NewWriter(f)}

	if needsHeader {
		if err := w.writer.Write(csvHeader); err != nil {
			f.Close()
			return nil, fmt.Errorf("history: writing csv header: %w", err)
		}
		w.writer.Flush()
	}

	atexit.Register(func() { _ = w.Close() })
	return w, nil
}

// Write implements Writer.
func (w *CSVWriter) Write(summary RunSummary) error {
	if summary.RunID == "" {
		summary.RunID = NewRunID()
	}
	row := []string{
		summary.RunID,
		summary.TracePrefix,
		strconv.Itoa(summary.SetIndexBits),
		strconv.Itoa(summary.Associativity),
		strconv.Itoa(summary.BlockBits),
		strconv.FormatUint(summary.FinalCycle, 10),
		strconv.FormatUint(summary.TotalTransactions, 10),
		strconv.FormatUint(summary.TotalTrafficBytes, 10),
		strconv.FormatInt(summary.DurationMillis, 10),
	}
	if err := w.writer.Write(row); err != nil {
		return fmt.Errorf("history: writing csv row: %w", err)
	}
	w.writer.Flush()
	return w.writer.Error()
}

// Close implements Writer.
func (w *CSVWriter) Close() error {
	w.writer.Flush()
	return w.file.Close()
}
