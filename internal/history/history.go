// Package history persists a one-line summary of every completed
// simulation run, grounded on sarchlab-akita's tracing package (dbtracer.go,
// sqlite.go, csvtracewriter.go) — see SPEC_FULL.md's DOMAIN STACK section.
// It is purely observational: nothing here feeds back into the coherence
// engine.
package history

import "github.com/rs/xid"

// RunSummary is one row of run history.
type RunSummary struct {
	RunID             string
	TracePrefix       string
	SetIndexBits      int
	Associativity     int
	BlockBits         int
	FinalCycle        uint64
	TotalTransactions uint64
	TotalTrafficBytes uint64
	DurationMillis    int64
}

// Writer persists RunSummary rows to a backing store.
type Writer interface {
	Write(summary RunSummary) error
	Close() error
}

// NewRunID mints a globally unique, lexically sortable run identifier.
func NewRunID() string {
	return xid.New().String()
}

// NullWriter discards every summary. It is the default Writer when no
// history backend is configured.
type NullWriter struct{}

// Write implements Writer.
func (NullWriter) Write(RunSummary) error { return nil }

// Close implements Writer.
func (NullWriter) Close() error { return nil }
