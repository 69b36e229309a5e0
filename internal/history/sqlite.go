package history

import (
	"database/sql"
	"fmt"

	// Need to use SQLite connections.
	_ "github.com/mattn/go-sqlite3"

	"github.com/tebeka/atexit"
)

// SQLiteWriter persists run summaries to a local SQLite database, grounded
// on sarchlab-akita/tracing/sqlite.go's SQLiteTraceWriter.
type SQLiteWriter struct {
	db        *sql.DB
	statement *sql.Stmt
}

// NewSQLiteWriter opens (or creates) the database at path and prepares the
// run_history table. It registers Close with atexit.Register, mirroring
// dbtracer.go's atexit.Register(t.Terminate) pattern; that handler runs only
// when the process exits through atexit.Exit. Only summaries passed to
// Write are recorded.
func NewSQLiteWriter(path string) (*SQLiteWriter, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("history: opening %q: %w", path, err)
	}

	w := &SQLiteWriter{db: db}
	if err := w.createTable(); err != nil {
		db.Close()
		return nil, err
	}
	if err := w.prepareStatement(); err != nil {
		db.Close()
		return nil, err
	}

	atexit.Register(func() { _ = w.Close() })
	return w, nil
}

func (w *SQLiteWriter) createTable() error {
	_, err := w.db.Exec(`
		CREATE TABLE IF NOT EXISTS run_history (
			run_id             VARCHAR(20) PRIMARY KEY,
			trace_prefix       TEXT NOT NULL,
			set_index_bits     INTEGER NOT NULL,
			associativity      INTEGER NOT NULL,
			block_bits         INTEGER NOT NULL,
			final_cycle        INTEGER NOT NULL,
			total_transactions INTEGER NOT NULL,
			total_traffic_bytes INTEGER NOT NULL,
			duration_millis    INTEGER NOT NULL
		);
	`)
	if err != nil {
		return fmt.Errorf("history: creating run_history table: %w", err)
	}
	return nil
}

func (w *SQLiteWriter) prepareStatement() error {
	stmt, err := w.db.Prepare(`
		INSERT INTO run_history (
			run_id, trace_prefix, set_index_bits, associativity, block_bits,
			final_cycle, total_transactions, total_traffic_bytes, duration_millis
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("history: preparing insert statement: %w", err)
	}
	w.statement = stmt
	return nil
}

// Write implements Writer.
func (w *SQLiteWriter) Write(summary RunSummary) error {
	if summary.RunID == "" {
		summary.RunID = NewRunID()
	}
	_, err := w.statement.Exec(
		summary.RunID,
		summary.TracePrefix,
		summary.SetIndexBits,
		summary.Associativity,
		summary.BlockBits,
		summary.FinalCycle,
		summary.TotalTransactions,
		summary.TotalTrafficBytes,
		summary.DurationMillis,
	)
	if err != nil {
		return fmt.Errorf("history: inserting run summary: %w", err)
	}
	return nil
}

// Close implements Writer.
func (w *SQLiteWriter) Close() error {
	if w.statement != nil {
		_ = w.statement.Close()
	}
	return w.db.Close()
}
