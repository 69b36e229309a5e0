// Package main is the mesisim command-line entry point, grounded on
// sarchlab-akita's cmd/root.go cobra wiring (see SPEC_FULL.md's AMBIENT
// STACK section).
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Readm/mesisim/hooks"
	"github.com/Readm/mesisim/internal/history"
	"github.com/Readm/mesisim/internal/hostinfo"
	"github.com/Readm/mesisim/internal/logging"
	"github.com/Readm/mesisim/internal/report"
	"github.com/Readm/mesisim/sim"
)

var (
	flagTracePrefix   string
	flagSetIndexBits  int
	flagAssociativity int
	flagBlockBits     int
	flagOutputPath    string
	flagHistoryDB     string
	flagHistoryCSV    string
	flagShowHostInfo  bool
	flagVerbose       bool
)

var rootCmd = &cobra.Command{
	Use:   "mesisim",
	Short: "mesisim simulates a snooping MESI cache-coherence bus.",
	Long: "mesisim replays per-core memory-access traces through private L1 caches " +
		"kept coherent by a MESI protocol over a single shared bus, and reports " +
		"per-core and bus-wide statistics for the run.",
	RunE: runSimulation,
}

func init() {
	rootCmd.Flags().StringVarP(&flagTracePrefix, "trace", "t", "", "trace file prefix, one file per core (required)")
	rootCmd.Flags().IntVarP(&flagSetIndexBits, "set-bits", "s", 0, "number of set-index bits (required, >= 0)")
	rootCmd.Flags().IntVarP(&flagAssociativity, "assoc", "E", 0, "associativity, ways per set (required, > 0)")
	rootCmd.Flags().IntVarP(&flagBlockBits, "block-bits", "b", 0, "number of block-offset bits (required, >= 2)")
	rootCmd.Flags().StringVarP(&flagOutputPath, "output", "o", "", "write the report to this file instead of stdout")

	rootCmd.Flags().StringVar(&flagHistoryDB, "history-db", "", "append this run's summary to a SQLite database at this path")
	rootCmd.Flags().StringVar(&flagHistoryCSV, "history-csv", "", "append this run's summary to a CSV file at this path")
	rootCmd.Flags().BoolVar(&flagShowHostInfo, "host-info", false, "append a host-resource footer to the report")
	rootCmd.Flags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug-level logging")

	_ = rootCmd.MarkFlagRequired("trace")
	_ = rootCmd.MarkFlagRequired("set-bits")
	_ = rootCmd.MarkFlagRequired("assoc")
	_ = rootCmd.MarkFlagRequired("block-bits")
}

// Execute runs the root command and terminates the process with a non-zero
// status on any argument, configuration, or runtime error (spec.md §7).
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runSimulation(cmd *cobra.Command, args []string) error {
	if flagVerbose {
		logging.Default().SetLevel(logging.LevelDebug)
	}

	cfg := &sim.Config{
		TracePrefix:    flagTracePrefix,
		SetIndexBits:   flagSetIndexBits,
		Associativity:  flagAssociativity,
		BlockBits:      flagBlockBits,
		OutputPath:     flagOutputPath,
		HistoryDBPath:  flagHistoryDB,
		HistoryCSVPath: flagHistoryCSV,
		ShowHostInfo:   flagShowHostInfo,
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("mesisim: %w", err)
	}

	historyWriter, err := openHistoryWriter(cfg)
	if err != nil {
		return fmt.Errorf("mesisim: %w", err)
	}
	defer historyWriter.Close()

	broker := hooks.NewPluginBroker()

	simulator, err := sim.New(cfg, broker)
	if err != nil {
		return fmt.Errorf("mesisim: %w", err)
	}

	start := time.Now()
	finalCycle, runErr := simulator.Run()
	elapsed := time.Since(start)
	if runErr != nil {
		return fmt.Errorf("mesisim: %w", runErr)
	}

	out := report.Render(cfg, simulator.Stats(), simulator.Bus())
	if cfg.ShowHostInfo {
		if snap, err := hostinfo.Capture(); err != nil {
			logging.Default().Warnf("mesisim: could not capture host info: %v", err)
		} else {
			out += "\n" + report.RenderHostFooter(snap)
		}
	}

	if err := writeReport(cfg.OutputPath, out); err != nil {
		return fmt.Errorf("mesisim: %w", err)
	}

	summary := history.RunSummary{
		TracePrefix:       cfg.TracePrefix,
		SetIndexBits:      cfg.SetIndexBits,
		Associativity:     cfg.Associativity,
		BlockBits:         cfg.BlockBits,
		FinalCycle:        finalCycle,
		TotalTransactions: simulator.Bus().TotalTransactions(),
		TotalTrafficBytes: simulator.Stats().TotalBusTrafficBytes,
		DurationMillis:    elapsed.Milliseconds(),
	}
	if err := historyWriter.Write(summary); err != nil {
		logging.Default().Warnf("mesisim: could not record run history: %v", err)
	}

	return nil
}

func openHistoryWriter(cfg *sim.Config) (history.Writer, error) {
	switch {
	case cfg.HistoryDBPath != "":
		return history.NewSQLiteWriter(cfg.HistoryDBPath)
	case cfg.HistoryCSVPath != "":
		return history.NewCSVWriter(cfg.HistoryCSVPath)
	default:
		return history.NullWriter{}, nil
	}
}

func writeReport(path string, content string) error {
	if path == "" {
		_, err := fmt.Print(content)
		return err
	}
	return os.WriteFile(path, []byte(content), 0644)
}
