package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/schollz/progressbar/v3"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"github.com/wealthwise/dedup/internal/cli"
	"github.com/wealthwise/dedup/internal/detect"
	"github.com/wealthwise/dedup/internal/ingest"
	"github.com/wealthwise/dedup/internal/model"
	"github.com/wealthwise/dedup/internal/storage"
)

// openStorage opens the configured database and applies pending
// migrations.
func openStorage() (*storage.SQLiteStorage, error) {
	dbPath := viper.GetString("database.path")
	if dbPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		dbPath = filepath.Join(home, ".local", "share", "dedup", "ledger.db")
	}
	return storage.NewSQLiteStorage(dbPath)
}

// engineConfig builds the detection config from defaults overridden by
// any detect.* configuration keys.
func engineConfig() (detect.Config, error) {
	cfg := detect.DefaultConfig()

	if viper.IsSet("detect.high_threshold") {
		cfg.HighThreshold = viper.GetFloat64("detect.high_threshold")
	}
	if viper.IsSet("detect.possible_threshold") {
		cfg.PossibleThreshold = viper.GetFloat64("detect.possible_threshold")
	}
	if viper.IsSet("detect.date_tolerance") {
		cfg.DateTolerance = viper.GetDuration("detect.date_tolerance")
	}
	if viper.IsSet("detect.amount_tolerance") {
		tolerance, err := decimal.NewFromString(viper.GetString("detect.amount_tolerance"))
		if err != nil {
			return cfg, fmt.Errorf("invalid detect.amount_tolerance: %w", err)
		}
		cfg.AmountTolerance = tolerance
	}
	if viper.IsSet("detect.max_batch_size") {
		cfg.MaxBatchSize = viper.GetInt("detect.max_batch_size")
	}
	if viper.IsSet("detect.workers") {
		cfg.Workers = viper.GetInt("detect.workers")
	}

	return cfg, cfg.Validate()
}

// columnMapping builds the CSV mapping from import.* configuration keys,
// falling back to the default export format.
func columnMapping() ingest.ColumnMapping {
	mapping := ingest.DefaultMapping()
	if v := viper.GetString("import.date_column"); v != "" {
		mapping.Date = v
	}
	if v := viper.GetString("import.amount_column"); v != "" {
		mapping.Amount = v
	}
	if v := viper.GetString("import.description_column"); v != "" {
		mapping.Description = v
	}
	if v := viper.GetString("import.kind_column"); v != "" {
		mapping.Kind = v
	}
	if v := viper.GetString("import.reference_column"); v != "" {
		mapping.Reference = v
	}
	if v := viper.GetString("import.date_format"); v != "" {
		mapping.DateFormat = v
	}
	return mapping
}

// classifyProgress returns a progress option rendering a terminal bar,
// or no option when quiet is set.
func classifyProgress(total int, quiet bool) []detect.Option {
	if quiet {
		return nil
	}
	bar := progressbar.NewOptions(total,
		progressbar.OptionSetDescription("classifying"),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionClearOnFinish(),
	)
	return []detect.Option{detect.WithProgress(func(_, _ int) {
		_ = bar.Add(1)
	})}
}

// renderSummary formats a batch summary for the terminal.
func renderSummary(summary *model.BatchSummary) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s  %d new\n", cli.NewIcon, summary.NewCount)
	fmt.Fprintf(&b, "%s  %d duplicates\n", cli.DuplicateIcon, summary.DuplicateCount)
	fmt.Fprintf(&b, "%s  %d possible duplicates\n", cli.WarningIcon, summary.PossibleCount)
	if len(summary.Rejected) > 0 {
		fmt.Fprintf(&b, "%s  %d rejected rows\n", cli.ErrorIcon, len(summary.Rejected))
	}

	for _, verdict := range summary.Verdicts {
		if verdict.Result.MatchType == model.MatchNone {
			continue
		}
		fmt.Fprintf(&b, "\n%s  %s %s  %s\n",
			cli.SubtleStyle.Render(verdict.Candidate.Date.Format("2006-01-02")),
			verdict.Candidate.Amount.StringFixed(2),
			verdict.Candidate.Description,
			cli.SubtleStyle.Render(fmt.Sprintf("%.2f%% vs %s (%s)",
				verdict.Result.Confidence,
				verdict.Result.MatchedTransactionID,
				verdict.Result.Reason)))
	}

	for _, rejected := range summary.Rejected {
		fmt.Fprintf(&b, "\n%s\n", cli.FormatError(fmt.Sprintf("row %d: %v", rejected.Index+1, rejected.Err)))
	}

	return cli.RenderBox("Classification summary", strings.TrimRight(b.String(), "\n"))
}
