package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/wealthwise/dedup/internal/detect"
	"github.com/wealthwise/dedup/internal/ingest"
)

func detectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "detect <statement.csv>",
		Short: "Classify a statement against the ledger without importing",
		Long: `Parse a bank statement and report which rows are new, which are
duplicates of existing ledger entries, and which need review. Nothing
is written; use "dedup import" to apply resolutions.`,
		Args: cobra.ExactArgs(1),
		RunE: runDetect,
	}

	cmd.Flags().String("account", "", "account the statement belongs to (required)")
	cmd.Flags().Bool("quiet", false, "suppress the progress bar")
	_ = cmd.MarkFlagRequired("account")

	return cmd
}

func runDetect(cmd *cobra.Command, args []string) error {
	accountID, _ := cmd.Flags().GetString("account")
	quiet, _ := cmd.Flags().GetBool("quiet")

	result, err := ingest.ParseFile(args[0], accountID, columnMapping())
	if err != nil {
		return fmt.Errorf("failed to parse statement: %w", err)
	}
	for _, rowErr := range result.RowErrors {
		slog.Warn("Skipping unparseable row", "line", rowErr.Line, "error", rowErr.Err)
	}
	if len(result.Candidates) == 0 {
		return fmt.Errorf("no usable rows in %s", args[0])
	}

	cfg, err := engineConfig()
	if err != nil {
		return err
	}

	store, err := openStorage()
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() { _ = store.Close() }()

	ctx := cmd.Context()
	if err := store.Migrate(ctx); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	orchestrator, err := detect.NewOrchestrator(store, cfg,
		classifyProgress(len(result.Candidates), quiet)...)
	if err != nil {
		return err
	}

	summary, err := orchestrator.ClassifyBatch(ctx, accountID, result.Candidates)
	if err != nil {
		return fmt.Errorf("classification failed: %w", err)
	}

	cmd.Println(renderSummary(summary))
	return nil
}
