package main

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/wealthwise/dedup/internal/cli"
	"github.com/wealthwise/dedup/internal/detect"
	"github.com/wealthwise/dedup/internal/ingest"
	"github.com/wealthwise/dedup/internal/model"
)

func importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <statement.csv>",
		Short: "Classify a statement and apply resolutions to the ledger",
		Long: `Classify every statement row against the ledger, then apply the
chosen bulk resolutions: new rows are imported, recognized duplicates
skipped. Possible duplicates are skipped unless --force-possible is
given; review them with "dedup detect" first.`,
		Args: cobra.ExactArgs(1),
		RunE: runImport,
	}

	cmd.Flags().String("account", "", "account the statement belongs to (required)")
	cmd.Flags().Bool("quiet", false, "suppress the progress bar")
	cmd.Flags().Bool("force-possible", false, "import possible duplicates instead of skipping them")
	cmd.Flags().String("source-label", "", "label recorded with imported rows (default: statement file name)")
	_ = cmd.MarkFlagRequired("account")

	return cmd
}

func runImport(cmd *cobra.Command, args []string) error {
	accountID, _ := cmd.Flags().GetString("account")
	quiet, _ := cmd.Flags().GetBool("quiet")
	forcePossible, _ := cmd.Flags().GetBool("force-possible")
	sourceLabel, _ := cmd.Flags().GetString("source-label")
	if sourceLabel == "" {
		sourceLabel = filepath.Base(args[0])
	}

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

	actions := detect.SkipAllDuplicates(summary)
	for i, action := range detect.ImportAllNew(summary) {
		actions[i] = action
	}
	// Possible-tier verdicts are duplicates too, so SkipAllDuplicates
	// already covers them; --force-possible overrides that to a forced
	// insert with a link back to the match.
	if forcePossible {
		for i, verdict := range summary.Verdicts {
			if verdict.Result.IsDuplicate && verdict.Result.Confidence < cfg.HighThreshold {
				actions[i] = model.ActionForce
			}
		}
	}

	mutations, actionErrs := orchestrator.Resolve(summary, actions, model.ImportMetadata{
		SourceLabel:     sourceLabel,
		FileFingerprint: result.Fingerprint,
	})
	for _, actionErr := range actionErrs {
		slog.Warn("Skipping unresolved candidate", "error", actionErr)
	}

	if len(mutations) == 0 {
		cmd.Println(cli.FormatWarning("Nothing to import"))
		return nil
	}

	report, err := store.ApplyMutations(ctx, mutations)
	if err != nil {
		return fmt.Errorf("failed to apply mutations: %w", err)
	}
	orchestrator.InvalidateAccount(accountID)

	for _, failure := range report.Failures {
		cmd.Println(cli.FormatError(fmt.Sprintf("mutation %d failed: %v", failure.Index, failure.Err)))
	}
	cmd.Println(cli.FormatSuccess(fmt.Sprintf("Imported %d transactions (session %s)",
		len(report.AppliedIDs), summary.SessionRef)))
	return nil
}
