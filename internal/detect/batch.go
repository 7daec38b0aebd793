package detect

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/wealthwise/dedup/internal/common"
	"github.com/wealthwise/dedup/internal/extract"
	"github.com/wealthwise/dedup/internal/model"
)

// LedgerReader is the slice of the storage layer the orchestrator needs:
// one ranged read per batch. It never writes through this interface.
type LedgerReader interface {
	ListTransactions(ctx context.Context, accountID string, from, to time.Time) ([]model.LedgerTransaction, error)
}

// ProgressFunc is called after each candidate is classified.
type ProgressFunc func(done, total int)

// Orchestrator runs the classifier over an import batch and turns the
// user's resolution choices into ledger mutations. It performs no writes
// itself; mutations are applied by the storage layer.
type Orchestrator struct {
	reader     LedgerReader
	classifier *Classifier
	cache      Cache
	progress   ProgressFunc
	cfg        Config
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithCache installs a prefetch cache shared across batches.
func WithCache(c Cache) Option {
	return func(o *Orchestrator) { o.cache = c }
}

// WithProgress installs a callback invoked after each classified
// candidate. The callback must be safe for concurrent use.
func WithProgress(fn ProgressFunc) Option {
	return func(o *Orchestrator) { o.progress = fn }
}

// NewOrchestrator creates an Orchestrator over the given ledger reader.
func NewOrchestrator(reader LedgerReader, cfg Config, opts ...Option) (*Orchestrator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := &Orchestrator{
		reader:     reader,
		classifier: NewClassifier(cfg),
		cfg:        cfg,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// ClassifyBatch classifies every candidate in the batch against a single
// prefetched window of the account's ledger. Candidates failing
// validation are reported in the summary's Rejected list and excluded
// from classification. The ledger read either succeeds completely or the
// whole batch fails; no partial classification is attempted.
func (o *Orchestrator) ClassifyBatch(ctx context.Context, accountID string, candidates []model.TransactionCandidate) (*model.BatchSummary, error) {
	if len(candidates) == 0 {
		return nil, common.ErrNoCandidates
	}
	if len(candidates) > o.cfg.MaxBatchSize {
		return nil, fmt.Errorf("%w: %d candidates, maximum is %d",
			common.ErrBatchTooLarge, len(candidates), o.cfg.MaxBatchSize)
	}

	summary := &model.BatchSummary{
		SessionRef: uuid.NewString(),
		AccountID:  accountID,
	}

	valid := make([]model.TransactionCandidate, 0, len(candidates))
	for i, candidate := range candidates {
		if err := candidate.Validate(); err != nil {
			summary.Rejected = append(summary.Rejected, model.RejectedCandidate{
				Index:     i,
				Candidate: candidate,
				Err:       err,
			})
			continue
		}
		valid = append(valid, candidate)
	}
	if len(valid) == 0 {
		slog.Warn("Batch contained no valid candidates",
			"account_id", accountID,
			"rejected", len(summary.Rejected))
		return summary, nil
	}

	from, to := o.window(valid)
	existing, err := o.fetchWindow(ctx, accountID, from, to)
	if err != nil {
		return nil, fmt.Errorf("prefetching ledger window: %w", err)
	}

	slog.Debug("Classifying batch",
		"account_id", accountID,
		"candidates", len(valid),
		"existing_in_window", len(existing),
		"session_ref", summary.SessionRef)

	results := o.classifyAll(ctx, valid, existing)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	summary.Verdicts = make([]model.CandidateVerdict, len(valid))
	for i, candidate := range valid {
		result := results[i]
		summary.Verdicts[i] = model.CandidateVerdict{Candidate: candidate, Result: result}
		switch {
		case result.MatchType == model.MatchNone:
			summary.NewCount++
		case result.MatchType == model.MatchExact || result.Confidence >= o.cfg.HighThreshold:
			summary.DuplicateCount++
		default:
			summary.PossibleCount++
		}
	}
	return summary, nil
}

// window computes the ledger read bounds: the batch's date span expanded
// by the fuzzy tolerance on both sides.
func (o *Orchestrator) window(candidates []model.TransactionCandidate) (time.Time, time.Time) {
	minDate := candidates[0].Date
	maxDate := candidates[0].Date
	for _, c := range candidates[1:] {
		if c.Date.Before(minDate) {
			minDate = c.Date
		}
		if c.Date.After(maxDate) {
			maxDate = c.Date
		}
	}
	return minDate.Add(-o.cfg.DateTolerance), maxDate.Add(o.cfg.DateTolerance)
}

func (o *Orchestrator) fetchWindow(ctx context.Context, accountID string, from, to time.Time) ([]model.LedgerTransaction, error) {
	if o.cache != nil {
		if cached, ok := o.cache.Get(accountID, from, to); ok {
			return cached, nil
		}
	}

	var existing []model.LedgerTransaction
	err := common.WithRetry(ctx, func() error {
		var listErr error
		existing, listErr = o.reader.ListTransactions(ctx, accountID, from, to)
		return listErr
	}, common.RetryOptions{})
	if err != nil {
		return nil, err
	}

	if o.cache != nil {
		o.cache.Put(accountID, from, to, existing)
	}
	return existing, nil
}

// classifyAll fans the candidates out over a bounded worker pool. All
// workers share the one immutable existing-transaction set; results are
// written by input index so output order never depends on scheduling.
func (o *Orchestrator) classifyAll(ctx context.Context, candidates []model.TransactionCandidate, existing []model.LedgerTransaction) []model.MatchResult {
	results := make([]model.MatchResult, len(candidates))
	jobs := make(chan int)

	workers := o.cfg.Workers
	if workers > len(candidates) {
		workers = len(candidates)
	}

	var done atomic.Int64
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				results[i] = o.classifier.Classify(candidates[i], existing)
				if o.progress != nil {
					o.progress(int(done.Add(1)), len(candidates))
				}
			}
		}()
	}

feed:
	for i := range candidates {
		select {
		case jobs <- i:
		case <-ctx.Done():
			// Unfed candidates come back as zero-value results; the
			// caller observes cancellation through ctx itself.
			break feed
		}
	}
	close(jobs)
	wg.Wait()
	return results
}

// ActionError reports a resolution problem for one candidate. Other
// candidates in the same Resolve call are unaffected.
type ActionError struct {
	Err   error
	Index int
}

func (e ActionError) Error() string {
	return fmt.Sprintf("candidate %d: %v", e.Index, e.Err)
}

func (e ActionError) Unwrap() error {
	return e.Err
}

// Resolve turns per-candidate actions into ledger mutations. Actions are
// keyed by verdict index. Skip produces no mutation; import and force
// carry the session's import metadata; update targets the matched
// transaction. Invalid or missing actions are collected per candidate
// without aborting the rest. Resolve itself has no side effects.
func (o *Orchestrator) Resolve(summary *model.BatchSummary, actions map[int]model.ResolutionAction, meta model.ImportMetadata) ([]model.LedgerMutation, []ActionError) {
	meta.SessionRef = summary.SessionRef
	if meta.ImportedAt.IsZero() {
		meta.ImportedAt = time.Now().UTC()
	}

	var mutations []model.LedgerMutation
	var errs []ActionError

	for i, verdict := range summary.Verdicts {
		action, ok := actions[i]
		if !ok {
			errs = append(errs, ActionError{
				Index: i,
				Err:   fmt.Errorf("%w: no action chosen", common.ErrInvalidAction),
			})
			continue
		}
		if !model.ValidAction(action) {
			errs = append(errs, ActionError{
				Index: i,
				Err:   fmt.Errorf("%w: %q", common.ErrInvalidAction, action),
			})
			continue
		}

		switch action {
		case model.ActionSkip:
			// Discarded, no mutation.
		case model.ActionImport:
			mutations = append(mutations, model.LedgerMutation{
				Action:    model.ActionImport,
				Candidate: verdict.Candidate,
				Metadata:  candidateMetadata(meta, verdict.Candidate, ""),
			})
		case model.ActionUpdate:
			if verdict.Result.MatchedTransactionID == "" {
				errs = append(errs, ActionError{
					Index: i,
					Err:   fmt.Errorf("%w: update requires a matched transaction", common.ErrInvalidAction),
				})
				continue
			}
			mutations = append(mutations, model.LedgerMutation{
				Action:               model.ActionUpdate,
				MatchedTransactionID: verdict.Result.MatchedTransactionID,
				Candidate:            verdict.Candidate,
			})
		case model.ActionForce:
			mutations = append(mutations, model.LedgerMutation{
				Action:               model.ActionForce,
				MatchedTransactionID: verdict.Result.MatchedTransactionID,
				Candidate:            verdict.Candidate,
				Metadata:             candidateMetadata(meta, verdict.Candidate, verdict.Result.MatchedTransactionID),
			})
		}
	}
	return mutations, errs
}

// candidateMetadata fills the per-candidate import metadata from the
// session template.
func candidateMetadata(meta model.ImportMetadata, candidate model.TransactionCandidate, linkedID string) model.ImportMetadata {
	if ref, ok := extract.Reference(candidate.Description, candidate.Reference); ok {
		meta.BankTransactionID = ref
	}
	meta.LinkedTransactionID = linkedID
	return meta
}

// InvalidateAccount drops cached ledger windows for an account. Call it
// after the storage layer applies mutations.
func (o *Orchestrator) InvalidateAccount(accountID string) {
	if o.cache != nil {
		o.cache.Invalidate(accountID)
	}
}

// SkipAllDuplicates returns a skip action for every candidate whose
// verdict marked it a duplicate.
func SkipAllDuplicates(summary *model.BatchSummary) map[int]model.ResolutionAction {
	actions := make(map[int]model.ResolutionAction)
	for i, verdict := range summary.Verdicts {
		if verdict.Result.IsDuplicate {
			actions[i] = model.ActionSkip
		}
	}
	return actions
}

// ImportAllNew returns an import action for every candidate with no
// match at all.
func ImportAllNew(summary *model.BatchSummary) map[int]model.ResolutionAction {
	actions := make(map[int]model.ResolutionAction)
	for i, verdict := range summary.Verdicts {
		if verdict.Result.MatchType == model.MatchNone {
			actions[i] = model.ActionImport
		}
	}
	return actions
}
