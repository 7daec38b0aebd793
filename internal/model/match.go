package model

import "time"

// MatchType classifies how a candidate was matched against the ledger.
type MatchType string

// Match types.
const (
	MatchExact MatchType = "exact" // normalized bank references are equal
	MatchFuzzy MatchType = "fuzzy" // inferred from description/date/amount similarity
	MatchNone  MatchType = "none"  // no existing transaction resembles the candidate
)

// ScoredMatch is one existing transaction that scored above the minimum
// threshold for a candidate.
type ScoredMatch struct {
	TransactionID string
	Date          time.Time
	Confidence    float64
}

// MatchResult is the engine's verdict for one candidate.
//
// Invariants: MatchType == MatchExact implies Confidence == 100;
// MatchType == MatchNone implies MatchedTransactionID is empty.
type MatchResult struct {
	MatchType            MatchType
	MatchedTransactionID string
	Reason               string
	Matches              []ScoredMatch // all matches above the minimum threshold, best first
	Confidence           float64       // 0..100, two decimal places
	IsDuplicate          bool
}

// ResolutionAction is the user's chosen disposition for a classified
// candidate.
type ResolutionAction string

// Resolution actions.
const (
	ActionSkip   ResolutionAction = "skip"   // discard the candidate
	ActionImport ResolutionAction = "import" // insert as a new ledger entry
	ActionUpdate ResolutionAction = "update" // merge candidate fields into the matched transaction
	ActionForce  ResolutionAction = "force"  // insert as new despite a match, keeping a link to it
)

// ValidAction reports whether a is one of the four resolution actions.
func ValidAction(a ResolutionAction) bool {
	switch a {
	case ActionSkip, ActionImport, ActionUpdate, ActionForce:
		return true
	}
	return false
}

// CandidateVerdict pairs a candidate with its match result. Verdicts
// keep the input order of the batch.
type CandidateVerdict struct {
	Candidate TransactionCandidate
	Result    MatchResult
}

// RejectedCandidate is a candidate excluded from classification because
// it failed validation. Reported separately, never silently dropped.
type RejectedCandidate struct {
	Err       error
	Candidate TransactionCandidate
	Index     int
}

// BatchSummary aggregates one verdict per valid candidate plus counts of
// the three outcomes. Immutable once classification finishes.
type BatchSummary struct {
	SessionRef     string
	AccountID      string
	Verdicts       []CandidateVerdict
	Rejected       []RejectedCandidate
	NewCount       int // matchType none
	DuplicateCount int // exact or high-confidence fuzzy
	PossibleCount  int // fuzzy below the high-confidence threshold
}

// LedgerMutation describes one ledger write produced by resolution. Skip
// actions produce no mutation. The storage layer applies each mutation
// in its own transaction.
type LedgerMutation struct {
	Action               ResolutionAction
	MatchedTransactionID string
	Candidate            TransactionCandidate
	Metadata             ImportMetadata
}
