package detect

import (
	"fmt"
	"sort"
	"time"

	"github.com/wealthwise/dedup/internal/extract"
	"github.com/wealthwise/dedup/internal/model"
	"github.com/wealthwise/dedup/internal/similarity"
)

// Classifier applies the tiered decision policy to one candidate against
// the prefetched set of existing transactions. It is stateless and safe
// for concurrent use.
type Classifier struct {
	cfg Config
}

// NewClassifier creates a Classifier with the given thresholds.
func NewClassifier(cfg Config) *Classifier {
	return &Classifier{cfg: cfg}
}

// scored pairs an existing transaction with its composite score and the
// tie-break distance to the candidate date.
type scored struct {
	tx       model.LedgerTransaction
	score    float64
	dateDiff time.Duration
}

// Classify returns the verdict for one candidate. A reference match wins
// unconditionally over any fuzzy score; fuzzy scoring only runs when no
// existing transaction shares the candidate's normalized reference.
// Classification never fails for a validated candidate.
func (c *Classifier) Classify(candidate model.TransactionCandidate, existing []model.LedgerTransaction) model.MatchResult {
	if len(existing) == 0 {
		return noMatch()
	}

	if ref, ok := extract.Reference(candidate.Description, candidate.Reference); ok {
		if match, found := c.referenceMatch(candidate, ref, existing); found {
			return match
		}
	}

	return c.fuzzyMatch(candidate, existing)
}

// referenceMatch looks for an existing transaction with the same
// normalized bank reference. When several share it, the closest date and
// then the smaller identifier win, keeping results deterministic.
func (c *Classifier) referenceMatch(candidate model.TransactionCandidate, ref string, existing []model.LedgerTransaction) (model.MatchResult, bool) {
	var best *model.LedgerTransaction
	var bestDiff time.Duration

	for i := range existing {
		tx := &existing[i]
		existingRef, ok := extract.Reference(tx.Description, tx.Reference)
		if !ok || existingRef != ref {
			continue
		}
		diff := absDuration(candidate.Date.Sub(tx.Date))
		if best == nil || diff < bestDiff || (diff == bestDiff && tx.ID < best.ID) {
			best = tx
			bestDiff = diff
		}
	}

	if best == nil {
		return model.MatchResult{}, false
	}
	return model.MatchResult{
		IsDuplicate:          true,
		MatchType:            model.MatchExact,
		Confidence:           100,
		MatchedTransactionID: best.ID,
		Reason:               "reference match",
		Matches: []model.ScoredMatch{
			{TransactionID: best.ID, Date: best.Date, Confidence: 100},
		},
	}, true
}

// fuzzyMatch scores every existing transaction of the same kind that
// passes the amount and date gate, then classifies the best score into
// the high, possible, or none tier.
func (c *Classifier) fuzzyMatch(candidate model.TransactionCandidate, existing []model.LedgerTransaction) model.MatchResult {
	var passed []scored

	for i := range existing {
		tx := &existing[i]
		if tx.Kind != candidate.Kind {
			continue
		}
		if !similarity.AmountProximity(candidate.Amount, tx.Amount, c.cfg.AmountTolerance) {
			continue
		}
		sameDay := similarity.SameDay(candidate.Date, tx.Date)
		if !sameDay && !similarity.DateProximity(candidate.Date, tx.Date, c.cfg.DateTolerance) {
			continue
		}

		score := c.cfg.DescriptionWeight * similarity.StringSimilarity(candidate.Description, tx.Description)
		if candidate.Amount.Equal(tx.Amount) {
			score += c.cfg.AmountBonus
		}
		if sameDay {
			score += c.cfg.DateBonus
		}
		passed = append(passed, scored{
			tx:       *tx,
			score:    similarity.Round2(score),
			dateDiff: absDuration(candidate.Date.Sub(tx.Date)),
		})
	}

	if len(passed) == 0 {
		return noMatch()
	}

	// Best score first; ties broken by closer date, then smaller ID.
	sort.Slice(passed, func(i, j int) bool {
		if passed[i].score != passed[j].score {
			return passed[i].score > passed[j].score
		}
		if passed[i].dateDiff != passed[j].dateDiff {
			return passed[i].dateDiff < passed[j].dateDiff
		}
		return passed[i].tx.ID < passed[j].tx.ID
	})

	var matches []model.ScoredMatch
	for _, s := range passed {
		if s.score >= c.cfg.PossibleThreshold {
			matches = append(matches, model.ScoredMatch{
				TransactionID: s.tx.ID,
				Date:          s.tx.Date,
				Confidence:    s.score,
			})
		}
	}

	best := passed[0]
	switch {
	case best.score >= c.cfg.HighThreshold:
		return model.MatchResult{
			IsDuplicate:          true,
			MatchType:            model.MatchFuzzy,
			Confidence:           best.score,
			MatchedTransactionID: best.tx.ID,
			Reason:               fmt.Sprintf("description, amount, and date similarity scored %.2f", best.score),
			Matches:              matches,
		}
	case best.score >= c.cfg.PossibleThreshold:
		return model.MatchResult{
			IsDuplicate:          true,
			MatchType:            model.MatchFuzzy,
			Confidence:           best.score,
			MatchedTransactionID: best.tx.ID,
			Reason:               fmt.Sprintf("possible duplicate scored %.2f, review recommended", best.score),
			Matches:              matches,
		}
	default:
		return noMatch()
	}
}

func noMatch() model.MatchResult {
	return model.MatchResult{
		MatchType: model.MatchNone,
		Reason:    "no similar transaction found",
	}
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
