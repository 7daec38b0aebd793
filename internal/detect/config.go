// Package detect implements the duplicate detection engine: per-candidate
// match classification against the existing ledger and batch orchestration
// of classification and resolution.
package detect

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wealthwise/dedup/internal/common"
)

// Config holds the tunable thresholds and tolerances of the engine.
// Defaults match the shipped behavior; deployments override them through
// the configuration file rather than code changes.
type Config struct {
	// HighThreshold is the minimum composite score for a fuzzy match to
	// count as a duplicate outright.
	HighThreshold float64

	// PossibleThreshold is the minimum composite score for a fuzzy match
	// to be surfaced at all. Scores in [PossibleThreshold, HighThreshold)
	// are flagged as lower-confidence duplicates needing review.
	PossibleThreshold float64

	// DescriptionWeight scales the description similarity percentage in
	// the composite score.
	DescriptionWeight float64

	// AmountBonus is added when candidate and existing amounts are
	// exactly equal.
	AmountBonus float64

	// DateBonus is added when candidate and existing dates fall on the
	// same calendar day.
	DateBonus float64

	// DateTolerance is the fuzzy matching window around the candidate
	// date. Existing transactions outside it are not scored.
	DateTolerance time.Duration

	// AmountTolerance is the relative amount difference allowed through
	// the fuzzy gate, e.g. 0.01 for one percent.
	AmountTolerance decimal.Decimal

	// MaxBatchSize caps the number of candidates per batch. Larger
	// imports must be chunked by the caller.
	MaxBatchSize int

	// Workers is the number of goroutines classifying candidates
	// concurrently within one batch.
	Workers int
}

// DefaultConfig returns the engine defaults.
func DefaultConfig() Config {
	return Config{
		HighThreshold:     90,
		PossibleThreshold: 70,
		DescriptionWeight: 0.6,
		AmountBonus:       20,
		DateBonus:         10,
		DateTolerance:     24 * time.Hour,
		AmountTolerance:   decimal.NewFromFloat(0.01),
		MaxBatchSize:      100,
		Workers:           4,
	}
}

// Validate checks that the configuration is internally consistent.
func (c Config) Validate() error {
	if c.PossibleThreshold > c.HighThreshold {
		return fmt.Errorf("%w: possible threshold %.2f exceeds high threshold %.2f",
			common.ErrInvalidConfig, c.PossibleThreshold, c.HighThreshold)
	}
	if c.HighThreshold > 100 || c.PossibleThreshold < 0 {
		return fmt.Errorf("%w: thresholds must lie within 0..100", common.ErrInvalidConfig)
	}
	if c.DateTolerance < 0 {
		return fmt.Errorf("%w: negative date tolerance", common.ErrInvalidConfig)
	}
	if c.AmountTolerance.IsNegative() {
		return fmt.Errorf("%w: negative amount tolerance", common.ErrInvalidConfig)
	}
	if c.MaxBatchSize <= 0 {
		return fmt.Errorf("%w: max batch size must be positive", common.ErrInvalidConfig)
	}
	if c.Workers <= 0 {
		return fmt.Errorf("%w: workers must be positive", common.ErrInvalidConfig)
	}
	return nil
}
