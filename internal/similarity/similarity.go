// Package similarity provides the pure scoring functions the match
// classifier composes: edit-distance similarity between descriptions and
// proximity checks for dates and amounts.
package similarity

import (
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/texttheater/golang-levenshtein/levenshtein"
)

var nonAlnumRuns = regexp.MustCompile(`[^a-z0-9]+`)

// NormalizeText lowercases a description, trims it, and collapses runs
// of non-alphanumeric characters to single spaces.
func NormalizeText(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = nonAlnumRuns.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// StringSimilarity scores two descriptions between 0 and 100. Two empty
// strings are fully similar. When one normalized description contains
// the other they describe the same merchant with extra boilerplate
// ("Grocery Store" vs "Grocery Store Ltd"), which counts as a full
// match; otherwise the score is the Levenshtein distance converted to a
// percentage of the longer string.
func StringSimilarity(a, b string) float64 {
	na := NormalizeText(a)
	nb := NormalizeText(b)

	if na == nb {
		return 100
	}
	if na != "" && nb != "" && (strings.Contains(na, nb) || strings.Contains(nb, na)) {
		return 100
	}

	ra := []rune(na)
	rb := []rune(nb)
	longest := max(len(ra), len(rb))
	if longest == 0 {
		return 100
	}

	distance := levenshtein.DistanceForStrings(ra, rb, levenshtein.DefaultOptions)
	pct := 100 * (1 - float64(distance)/float64(longest))
	return Round2(math.Min(100, math.Max(0, pct)))
}

// SameDay reports whether two dates fall on the same calendar day.
func SameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// DateProximity reports whether two dates are within the tolerance
// window of each other.
func DateProximity(a, b time.Time, tolerance time.Duration) bool {
	diff := a.Sub(b)
	if diff < 0 {
		diff = -diff
	}
	return diff <= tolerance
}

// DateCloseness scores date proximity between 0 and 1. Same-day matches
// score 1; the score decays linearly to 0 at the edge of the tolerance
// window.
func DateCloseness(a, b time.Time, tolerance time.Duration) float64 {
	if SameDay(a, b) {
		return 1
	}
	if tolerance <= 0 || !DateProximity(a, b, tolerance) {
		return 0
	}
	diff := a.Sub(b)
	if diff < 0 {
		diff = -diff
	}
	return 1 - float64(diff)/float64(tolerance)
}

// AmountProximity reports whether two amounts are within the relative
// tolerance of each other. The denominator is floored at 1 so zero or
// near-zero amounts never divide by zero.
func AmountProximity(a, b decimal.Decimal, tolerance decimal.Decimal) bool {
	denominator := decimal.Max(a, b, decimal.NewFromInt(1))
	diff := a.Sub(b).Abs()
	return diff.Div(denominator).LessThanOrEqual(tolerance)
}

// Round2 rounds a percentage to two decimal places so scores are stable
// across platforms and test expectations.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
