package detect

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/wealthwise/dedup/internal/model"
)

func day(d int) time.Time {
	return time.Date(2024, 4, d, 0, 0, 0, 0, time.UTC)
}

func amount(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestClassifyReferenceMatch(t *testing.T) {
	c := NewClassifier(DefaultConfig())

	candidate := model.TransactionCandidate{
		Date:        day(1),
		Amount:      amount("5000.00"),
		Description: "NEFT Payment",
		Reference:   "ABC123456",
		AccountID:   "acct-1",
		Kind:        model.KindExpense,
	}
	existing := []model.LedgerTransaction{{
		ID:          "tx-1",
		Date:        day(1),
		Amount:      amount("5000.00"),
		Description: "NEFT Payment",
		Reference:   "ABC123456",
		Kind:        model.KindExpense,
	}}

	result := c.Classify(candidate, existing)
	assert.True(t, result.IsDuplicate)
	assert.Equal(t, model.MatchExact, result.MatchType)
	assert.Equal(t, 100.0, result.Confidence)
	assert.Equal(t, "tx-1", result.MatchedTransactionID)
	assert.Equal(t, "reference match", result.Reason)
}

func TestClassifyReferenceMatchIgnoresDivergence(t *testing.T) {
	// A shared reference wins even when everything else disagrees.
	c := NewClassifier(DefaultConfig())

	candidate := model.TransactionCandidate{
		Date:        day(1),
		Amount:      amount("5000.00"),
		Description: "Completely different text",
		Reference:   "ref-987001",
		Kind:        model.KindExpense,
	}
	existing := []model.LedgerTransaction{{
		ID:          "tx-9",
		Date:        day(20),
		Amount:      amount("12.34"),
		Description: "Nothing alike",
		Reference:   "REF987001",
		Kind:        model.KindIncome,
	}}

	result := c.Classify(candidate, existing)
	assert.Equal(t, model.MatchExact, result.MatchType)
	assert.Equal(t, 100.0, result.Confidence)
	assert.Equal(t, "tx-9", result.MatchedTransactionID)
}

func TestClassifyHighConfidenceFuzzy(t *testing.T) {
	c := NewClassifier(DefaultConfig())

	candidate := model.TransactionCandidate{
		Date:        day(1),
		Amount:      amount("5000.00"),
		Description: "Grocery Store Purchase",
		Kind:        model.KindExpense,
	}
	existing := []model.LedgerTransaction{{
		ID:          "tx-2",
		Date:        day(1),
		Amount:      amount("5000.00"),
		Description: "Grocery Store Purchase Ltd",
		Kind:        model.KindExpense,
	}}

	result := c.Classify(candidate, existing)
	assert.True(t, result.IsDuplicate)
	assert.Equal(t, model.MatchFuzzy, result.MatchType)
	assert.GreaterOrEqual(t, result.Confidence, 90.0)
	assert.Equal(t, "tx-2", result.MatchedTransactionID)
}

func TestClassifyDateGateExcludes(t *testing.T) {
	// Amount is within one percent, but the dates are two days apart.
	// The gate excludes the transaction from scoring entirely.
	c := NewClassifier(DefaultConfig())

	candidate := model.TransactionCandidate{
		Date:        day(3),
		Amount:      amount("5050.00"),
		Description: "Payment to XYZ",
		Kind:        model.KindExpense,
	}
	existing := []model.LedgerTransaction{{
		ID:          "tx-3",
		Date:        day(1),
		Amount:      amount("5000.00"),
		Description: "Payment XYZ Corp",
		Kind:        model.KindExpense,
	}}

	result := c.Classify(candidate, existing)
	assert.False(t, result.IsDuplicate)
	assert.Equal(t, model.MatchNone, result.MatchType)
	assert.Empty(t, result.MatchedTransactionID)
}

func TestClassifyKindMismatchExcludes(t *testing.T) {
	c := NewClassifier(DefaultConfig())

	candidate := model.TransactionCandidate{
		Date:        day(1),
		Amount:      amount("5000.00"),
		Description: "Grocery Store Purchase",
		Kind:        model.KindExpense,
	}
	existing := []model.LedgerTransaction{{
		ID:          "tx-4",
		Date:        day(1),
		Amount:      amount("5000.00"),
		Description: "Grocery Store Purchase",
		Kind:        model.KindIncome,
	}}

	assert.Equal(t, model.MatchNone, c.Classify(candidate, existing).MatchType)
}

func TestClassifyPossibleTier(t *testing.T) {
	// Same day and identical description but a slightly different
	// amount: 0.6*100 + 10 = 70, on the possible boundary.
	c := NewClassifier(DefaultConfig())

	candidate := model.TransactionCandidate{
		Date:        day(1),
		Amount:      amount("5000.00"),
		Description: "Electricity bill",
		Kind:        model.KindExpense,
	}
	existing := []model.LedgerTransaction{{
		ID:          "tx-5",
		Date:        day(1),
		Amount:      amount("5010.00"),
		Description: "Electricity bill",
		Kind:        model.KindExpense,
	}}

	result := c.Classify(candidate, existing)
	assert.True(t, result.IsDuplicate)
	assert.Equal(t, model.MatchFuzzy, result.MatchType)
	assert.InDelta(t, 70.0, result.Confidence, 0.001)
	assert.Equal(t, "tx-5", result.MatchedTransactionID)
}

func TestClassifyNoExistingTransactions(t *testing.T) {
	c := NewClassifier(DefaultConfig())
	candidate := model.TransactionCandidate{
		Date:        day(1),
		Amount:      amount("100.00"),
		Description: "Anything",
		Kind:        model.KindExpense,
	}

	result := c.Classify(candidate, nil)
	assert.False(t, result.IsDuplicate)
	assert.Equal(t, model.MatchNone, result.MatchType)
}

func TestClassifyDeterministicTieBreak(t *testing.T) {
	c := NewClassifier(DefaultConfig())

	candidate := model.TransactionCandidate{
		Date:        day(1),
		Amount:      amount("250.00"),
		Description: "Coffee shop",
		Kind:        model.KindExpense,
	}
	// Two identically scoring matches; the smaller ID must win, and it
	// must win on every call.
	existing := []model.LedgerTransaction{
		{ID: "tx-b", Date: day(1), Amount: amount("250.00"), Description: "Coffee shop", Kind: model.KindExpense},
		{ID: "tx-a", Date: day(1), Amount: amount("250.00"), Description: "Coffee shop", Kind: model.KindExpense},
	}

	first := c.Classify(candidate, existing)
	assert.Equal(t, "tx-a", first.MatchedTransactionID)
	for range_i := 0; range_i < 10; range_i++ {
		assert.Equal(t, first, c.Classify(candidate, existing))
	}
}

func TestClassifyCloserDateWinsTie(t *testing.T) {
	cfg := DefaultConfig()
	c := NewClassifier(cfg)

	candidate := model.TransactionCandidate{
		Date:        time.Date(2024, 4, 2, 12, 0, 0, 0, time.UTC),
		Amount:      amount("100.00"),
		Description: "Taxi ride",
		Kind:        model.KindExpense,
	}
	// Neither is same-day, both score identically; the closer date wins.
	existing := []model.LedgerTransaction{
		{ID: "tx-far", Date: time.Date(2024, 4, 1, 14, 0, 0, 0, time.UTC), Amount: amount("100.00"), Description: "Taxi ride", Kind: model.KindExpense},
		{ID: "tx-near", Date: time.Date(2024, 4, 1, 20, 0, 0, 0, time.UTC), Amount: amount("100.00"), Description: "Taxi ride", Kind: model.KindExpense},
	}

	result := c.Classify(candidate, existing)
	assert.Equal(t, "tx-near", result.MatchedTransactionID)
}

func TestClassifyMatchesListSorted(t *testing.T) {
	c := NewClassifier(DefaultConfig())

	candidate := model.TransactionCandidate{
		Date:        day(1),
		Amount:      amount("900.00"),
		Description: "Monthly gym membership",
		Kind:        model.KindExpense,
	}
	existing := []model.LedgerTransaction{
		{ID: "tx-low", Date: day(1), Amount: amount("905.00"), Description: "Monthly gym membership", Kind: model.KindExpense},
		{ID: "tx-high", Date: day(1), Amount: amount("900.00"), Description: "Monthly gym membership", Kind: model.KindExpense},
	}

	result := c.Classify(candidate, existing)
	if assert.Len(t, result.Matches, 2) {
		assert.Equal(t, "tx-high", result.Matches[0].TransactionID)
		assert.Equal(t, "tx-low", result.Matches[1].TransactionID)
		assert.Greater(t, result.Matches[0].Confidence, result.Matches[1].Confidence)
	}
}
