package model

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestCandidateValidate(t *testing.T) {
	valid := TransactionCandidate{
		Date:        time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC),
		Description: "NEFT Payment",
		AccountID:   "acct-1",
		Kind:        KindExpense,
		Amount:      decimal.RequireFromString("5000.00"),
	}

	tests := []struct {
		mutate  func(*TransactionCandidate)
		name    string
		wantMsg string
	}{
		{name: "valid candidate", mutate: func(*TransactionCandidate) {}},
		{
			name:    "zero date",
			mutate:  func(c *TransactionCandidate) { c.Date = time.Time{} },
			wantMsg: "date",
		},
		{
			name:    "zero amount",
			mutate:  func(c *TransactionCandidate) { c.Amount = decimal.Zero },
			wantMsg: "amount",
		},
		{
			name:    "negative amount",
			mutate:  func(c *TransactionCandidate) { c.Amount = decimal.RequireFromString("-1") },
			wantMsg: "amount",
		},
		{
			name:    "unknown kind",
			mutate:  func(c *TransactionCandidate) { c.Kind = "loan" },
			wantMsg: "kind",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid
			tt.mutate(&c)
			err := c.Validate()
			if tt.wantMsg == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, ErrMissingField)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestValidKind(t *testing.T) {
	assert.True(t, ValidKind(KindIncome))
	assert.True(t, ValidKind(KindExpense))
	assert.True(t, ValidKind(KindTransfer))
	assert.False(t, ValidKind("loan"))
	assert.False(t, ValidKind(""))
}

func TestValidAction(t *testing.T) {
	assert.True(t, ValidAction(ActionSkip))
	assert.True(t, ValidAction(ActionImport))
	assert.True(t, ValidAction(ActionUpdate))
	assert.True(t, ValidAction(ActionForce))
	assert.False(t, ValidAction("delete"))
	assert.False(t, ValidAction(""))
}
