// Package model defines the core types shared across the duplicate
// detection engine.
package model

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ErrMissingField marks a candidate that cannot be classified because a
// required field is absent or invalid.
var ErrMissingField = errors.New("missing required field")

// TransactionKind distinguishes the direction of a transaction.
type TransactionKind string

// Valid transaction kinds.
const (
	KindIncome   TransactionKind = "income"
	KindExpense  TransactionKind = "expense"
	KindTransfer TransactionKind = "transfer"
)

// ValidKind reports whether k is one of the known transaction kinds.
func ValidKind(k TransactionKind) bool {
	switch k {
	case KindIncome, KindExpense, KindTransfer:
		return true
	}
	return false
}

// TransactionCandidate is a transaction parsed from an import source but
// not yet persisted to the ledger. It lives for the duration of one
// import session.
type TransactionCandidate struct {
	Date        time.Time
	Description string
	Reference   string // explicit reference from a mapped column, may be empty
	AccountID   string
	Kind        TransactionKind
	Amount      decimal.Decimal
}

// Validate checks the fields required before classification. The error
// names the first missing field.
func (c *TransactionCandidate) Validate() error {
	if c.Date.IsZero() {
		return fmt.Errorf("%w: date", ErrMissingField)
	}
	if !c.Amount.IsPositive() {
		return fmt.Errorf("%w: amount", ErrMissingField)
	}
	if !ValidKind(c.Kind) {
		return fmt.Errorf("%w: kind", ErrMissingField)
	}
	return nil
}

// LedgerTransaction is a transaction already persisted for an account.
// The engine only reads it; writes happen through resolved mutations.
type LedgerTransaction struct {
	Date        time.Time
	ID          string
	AccountID   string
	Description string
	Reference   string
	Kind        TransactionKind
	Amount      decimal.Decimal
	Import      *ImportMetadata
}

// ImportMetadata is persisted alongside transactions created by an
// import so a whole-file re-import can be recognized later.
type ImportMetadata struct {
	ImportedAt          time.Time
	SessionRef          string
	SourceLabel         string
	FileFingerprint     string
	BankTransactionID   string
	LinkedTransactionID string // set by force-import, points at the matched transaction
}
