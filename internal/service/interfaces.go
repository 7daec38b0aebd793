// Package service defines the interfaces between the engine and its
// collaborators.
package service

import (
	"context"
	"time"

	"github.com/wealthwise/dedup/internal/model"
)

// MutationFailure records one mutation that could not be applied. The
// index refers to the mutation's position in the ApplyMutations input.
type MutationFailure struct {
	Err   error
	Index int
}

// MutationReport summarizes an ApplyMutations call. AppliedIDs holds the
// ledger IDs written, in mutation order; failed mutations leave no
// partial state behind.
type MutationReport struct {
	AppliedIDs []string
	Failures   []MutationFailure
}

// Storage defines the contract for the persistence layer.
type Storage interface {
	// ListTransactions returns every transaction for the account with a
	// date inside [from, to], ordered by date then ID.
	ListTransactions(ctx context.Context, accountID string, from, to time.Time) ([]model.LedgerTransaction, error)

	// GetTransactionByID fetches one transaction.
	GetTransactionByID(ctx context.Context, id string) (*model.LedgerTransaction, error)

	// SaveTransaction inserts a new transaction.
	SaveTransaction(ctx context.Context, txn *model.LedgerTransaction) error

	// UpdateTransaction overwrites the mutable fields of an existing
	// transaction.
	UpdateTransaction(ctx context.Context, txn *model.LedgerTransaction) error

	// ApplyMutations applies resolved ledger mutations, each in its own
	// database transaction so one failure never half-applies a
	// candidate or blocks the rest.
	ApplyMutations(ctx context.Context, mutations []model.LedgerMutation) (*MutationReport, error)

	// Migrate brings the schema up to the expected version.
	Migrate(ctx context.Context) error

	// Close releases the underlying database handle.
	Close() error
}
