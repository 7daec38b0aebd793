package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/wealthwise/dedup/internal/common"
	"github.com/wealthwise/dedup/internal/model"
	"github.com/wealthwise/dedup/internal/service"
)

const transactionColumns = `
	id, account_id, date, description, reference, kind, amount,
	imported_at, session_ref, source_label, file_fingerprint,
	bank_transaction_id, linked_transaction_id`

// ListTransactions returns every transaction for the account dated
// within [from, to], ordered by date then ID.
func (s *SQLiteStorage) ListTransactions(ctx context.Context, accountID string, from, to time.Time) ([]model.LedgerTransaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(accountID, "accountID"); err != nil {
		return nil, err
	}
	if from.After(to) {
		return nil, ErrInvalidDateRange
	}
	return s.listTransactionsTx(ctx, s.db, accountID, from, to)
}

func (s *SQLiteStorage) listTransactionsTx(ctx context.Context, q queryable, accountID string, from, to time.Time) ([]model.LedgerTransaction, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE account_id = ? AND date >= ? AND date <= ?
		ORDER BY date, id
	`, accountID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var transactions []model.LedgerTransaction
	for rows.Next() {
		txn, scanErr := scanTransaction(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		transactions = append(transactions, *txn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate transactions: %w", err)
	}
	return transactions, nil
}

// GetTransactionByID fetches one transaction or common.ErrNotFound.
func (s *SQLiteStorage) GetTransactionByID(ctx context.Context, id string) (*model.LedgerTransaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE id = ?
	`, id)

	txn, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: transaction %s", common.ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return txn, nil
}

// SaveTransaction inserts a new transaction.
func (s *SQLiteStorage) SaveTransaction(ctx context.Context, txn *model.LedgerTransaction) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateTransaction(txn); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := s.saveTransactionTx(ctx, tx, txn); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStorage) saveTransactionTx(ctx context.Context, q queryable, txn *model.LedgerTransaction) error {
	meta := txn.Import
	if meta == nil {
		meta = &model.ImportMetadata{}
	}
	_, err := q.ExecContext(ctx, `
		INSERT INTO transactions (
			id, account_id, date, description, reference, kind, amount,
			imported_at, session_ref, source_label, file_fingerprint,
			bank_transaction_id, linked_transaction_id
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		txn.ID,
		txn.AccountID,
		txn.Date,
		txn.Description,
		txn.Reference,
		string(txn.Kind),
		txn.Amount.String(),
		nullTime(meta.ImportedAt),
		nullString(meta.SessionRef),
		nullString(meta.SourceLabel),
		nullString(meta.FileFingerprint),
		nullString(meta.BankTransactionID),
		nullString(meta.LinkedTransactionID),
	)
	if err != nil {
		return fmt.Errorf("failed to insert transaction: %w", err)
	}
	return nil
}

// UpdateTransaction overwrites the mutable fields of an existing
// transaction.
func (s *SQLiteStorage) UpdateTransaction(ctx context.Context, txn *model.LedgerTransaction) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateTransaction(txn); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := s.updateTransactionTx(ctx, tx, txn); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStorage) updateTransactionTx(ctx context.Context, q queryable, txn *model.LedgerTransaction) error {
	result, err := q.ExecContext(ctx, `
		UPDATE transactions
		SET date = ?, description = ?, reference = ?, kind = ?, amount = ?
		WHERE id = ?
	`,
		txn.Date,
		txn.Description,
		txn.Reference,
		string(txn.Kind),
		txn.Amount.String(),
		txn.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update transaction: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: transaction %s", common.ErrNotFound, txn.ID)
	}
	return nil
}

// ApplyMutations applies each resolved mutation in its own database
// transaction. A failure rolls back that candidate alone; the remaining
// mutations still run. Skip mutations should not reach storage but are
// tolerated as no-ops.
func (s *SQLiteStorage) ApplyMutations(ctx context.Context, mutations []model.LedgerMutation) (*service.MutationReport, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	report := &service.MutationReport{}
	for i, mutation := range mutations {
		id, err := s.applyMutation(ctx, mutation)
		if err != nil {
			slog.Error("Failed to apply mutation",
				"index", i,
				"action", mutation.Action,
				"error", err)
			report.Failures = append(report.Failures, service.MutationFailure{Index: i, Err: err})
			continue
		}
		if id != "" {
			report.AppliedIDs = append(report.AppliedIDs, id)
		}
	}
	return report, nil
}

func (s *SQLiteStorage) applyMutation(ctx context.Context, mutation model.LedgerMutation) (string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var appliedID string
	switch mutation.Action {
	case model.ActionSkip:
		return "", nil
	case model.ActionImport, model.ActionForce:
		meta := mutation.Metadata
		txn := &model.LedgerTransaction{
			ID:          uuid.NewString(),
			AccountID:   mutation.Candidate.AccountID,
			Date:        mutation.Candidate.Date,
			Description: mutation.Candidate.Description,
			Reference:   mutation.Candidate.Reference,
			Kind:        mutation.Candidate.Kind,
			Amount:      mutation.Candidate.Amount,
			Import:      &meta,
		}
		if err := validateTransaction(txn); err != nil {
			return "", err
		}
		if err := s.saveTransactionTx(ctx, tx, txn); err != nil {
			return "", err
		}
		appliedID = txn.ID
	case model.ActionUpdate:
		existing, getErr := s.getTransactionByIDTx(ctx, tx, mutation.MatchedTransactionID)
		if getErr != nil {
			return "", getErr
		}
		existing.Date = mutation.Candidate.Date
		existing.Description = mutation.Candidate.Description
		if mutation.Candidate.Reference != "" {
			existing.Reference = mutation.Candidate.Reference
		}
		existing.Kind = mutation.Candidate.Kind
		existing.Amount = mutation.Candidate.Amount
		if err := s.updateTransactionTx(ctx, tx, existing); err != nil {
			return "", err
		}
		appliedID = existing.ID
	default:
		return "", fmt.Errorf("%w: %q", common.ErrInvalidAction, mutation.Action)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit mutation: %w", err)
	}
	return appliedID, nil
}

func (s *SQLiteStorage) getTransactionByIDTx(ctx context.Context, q queryable, id string) (*model.LedgerTransaction, error) {
	row := q.QueryRowContext(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE id = ?
	`, id)
	txn, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: transaction %s", common.ErrNotFound, id)
	}
	return txn, err
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row scanner) (*model.LedgerTransaction, error) {
	var txn model.LedgerTransaction
	var reference sql.NullString
	var kind, amount string
	var importedAt sql.NullTime
	var sessionRef, sourceLabel, fingerprint, bankTxnID, linkedID sql.NullString

	err := row.Scan(
		&txn.ID,
		&txn.AccountID,
		&txn.Date,
		&txn.Description,
		&reference,
		&kind,
		&amount,
		&importedAt,
		&sessionRef,
		&sourceLabel,
		&fingerprint,
		&bankTxnID,
		&linkedID,
	)
	if err != nil {
		return nil, err
	}

	txn.Reference = reference.String
	txn.Kind = model.TransactionKind(kind)
	txn.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("failed to parse stored amount %q: %w", amount, err)
	}

	if sessionRef.Valid || importedAt.Valid {
		txn.Import = &model.ImportMetadata{
			ImportedAt:          importedAt.Time,
			SessionRef:          sessionRef.String,
			SourceLabel:         sourceLabel.String,
			FileFingerprint:     fingerprint.String,
			BankTransactionID:   bankTxnID.String,
			LinkedTransactionID: linkedID.String,
		}
	}
	return &txn, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}
