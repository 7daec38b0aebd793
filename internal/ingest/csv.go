// Package ingest parses bank statement CSV files into transaction
// candidates. Header names are mapped to semantic fields, so exports
// from different banks only need a mapping, not code changes.
package ingest

import (
	"bytes"
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wealthwise/dedup/internal/model"
)

// Parse errors.
var (
	ErrMissingHeader = errors.New("missing required column")
	ErrEmptyFile     = errors.New("file contains no data rows")
)

// ColumnMapping names the statement columns carrying each semantic
// field. Matching is case-insensitive on trimmed header text.
type ColumnMapping struct {
	Date        string
	Amount      string
	Description string
	Kind        string
	Reference   string // optional
	DateFormat  string
}

// DefaultMapping matches the application's own export format.
func DefaultMapping() ColumnMapping {
	return ColumnMapping{
		Date:        "date",
		Amount:      "amount",
		Description: "description",
		Kind:        "type",
		Reference:   "reference",
		DateFormat:  "2006-01-02",
	}
}

// RowError records one unparseable data row. Line numbers are 1-based
// and include the header line.
type RowError struct {
	Err  error
	Line int
}

func (e RowError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

// Result is the outcome of parsing one statement file. Bad rows land in
// RowErrors and never abort the rest of the file.
type Result struct {
	Fingerprint string
	Candidates  []model.TransactionCandidate
	RowErrors   []RowError
}

// statement "type" values seen in bank exports, mapped to kinds.
var kindAliases = map[string]model.TransactionKind{
	"income":   model.KindIncome,
	"credit":   model.KindIncome,
	"expense":  model.KindExpense,
	"debit":    model.KindExpense,
	"transfer": model.KindTransfer,
}

// ParseFile reads and parses a statement file, fingerprinting its
// content for re-import detection.
func ParseFile(path, accountID string, mapping ColumnMapping) (*Result, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path comes from the CLI user
	if err != nil {
		return nil, fmt.Errorf("failed to read statement file: %w", err)
	}
	result, err := Parse(bytes.NewReader(data), accountID, mapping)
	if err != nil {
		return nil, err
	}
	result.Fingerprint = Fingerprint(data)
	return result, nil
}

// Parse reads CSV rows into candidates using the column mapping.
func Parse(r io.Reader, accountID string, mapping ColumnMapping) (*Result, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	columns, err := columnIndexes(header, mapping)
	if err != nil {
		return nil, err
	}

	dateFormat := mapping.DateFormat
	if dateFormat == "" {
		dateFormat = DefaultMapping().DateFormat
	}

	result := &Result{}
	line := 1
	for {
		record, readErr := reader.Read()
		if errors.Is(readErr, io.EOF) {
			break
		}
		line++
		if readErr != nil {
			result.RowErrors = append(result.RowErrors, RowError{Line: line, Err: readErr})
			continue
		}

		candidate, rowErr := parseRow(record, columns, accountID, dateFormat)
		if rowErr != nil {
			result.RowErrors = append(result.RowErrors, RowError{Line: line, Err: rowErr})
			continue
		}
		result.Candidates = append(result.Candidates, candidate)
	}

	if len(result.Candidates) == 0 && len(result.RowErrors) == 0 {
		return nil, ErrEmptyFile
	}
	return result, nil
}

// columnIndexes resolves the mapping against the header row. The
// reference column is the only optional one.
type indexes struct {
	date        int
	amount      int
	description int
	kind        int
	reference   int // -1 when unmapped
}

func columnIndexes(header []string, mapping ColumnMapping) (indexes, error) {
	positions := make(map[string]int, len(header))
	for i, name := range header {
		positions[strings.ToLower(strings.TrimSpace(name))] = i
	}

	lookup := func(name string) (int, bool) {
		i, ok := positions[strings.ToLower(strings.TrimSpace(name))]
		return i, ok
	}

	idx := indexes{reference: -1}
	required := []struct {
		target *int
		name   string
	}{
		{&idx.date, mapping.Date},
		{&idx.amount, mapping.Amount},
		{&idx.description, mapping.Description},
		{&idx.kind, mapping.Kind},
	}
	for _, col := range required {
		i, ok := lookup(col.name)
		if !ok {
			return idx, fmt.Errorf("%w: %q", ErrMissingHeader, col.name)
		}
		*col.target = i
	}

	if mapping.Reference != "" {
		if i, ok := lookup(mapping.Reference); ok {
			idx.reference = i
		}
	}
	return idx, nil
}

func parseRow(record []string, columns indexes, accountID, dateFormat string) (model.TransactionCandidate, error) {
	var candidate model.TransactionCandidate

	field := func(i int) (string, error) {
		if i >= len(record) {
			return "", fmt.Errorf("row has %d fields, need column %d", len(record), i+1)
		}
		return strings.TrimSpace(record[i]), nil
	}

	rawDate, err := field(columns.date)
	if err != nil {
		return candidate, err
	}
	date, err := time.Parse(dateFormat, rawDate)
	if err != nil {
		return candidate, fmt.Errorf("invalid date %q: %w", rawDate, err)
	}

	rawAmount, err := field(columns.amount)
	if err != nil {
		return candidate, err
	}
	// Strip thousands separators some banks emit.
	amount, err := decimal.NewFromString(strings.ReplaceAll(rawAmount, ",", ""))
	if err != nil {
		return candidate, fmt.Errorf("invalid amount %q: %w", rawAmount, err)
	}

	description, err := field(columns.description)
	if err != nil {
		return candidate, err
	}

	rawKind, err := field(columns.kind)
	if err != nil {
		return candidate, err
	}
	kind, ok := kindAliases[strings.ToLower(rawKind)]
	if !ok {
		return candidate, fmt.Errorf("unknown transaction type %q", rawKind)
	}

	var reference string
	if columns.reference >= 0 {
		reference, err = field(columns.reference)
		if err != nil {
			return candidate, err
		}
	}

	candidate = model.TransactionCandidate{
		Date:        date,
		Description: description,
		Reference:   reference,
		AccountID:   accountID,
		Kind:        kind,
		Amount:      amount,
	}
	return candidate, nil
}

// Fingerprint returns a stable content hash of a statement file, used
// to recognize a whole-file re-import.
func Fingerprint(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
