package importer

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/Veraticus/spice-ledger/internal/common"
	"github.com/Veraticus/spice-ledger/internal/model"
	"github.com/spf13/cast"
)

// Logical CSV columns. Keys of CSVOptions.Columns use these names.
const (
	ColumnDate        = "date"
	ColumnAmount      = "amount"
	ColumnDescription = "description"
	ColumnCategory    = "category"
	ColumnType        = "type"
	ColumnBankAccount = "bankAccount"
	ColumnNotes       = "notes"
)

var requiredColumns = []string{ColumnDate, ColumnAmount, ColumnDescription}

var optionalColumns = []string{ColumnCategory, ColumnType, ColumnBankAccount, ColumnNotes}

// CSVOptions configures how a CSV export is read.
type CSVOptions struct {
	// Columns maps logical column names to header names in the file.
	// Unmapped columns use their logical name. Keys and headers match
	// regardless of case.
	Columns     map[string]string
	Location    *time.Location
	DateFormat  string
	BankAccount string
	Comma       rune
}

// CSVReader reads CSV exports with a header row.
type CSVReader struct {
	opts CSVOptions
}

// NewCSVReader creates a CSV reader.
func NewCSVReader(opts CSVOptions) *CSVReader {
	if opts.DateFormat == "" {
		opts.DateFormat = time.DateOnly
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Comma == 0 {
		opts.Comma = ','
	}
	// viper lowercases map keys.
	columns := make(map[string]string, len(opts.Columns))
	for k, v := range opts.Columns {
		columns[strings.ToLower(k)] = v
	}
	opts.Columns = columns
	return &CSVReader{opts: opts}
}

// Read parses r. A missing required header fails the whole file; a bad row is
// recorded in Result.Errors and skipped.
func (c *CSVReader) Read(ctx context.Context, r io.Reader) (Result, error) {
	var res Result

	cr := csv.NewReader(r)
	cr.Comma = c.opts.Comma
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return res, fmt.Errorf("%w: empty CSV file", common.ErrInvalidInput)
	}
	if err != nil {
		return res, fmt.Errorf("failed to read CSV header: %w", err)
	}

	index, err := c.columnIndex(header)
	if err != nil {
		return res, err
	}

	line := 1
	for {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		line++
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		res.Rows++
		if err != nil {
			res.Errors = append(res.Errors, RowError{Line: line, Err: err})
			continue
		}
		if isBlank(rec) {
			res.Rows--
			continue
		}

		txn, err := c.convert(rec, index)
		if err != nil {
			res.Errors = append(res.Errors, RowError{Line: line, Err: err})
			continue
		}
		res.Transactions = append(res.Transactions, txn)
	}

	slog.Info("Parsed CSV file",
		"rows", res.Rows,
		"transactions", len(res.Transactions),
		"errors", len(res.Errors))
	return res, nil
}

// columnIndex resolves each logical column to its position in header.
func (c *CSVReader) columnIndex(header []string) (map[string]int, error) {
	positions := make(map[string]int, len(header))
	for i, h := range header {
		positions[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}

	lookup := func(column string) (int, bool) {
		name := column
		if mapped, ok := c.opts.Columns[strings.ToLower(column)]; ok && mapped != "" {
			name = mapped
		}
		i, ok := positions[strings.ToLower(strings.TrimSpace(name))]
		return i, ok
	}

	index := make(map[string]int)
	var missing []string
	for _, col := range requiredColumns {
		i, ok := lookup(col)
		if !ok {
			missing = append(missing, col)
			continue
		}
		index[col] = i
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: CSV header is missing columns %s", common.ErrInvalidInput, strings.Join(missing, ", "))
	}
	for _, col := range optionalColumns {
		if i, ok := lookup(col); ok {
			index[col] = i
		}
	}
	return index, nil
}

func (c *CSVReader) convert(rec []string, index map[string]int) (model.Transaction, error) {
	field := func(col string) string {
		i, ok := index[col]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	date, err := c.parseDate(field(ColumnDate))
	if err != nil {
		return model.Transaction{}, err
	}

	amount, err := parseAmount(field(ColumnAmount))
	if err != nil {
		return model.Transaction{}, err
	}

	description := field(ColumnDescription)
	if description == "" {
		return model.Transaction{}, errors.New("missing description")
	}

	txnType := model.TypeCredit
	if amount < 0 {
		txnType = model.TypeDebit
	}
	if raw := field(ColumnType); raw != "" {
		parsed, ok := model.ParseTransactionType(raw)
		if !ok {
			return model.Transaction{}, fmt.Errorf("unknown transaction type %q", raw)
		}
		txnType = parsed
	}
	if amount < 0 {
		amount = -amount
	}

	account := field(ColumnBankAccount)
	if account == "" {
		account = c.opts.BankAccount
	}

	txn := model.Transaction{
		Date:        date,
		Description: description,
		Amount:      amount,
		Type:        txnType,
		BankAccount: account,
		Notes:       field(ColumnNotes),
	}
	if category := field(ColumnCategory); category != "" {
		txn.Category = &category
	}
	finalize(&txn, "")
	return txn, nil
}

// parseDate tries the configured layout first, then the formats cast knows.
func (c *CSVReader) parseDate(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, errors.New("missing date")
	}
	if t, err := time.ParseInLocation(c.opts.DateFormat, raw, c.opts.Location); err == nil {
		return t, nil
	}
	t, err := cast.StringToDateInDefaultLocation(raw, c.opts.Location)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: expected layout %s", raw, c.opts.DateFormat)
	}
	return t, nil
}

// parseAmount accepts currency symbols, thousands separators and accounting
// parentheses for negatives.
func parseAmount(raw string) (float64, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, errors.New("missing amount")
	}

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}
	s = strings.NewReplacer("$", "", "€", "", "£", "", ",", "", " ", "").Replace(s)

	f, err := cast.ToFloat64E(s)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q", raw)
	}
	if negative {
		f = -f
	}
	return f, nil
}

func isBlank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
