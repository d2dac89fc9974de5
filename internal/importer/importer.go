// Package importer reads bank exports into transactions ready to be run
// through the rules and saved.
package importer

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/Veraticus/spice-ledger/internal/common"
	"github.com/Veraticus/spice-ledger/internal/model"
	"github.com/google/uuid"
)

// Format is a supported import file format.
type Format string

// Supported formats.
const (
	FormatCSV Format = "csv"
	FormatOFX Format = "ofx"
)

// Reader turns an export into transactions.
type Reader interface {
	Read(ctx context.Context, r io.Reader) (Result, error)
}

// Result holds the transactions read from a file and the rows that could not
// be read. Row errors do not stop the import.
type Result struct {
	Transactions []model.Transaction
	Errors       []RowError
	Rows         int
}

// RowError describes one record that could not be converted.
type RowError struct {
	Err  error
	Line int
}

func (e RowError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e RowError) Unwrap() error {
	return e.Err
}

// DetectFormat picks a format from a file extension.
func DetectFormat(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".tsv", ".txt":
		return FormatCSV, nil
	case ".ofx", ".qfx":
		return FormatOFX, nil
	}
	return "", fmt.Errorf("%w: unsupported file type %q", common.ErrInvalidInput, filepath.Ext(path))
}

// ParseFormat accepts a user-supplied format name.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "csv":
		return FormatCSV, nil
	case "ofx", "qfx":
		return FormatOFX, nil
	}
	return "", fmt.Errorf("%w: unknown import format %q", common.ErrInvalidInput, s)
}

// finalize assigns a fresh ID when none is set and computes the
// de-duplication hash. key, when non-empty, distinguishes records whose
// content is otherwise identical.
func finalize(txn *model.Transaction, key string) {
	if txn.ID == "" {
		txn.ID = uuid.NewString()
	}
	txn.Hash = txn.GenerateHash()
	if key != "" {
		txn.Hash += ":" + key
	}
}
