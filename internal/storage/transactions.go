package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Veraticus/spice-ledger/internal/common"
	"github.com/Veraticus/spice-ledger/internal/model"
	"github.com/Veraticus/spice-ledger/internal/service"
)

const transactionColumns = `id, hash, date, description, amount, transaction_type,
	category, bank_account, notes, is_internal, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (model.Transaction, error) {
	var txn model.Transaction
	var category sql.NullString
	var txnType string

	err := row.Scan(
		&txn.ID, &txn.Hash, &txn.Date, &txn.Description, &txn.Amount, &txnType,
		&category, &txn.BankAccount, &txn.Notes, &txn.IsInternal, &txn.CreatedAt, &txn.UpdatedAt,
	)
	if err != nil {
		return txn, err
	}

	txn.Type = model.TransactionType(txnType)
	if category.Valid {
		txn.Category = &category.String
	}
	return txn, nil
}

func nullableString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// SaveTransactions inserts transactions, skipping any whose hash is already
// stored. It returns the number of rows inserted.
func (s *SQLiteStorage) SaveTransactions(ctx context.Context, transactions []model.Transaction) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	if err := validateTransactions(transactions); err != nil {
		return 0, err
	}

	inserted := 0
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT OR IGNORE INTO transactions (`+transactionColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare statement: %w", err)
		}
		defer func() { _ = stmt.Close() }()

		now := time.Now().UTC()
		for _, txn := range transactions {
			if txn.Hash == "" {
				txn.Hash = txn.GenerateHash()
			}

			result, err := stmt.ExecContext(ctx,
				txn.ID,
				txn.Hash,
				txn.Date.UTC(),
				txn.Description,
				txn.Amount,
				string(txn.Type),
				nullableString(txn.Category),
				txn.BankAccount,
				txn.Notes,
				txn.IsInternal,
				now,
				now,
			)
			if err != nil {
				return fmt.Errorf("failed to insert transaction %s: %w", txn.ID, mapError(err))
			}

			if n, err := result.RowsAffected(); err == nil {
				inserted += int(n)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	slog.Debug("saved transactions", "submitted", len(transactions), "inserted", inserted)
	return inserted, nil
}

// GetTransactions retrieves transactions matching filter, oldest first.
func (s *SQLiteStorage) GetTransactions(ctx context.Context, filter service.TransactionFilter) ([]model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateFilter(filter); err != nil {
		return nil, err
	}

	var where []string
	var args []any

	if len(filter.IDs) > 0 {
		where = append(where, "id IN (?"+strings.Repeat(", ?", len(filter.IDs)-1)+")")
		for _, id := range filter.IDs {
			args = append(args, id)
		}
	}
	if filter.StartDate != nil {
		where = append(where, "date >= ?")
		args = append(args, filter.StartDate.UTC())
	}
	if filter.EndDate != nil {
		where = append(where, "date <= ?")
		args = append(args, filter.EndDate.UTC())
	}
	if filter.BankAccount != "" {
		where = append(where, "bank_account = ?")
		args = append(args, filter.BankAccount)
	}

	query := "SELECT " + transactionColumns + " FROM transactions"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY date ASC, id ASC"

	switch {
	case filter.Limit > 0:
		query += " LIMIT ? OFFSET ?"
		args = append(args, filter.Limit, filter.Offset)
	case filter.Offset > 0:
		query += " LIMIT -1 OFFSET ?"
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", mapError(err))
	}
	defer func() { _ = rows.Close() }()

	var transactions []model.Transaction
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		transactions = append(transactions, txn)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transactions: %w", err)
	}

	return transactions, nil
}

// GetTransactionByID retrieves a single transaction.
func (s *SQLiteStorage) GetTransactionByID(ctx context.Context, id string) (*model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, "SELECT "+transactionColumns+" FROM transactions WHERE id = ?", id)
	txn, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("transaction %s: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", mapError(err))
	}

	return &txn, nil
}

// CountTransactions returns the number of stored transactions.
func (s *SQLiteStorage) CountTransactions(ctx context.Context) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}

	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM transactions").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count transactions: %w", mapError(err))
	}
	return count, nil
}

// ApplyRuleUpdate persists the fields a rule action may change and records
// the application, atomically.
func (s *SQLiteStorage) ApplyRuleUpdate(ctx context.Context, txn model.Transaction, rule model.TransactionRule) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(txn.ID, "transaction ID"); err != nil {
		return err
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		now := time.Now().UTC()
		result, err := tx.ExecContext(ctx, `
			UPDATE transactions
			SET category = ?, notes = ?, is_internal = ?, updated_at = ?
			WHERE id = ?`,
			nullableString(txn.Category), txn.Notes, txn.IsInternal, now, txn.ID,
		)
		if err != nil {
			return fmt.Errorf("failed to update transaction %s: %w", txn.ID, mapError(err))
		}

		n, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to check update result: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("transaction %s: %w", txn.ID, common.ErrNotFound)
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO rule_applications (transaction_id, rule_id, rule_name, applied_at)
			VALUES (?, ?, ?, ?)`,
			txn.ID, rule.ID, rule.Name, now,
		); err != nil {
			return fmt.Errorf("failed to record rule application: %w", mapError(err))
		}

		return nil
	})
}

// GetRuleApplications returns the rule application history of a transaction,
// most recent first.
func (s *SQLiteStorage) GetRuleApplications(ctx context.Context, transactionID string) ([]model.RuleApplication, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(transactionID, "transactionID"); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, transaction_id, rule_id, rule_name, applied_at
		FROM rule_applications
		WHERE transaction_id = ?
		ORDER BY applied_at DESC, id DESC`, transactionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query rule applications: %w", mapError(err))
	}
	defer func() { _ = rows.Close() }()

	var applications []model.RuleApplication
	for rows.Next() {
		var app model.RuleApplication
		if err := rows.Scan(&app.ID, &app.TransactionID, &app.RuleID, &app.RuleName, &app.AppliedAt); err != nil {
			return nil, fmt.Errorf("failed to scan rule application: %w", err)
		}
		applications = append(applications, app)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rule applications: %w", err)
	}

	return applications, nil
}
