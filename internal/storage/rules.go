package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Veraticus/spice-ledger/internal/common"
	"github.com/Veraticus/spice-ledger/internal/model"
)

const ruleColumns = `id, name, rule_order, enabled, filters, action, created_at, updated_at`

func scanRule(row rowScanner) (model.TransactionRule, error) {
	var rule model.TransactionRule
	var filtersJSON, actionJSON string

	if err := row.Scan(
		&rule.ID, &rule.Name, &rule.Order, &rule.Enabled,
		&filtersJSON, &actionJSON, &rule.CreatedAt, &rule.UpdatedAt,
	); err != nil {
		return rule, err
	}

	if err := json.Unmarshal([]byte(filtersJSON), &rule.Filters); err != nil {
		return rule, fmt.Errorf("rule %d: failed to decode filters: %w", rule.ID, err)
	}
	if err := json.Unmarshal([]byte(actionJSON), &rule.Action); err != nil {
		return rule, fmt.Errorf("rule %d: failed to decode action: %w", rule.ID, err)
	}
	return rule, nil
}

func encodeRule(rule *model.TransactionRule) (filters, action string, err error) {
	filtersJSON, err := json.Marshal(rule.Filters)
	if err != nil {
		return "", "", fmt.Errorf("failed to encode filters: %w", err)
	}
	actionJSON, err := json.Marshal(rule.Action)
	if err != nil {
		return "", "", fmt.Errorf("failed to encode action: %w", err)
	}
	return string(filtersJSON), string(actionJSON), nil
}

// CreateRule stores a new rule and sets its ID and timestamps.
func (s *SQLiteStorage) CreateRule(ctx context.Context, rule *model.TransactionRule) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateRule(rule); err != nil {
		return err
	}

	filtersJSON, actionJSON, err := encodeRule(rule)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO transaction_rules (name, rule_order, enabled, filters, action, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rule.Name, rule.Order, rule.Enabled, filtersJSON, actionJSON, now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to create rule: %w", mapError(err))
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get rule ID: %w", err)
	}

	rule.ID = int(id)
	rule.CreatedAt = now
	rule.UpdatedAt = now
	return nil
}

// GetRule retrieves a rule by ID.
func (s *SQLiteStorage) GetRule(ctx context.Context, id int) (*model.TransactionRule, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.getRule(ctx, s.db, id)
}

func (s *SQLiteStorage) getRule(ctx context.Context, q queryable, id int) (*model.TransactionRule, error) {
	row := q.QueryRowContext(ctx, "SELECT "+ruleColumns+" FROM transaction_rules WHERE id = ?", id)
	rule, err := scanRule(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("rule %d: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get rule: %w", err)
	}
	return &rule, nil
}

// ListRules returns every rule in application order.
func (s *SQLiteStorage) ListRules(ctx context.Context) ([]model.TransactionRule, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.listRules(ctx, "")
}

// ListEnabledRules returns enabled rules in application order.
func (s *SQLiteStorage) ListEnabledRules(ctx context.Context) ([]model.TransactionRule, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.listRules(ctx, "WHERE enabled = 1")
}

func (s *SQLiteStorage) listRules(ctx context.Context, where string) ([]model.TransactionRule, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+ruleColumns+" FROM transaction_rules "+where+" ORDER BY rule_order ASC, id ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to query rules: %w", mapError(err))
	}
	defer func() { _ = rows.Close() }()

	var rules []model.TransactionRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan rule: %w", err)
		}
		rules = append(rules, rule)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rules: %w", err)
	}

	return rules, nil
}

// UpdateRule replaces a stored rule's name, order, enabled flag, filters and action.
func (s *SQLiteStorage) UpdateRule(ctx context.Context, rule *model.TransactionRule) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateRule(rule); err != nil {
		return err
	}

	filtersJSON, actionJSON, err := encodeRule(rule)
	if err != nil {
		return err
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		existing, err := s.getRule(ctx, tx, rule.ID)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		if _, err := tx.ExecContext(ctx, `
			UPDATE transaction_rules
			SET name = ?, rule_order = ?, enabled = ?, filters = ?, action = ?, updated_at = ?
			WHERE id = ?`,
			rule.Name, rule.Order, rule.Enabled, filtersJSON, actionJSON, now, rule.ID,
		); err != nil {
			return fmt.Errorf("failed to update rule: %w", mapError(err))
		}

		rule.CreatedAt = existing.CreatedAt
		rule.UpdatedAt = now
		return nil
	})
}

// DeleteRule removes a rule. Its application history is kept.
func (s *SQLiteStorage) DeleteRule(ctx context.Context, id int) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, "DELETE FROM transaction_rules WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete rule: %w", mapError(err))
	}
	return expectAffected(result, fmt.Sprintf("rule %d", id))
}
