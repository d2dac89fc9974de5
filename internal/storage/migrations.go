package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// ExpectedSchemaVersion is the latest schema version that the application expects.
// If the database cannot be migrated to this version, it's a fatal error.
const ExpectedSchemaVersion = 4

// Migration represents a database schema migration.
type Migration struct {
	Up          func(*sql.Tx) error
	Description string
	Version     int
}

func execAll(tx *sql.Tx, queries []string) error {
	for _, query := range queries {
		if _, err := tx.Exec(query); err != nil {
			return fmt.Errorf("failed to execute query '%s': %w", query, err)
		}
	}
	return nil
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Initial schema",
		Up: func(tx *sql.Tx) error {
			return execAll(tx, []string{
				`CREATE TABLE IF NOT EXISTS transactions (
					id TEXT PRIMARY KEY,
					hash TEXT UNIQUE NOT NULL,
					date DATETIME NOT NULL,
					description TEXT NOT NULL DEFAULT '',
					amount REAL NOT NULL,
					transaction_type TEXT NOT NULL CHECK (transaction_type IN ('credit', 'debit')),
					category TEXT,
					bank_account TEXT NOT NULL DEFAULT '',
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE INDEX idx_transactions_date ON transactions(date)`,
				`CREATE INDEX idx_transactions_category ON transactions(category)`,

				`CREATE TABLE IF NOT EXISTS categories (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					name TEXT UNIQUE NOT NULL,
					description TEXT NOT NULL DEFAULT '',
					type TEXT NOT NULL DEFAULT 'expense' CHECK (type IN ('income', 'expense', 'system')),
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					is_active BOOLEAN DEFAULT 1
				)`,
				`CREATE INDEX idx_categories_active ON categories(is_active)`,
			})
		},
	},
	{
		Version:     2,
		Description: "Add transaction rules",
		Up: func(tx *sql.Tx) error {
			return execAll(tx, []string{
				`CREATE TABLE IF NOT EXISTS transaction_rules (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					name TEXT NOT NULL,
					rule_order INTEGER NOT NULL DEFAULT 0,
					enabled BOOLEAN NOT NULL DEFAULT 1,
					filters TEXT NOT NULL,
					action TEXT NOT NULL DEFAULT '{}',
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE INDEX idx_transaction_rules_order ON transaction_rules(enabled, rule_order, id)`,
			})
		},
	},
	{
		Version:     3,
		Description: "Add rule-driven transaction fields and application history",
		Up: func(tx *sql.Tx) error {
			return execAll(tx, []string{
				`ALTER TABLE transactions ADD COLUMN notes TEXT NOT NULL DEFAULT ''`,
				`ALTER TABLE transactions ADD COLUMN is_internal BOOLEAN NOT NULL DEFAULT 0`,
				`CREATE TABLE IF NOT EXISTS rule_applications (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					transaction_id TEXT NOT NULL,
					rule_id INTEGER NOT NULL,
					rule_name TEXT NOT NULL,
					applied_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					FOREIGN KEY (transaction_id) REFERENCES transactions(id) ON DELETE CASCADE
				)`,
				`CREATE INDEX idx_rule_applications_transaction_id ON rule_applications(transaction_id)`,
			})
		},
	},
	{
		Version:     4,
		Description: "Index bank accounts for filtered listings",
		Up: func(tx *sql.Tx) error {
			return execAll(tx, []string{
				`CREATE INDEX IF NOT EXISTS idx_transactions_bank_account ON transactions(bank_account)`,
			})
		},
	},
}

// Migrate runs all pending migrations.
func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	currentVersion, err := s.SchemaVersion(ctx)
	if err != nil {
		return err
	}

	if currentVersion > ExpectedSchemaVersion {
		return fmt.Errorf("%w: database schema version %d is newer than supported version %d",
			ErrSchemaTooNew, currentVersion, ExpectedSchemaVersion)
	}

	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		tx, txErr := s.db.BeginTx(ctx, nil)
		if txErr != nil {
			return fmt.Errorf("failed to begin transaction: %w", txErr)
		}

		if upErr := migration.Up(tx); upErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", migration.Version, upErr)
		}

		if _, execErr := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", migration.Version)); execErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to update schema version: %w", execErr)
		}

		if commitErr := tx.Commit(); commitErr != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, commitErr)
		}

		slog.Info("Applied migration",
			"version", migration.Version,
			"description", migration.Description)
	}

	finalVersion, err := s.SchemaVersion(ctx)
	if err != nil {
		return fmt.Errorf("failed to verify final schema version: %w", err)
	}

	if finalVersion != ExpectedSchemaVersion {
		return fmt.Errorf("database schema version mismatch: expected %d, got %d", ExpectedSchemaVersion, finalVersion)
	}

	return nil
}

// PendingMigrations returns the migrations not yet applied.
func (s *SQLiteStorage) PendingMigrations(ctx context.Context) ([]Migration, error) {
	currentVersion, err := s.SchemaVersion(ctx)
	if err != nil {
		return nil, err
	}

	var pending []Migration
	for _, migration := range migrations {
		if migration.Version > currentVersion {
			pending = append(pending, migration)
		}
	}
	return pending, nil
}
