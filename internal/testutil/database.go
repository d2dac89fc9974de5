// Package testutil provides test helpers for packages that need a real,
// migrated database seeded with categories, rules and transactions.
package testutil

import (
	"context"
	"testing"

	"github.com/Veraticus/spice-ledger/internal/model"
	"github.com/Veraticus/spice-ledger/internal/storage"
)

// TestDB represents a test database with associated test utilities.
type TestDB struct {
	Storage *storage.SQLiteStorage
	t       *testing.T
}

// SetupTestDB creates a new in-memory test database, runs migrations and
// registers cleanup.
//
// Example:
//
//	db := testutil.SetupTestDB(t)
//	db.SeedCategories(testutil.CategoryDining, testutil.CategorySalary)
func SetupTestDB(t *testing.T) *TestDB {
	t.Helper()

	store, err := storage.NewSQLiteStorage(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	if err := store.Migrate(context.Background()); err != nil {
		_ = store.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() {
		_ = store.Close()
	})

	return &TestDB{Storage: store, t: t}
}

// SeedCategories creates the named categories with their fixture types.
func (db *TestDB) SeedCategories(names ...CategoryName) []model.Category {
	db.t.Helper()

	cats := make([]model.Category, 0, len(names))
	for _, name := range names {
		cat, err := db.Storage.CreateCategory(context.Background(), name.String(), "", name.Type())
		if err != nil {
			db.t.Fatalf("failed to seed category %q: %v", name, err)
		}
		cats = append(cats, *cat)
	}
	return cats
}

// SeedTransactions saves txns and fails the test if any was not inserted.
func (db *TestDB) SeedTransactions(txns ...model.Transaction) {
	db.t.Helper()

	inserted, err := db.Storage.SaveTransactions(context.Background(), txns)
	if err != nil {
		db.t.Fatalf("failed to seed transactions: %v", err)
	}
	if inserted != len(txns) {
		db.t.Fatalf("seeded %d of %d transactions; duplicate hashes?", inserted, len(txns))
	}
}

// SeedRules creates rules in order and returns them with their IDs set.
func (db *TestDB) SeedRules(rules ...model.TransactionRule) []model.TransactionRule {
	db.t.Helper()

	out := make([]model.TransactionRule, 0, len(rules))
	for i := range rules {
		rule := rules[i]
		if err := db.Storage.CreateRule(context.Background(), &rule); err != nil {
			db.t.Fatalf("failed to seed rule %q: %v", rule.Name, err)
		}
		out = append(out, rule)
	}
	return out
}

// MustGetTransaction loads a transaction or fails the test.
func (db *TestDB) MustGetTransaction(id string) model.Transaction {
	db.t.Helper()

	txn, err := db.Storage.GetTransactionByID(context.Background(), id)
	if err != nil {
		db.t.Fatalf("failed to load transaction %q: %v", id, err)
	}
	return *txn
}
