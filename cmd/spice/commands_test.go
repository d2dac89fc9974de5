package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/Veraticus/spice-ledger/internal/model"
	"github.com/Veraticus/spice-ledger/internal/service"
	"github.com/Veraticus/spice-ledger/internal/storage"
	"github.com/Veraticus/spice-ledger/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newLedger creates a migrated database file and returns its path and an open
// store for seeding. The store is closed before commands run against the file.
func newLedger(t *testing.T) (string, *storage.SQLiteStorage) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("SPICE_DATA_DIR", "")

	path := filepath.Join(t.TempDir(), "spice.db")
	store, err := storage.NewSQLiteStorage(path)
	require.NoError(t, err)
	require.NoError(t, store.Migrate(context.Background()))
	t.Cleanup(func() { _ = store.Close() })
	return path, store
}

func openLedger(t *testing.T, path string) *storage.SQLiteStorage {
	t.Helper()
	store, err := storage.NewSQLiteStorage(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

// runSpice executes the command tree against the database at path and
// returns everything it printed.
func runSpice(t *testing.T, path string, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--db", path, "--env-file", "", "--log-level", "error"}, args...))

	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func storedTransactions(t *testing.T, path string) []model.Transaction {
	t.Helper()
	txns, err := openLedger(t, path).GetTransactions(context.Background(), service.TransactionFilter{})
	require.NoError(t, err)
	return txns
}

func TestRulesApplyCommand(t *testing.T) {
	path, store := newLedger(t)
	ctx := context.Background()

	_, err := store.SaveTransactions(ctx, []model.Transaction{
		testutil.NewTransaction("t1", "Starbucks coffee", 5, model.TypeDebit),
		testutil.NewTransaction("t2", "Rent", 1500, model.TypeDebit),
	})
	require.NoError(t, err)
	rule := testutil.ContainsRule("Coffee", 1, "coffee", "Dining")
	require.NoError(t, store.CreateRule(ctx, &rule))
	require.NoError(t, store.Close())

	t.Run("preview writes nothing", func(t *testing.T) {
		out, err := runSpice(t, path, "rules", "apply", "--all", "--preview")
		require.NoError(t, err)
		assert.Contains(t, out, "preview")

		for _, txn := range storedTransactions(t, path) {
			assert.Nil(t, txn.Category, txn.ID)
		}
		assert.NoDirExists(t, filepath.Join(filepath.Dir(path), "backups"))
	})

	t.Run("apply backs up then writes", func(t *testing.T) {
		_, err := runSpice(t, path, "rules", "apply", "--all")
		require.NoError(t, err)

		byID := map[string]model.Transaction{}
		for _, txn := range storedTransactions(t, path) {
			byID[txn.ID] = txn
		}
		require.NotNil(t, byID["t1"].Category)
		assert.Equal(t, "Dining", *byID["t1"].Category)
		assert.Nil(t, byID["t2"].Category)

		backups, err := os.ReadDir(filepath.Join(filepath.Dir(path), "backups"))
		require.NoError(t, err)
		assert.Len(t, backups, 1)
	})

	t.Run("needs ids or --all", func(t *testing.T) {
		_, err := runSpice(t, path, "rules", "apply")
		assert.Error(t, err)
	})
}

func TestImportCommand(t *testing.T) {
	const statement = "date,amount,description\n" +
		"2024-01-15,-4.50,Blue Bottle coffee\n" +
		"2024-01-16,-1500,Rent\n"

	setup := func(t *testing.T) (dbPath, csvPath string) {
		t.Helper()
		dbPath, store := newLedger(t)
		rule := testutil.ContainsRule("Coffee", 1, "coffee", "Dining")
		require.NoError(t, store.CreateRule(context.Background(), &rule))
		require.NoError(t, store.Close())

		csvPath = filepath.Join(t.TempDir(), "statement.csv")
		require.NoError(t, os.WriteFile(csvPath, []byte(statement), 0o600))
		return dbPath, csvPath
	}

	categories := func(t *testing.T, dbPath string) map[string]string {
		t.Helper()
		got := map[string]string{}
		for _, txn := range storedTransactions(t, dbPath) {
			got[txn.Description] = txn.CategoryName()
		}
		return got
	}

	t.Run("rules run on import", func(t *testing.T) {
		dbPath, csvPath := setup(t)
		out, err := runSpice(t, dbPath, "import", csvPath, "--account", "Checking")
		require.NoError(t, err)
		assert.Contains(t, out, "Imported 2 new transactions")

		assert.Equal(t, map[string]string{"Blue Bottle coffee": "Dining", "Rent": ""}, categories(t, dbPath))
	})

	t.Run("--no-rules saves transactions untouched", func(t *testing.T) {
		dbPath, csvPath := setup(t)
		_, err := runSpice(t, dbPath, "import", csvPath, "--no-rules")
		require.NoError(t, err)

		assert.Equal(t, map[string]string{"Blue Bottle coffee": "", "Rent": ""}, categories(t, dbPath))
	})

	t.Run("--dry-run saves nothing", func(t *testing.T) {
		dbPath, csvPath := setup(t)
		out, err := runSpice(t, dbPath, "import", csvPath, "--dry-run")
		require.NoError(t, err)
		assert.Contains(t, out, "nothing saved")
		assert.Empty(t, storedTransactions(t, dbPath))
	})
}

func TestMigrateStatusCommand(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "fresh.db")

	out, err := runSpice(t, path, "migrate", "--status")
	require.NoError(t, err)
	assert.Contains(t, out, "Schema version 0 of 4")
	assert.Contains(t, out, "pending 1: Initial schema")

	_, err = runSpice(t, path, "migrate")
	require.NoError(t, err)

	out, err = runSpice(t, path, "migrate", "--status")
	require.NoError(t, err)
	assert.Contains(t, out, "Schema version 4 of 4")
	assert.NotContains(t, out, "pending")
}
