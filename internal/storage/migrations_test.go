package storage

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrate_FreshDatabase(t *testing.T) {
	store, err := NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	defer func() { _ = store.Close() }()
	ctx := context.Background()

	pending, err := store.PendingMigrations(ctx)
	require.NoError(t, err)
	assert.Len(t, pending, len(migrations))

	require.NoError(t, store.Migrate(ctx))

	version, err := store.SchemaVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, ExpectedSchemaVersion, version)

	pending, err = store.PendingMigrations(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)

	for _, table := range []string{"transactions", "categories", "transaction_rules", "rule_applications"} {
		var count int
		err := store.db.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?", table).Scan(&count)
		require.NoError(t, err)
		assert.Equal(t, 1, count, "table %s", table)
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()

	require.NoError(t, store.Migrate(context.Background()))
	require.NoError(t, store.Migrate(context.Background()))
}

func TestMigrate_VersionsAreSequential(t *testing.T) {
	for i, m := range migrations {
		assert.Equal(t, i+1, m.Version, "migration %q", m.Description)
	}
	assert.Equal(t, migrations[len(migrations)-1].Version, ExpectedSchemaVersion)
}

func TestMigrate_RejectsNewerSchema(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	_, err := store.db.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", ExpectedSchemaVersion+1))
	require.NoError(t, err)

	assert.ErrorIs(t, store.Migrate(ctx), ErrSchemaTooNew)
}
