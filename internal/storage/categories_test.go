package storage

import (
	"context"
	"testing"

	"github.com/Veraticus/spice-ledger/internal/common"
	"github.com/Veraticus/spice-ledger/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteStorage_Categories(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	dining, err := store.CreateCategory(ctx, "Dining", "Restaurants and coffee", model.CategoryTypeExpense)
	require.NoError(t, err)
	salary, err := store.CreateCategory(ctx, "Salary", "", model.CategoryTypeIncome)
	require.NoError(t, err)
	defaulted, err := store.CreateCategory(ctx, "Misc", "", "")
	require.NoError(t, err)
	assert.Equal(t, model.CategoryTypeExpense, defaulted.Type)

	cats, err := store.GetCategories(ctx)
	require.NoError(t, err)
	require.Len(t, cats, 3)
	assert.Equal(t, "Dining", cats[0].Name, "sorted by name")

	got, err := store.GetCategoryByName(ctx, "Salary")
	require.NoError(t, err)
	assert.Equal(t, salary.ID, got.ID)
	assert.Equal(t, model.CategoryTypeIncome, got.Type)

	got, err = store.GetCategoryByID(ctx, dining.ID)
	require.NoError(t, err)
	assert.Equal(t, "Restaurants and coffee", got.Description)

	_, err = store.CreateCategory(ctx, "Dining", "again", model.CategoryTypeExpense)
	assert.ErrorIs(t, err, common.ErrDuplicateEntry)

	require.NoError(t, store.UpdateCategory(ctx, dining.ID, "Eating Out", "Renamed"))
	got, err = store.GetCategoryByID(ctx, dining.ID)
	require.NoError(t, err)
	assert.Equal(t, "Eating Out", got.Name)

	require.NoError(t, store.DeleteCategory(ctx, salary.ID))
	_, err = store.GetCategoryByName(ctx, "Salary")
	assert.ErrorIs(t, err, common.ErrNotFound)
	assert.ErrorIs(t, store.DeleteCategory(ctx, salary.ID), common.ErrNotFound)

	reactivated, err := store.CreateCategory(ctx, "Salary", "Paychecks", model.CategoryTypeIncome)
	require.NoError(t, err)
	assert.Equal(t, salary.ID, reactivated.ID)
	assert.Equal(t, "Paychecks", reactivated.Description)

	t.Run("validation", func(t *testing.T) {
		_, err := store.CreateCategory(ctx, "", "", model.CategoryTypeExpense)
		assert.ErrorIs(t, err, ErrInvalidCategory)
		_, err = store.CreateCategory(ctx, "Odd", "", "transfer")
		assert.ErrorIs(t, err, ErrInvalidCategory)
		assert.ErrorIs(t, store.UpdateCategory(ctx, 999, "x", ""), common.ErrNotFound)
	})

	t.Run("rename onto existing name", func(t *testing.T) {
		err := store.UpdateCategory(ctx, defaulted.ID, "Eating Out", "")
		assert.ErrorIs(t, err, common.ErrDuplicateEntry)
	})
}
