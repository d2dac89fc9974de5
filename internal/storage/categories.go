package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Veraticus/spice-ledger/internal/common"
	"github.com/Veraticus/spice-ledger/internal/model"
)

const categoryColumns = `id, name, description, type, created_at, is_active`

func scanCategory(row rowScanner) (model.Category, error) {
	var cat model.Category
	var categoryType string
	err := row.Scan(&cat.ID, &cat.Name, &cat.Description, &categoryType, &cat.CreatedAt, &cat.IsActive)
	cat.Type = model.CategoryType(categoryType)
	return cat, err
}

// GetCategories returns all active categories.
func (s *SQLiteStorage) GetCategories(ctx context.Context) ([]model.Category, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	query := `
		SELECT ` + categoryColumns + `
		FROM categories
		WHERE is_active = 1
		ORDER BY name`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query categories: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var categories []model.Category
	for rows.Next() {
		cat, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		categories = append(categories, cat)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating categories: %w", err)
	}

	slog.Debug("retrieved categories", "count", len(categories))
	return categories, nil
}

// GetCategoryByName returns an active category by its name.
func (s *SQLiteStorage) GetCategoryByName(ctx context.Context, name string) (*model.Category, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(name, "name"); err != nil {
		return nil, err
	}

	return s.getCategory(ctx, s.db, "name = ? AND is_active = 1", name)
}

// GetCategoryByID returns an active category by its ID.
func (s *SQLiteStorage) GetCategoryByID(ctx context.Context, id int) (*model.Category, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	return s.getCategory(ctx, s.db, "id = ? AND is_active = 1", id)
}

func (s *SQLiteStorage) getCategory(ctx context.Context, q queryable, where string, arg any) (*model.Category, error) {
	row := q.QueryRowContext(ctx, "SELECT "+categoryColumns+" FROM categories WHERE "+where, arg)
	cat, err := scanCategory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("category %v: %w", arg, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query category: %w", err)
	}
	return &cat, nil
}

// CreateCategory creates a new category. Creating a category that was
// previously deleted reactivates it.
func (s *SQLiteStorage) CreateCategory(ctx context.Context, name, description string, categoryType model.CategoryType) (*model.Category, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if categoryType == "" {
		categoryType = model.CategoryTypeExpense
	}
	if err := validateCategory(name, categoryType); err != nil {
		return nil, err
	}

	var category *model.Category
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		existing, err := s.getCategory(ctx, tx, "name = ?", name)
		switch {
		case err == nil:
			if existing.IsActive {
				return fmt.Errorf("category %q: %w", name, common.ErrDuplicateEntry)
			}
			if _, err := tx.ExecContext(ctx,
				`UPDATE categories SET is_active = 1, description = ?, type = ? WHERE id = ?`,
				description, string(categoryType), existing.ID,
			); err != nil {
				return fmt.Errorf("failed to reactivate category: %w", mapError(err))
			}
			existing.IsActive = true
			existing.Description = description
			existing.Type = categoryType
			category = existing
			slog.Info("reactivated existing category", "name", name)
			return nil
		case !errors.Is(err, common.ErrNotFound):
			return fmt.Errorf("failed to check existing category: %w", err)
		}

		now := time.Now().UTC()
		result, err := tx.ExecContext(ctx, `
			INSERT INTO categories (name, description, type, created_at, is_active)
			VALUES (?, ?, ?, ?, 1)`,
			name, description, string(categoryType), now,
		)
		if err != nil {
			return fmt.Errorf("failed to create category: %w", mapError(err))
		}

		id, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get category ID: %w", err)
		}

		category = &model.Category{
			ID:          int(id),
			Name:        name,
			Description: description,
			Type:        categoryType,
			CreatedAt:   now,
			IsActive:    true,
		}
		slog.Info("created new category", "name", name, "id", id)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return category, nil
}

// UpdateCategory renames a category and replaces its description.
// Transactions keep the category name they were stamped with.
func (s *SQLiteStorage) UpdateCategory(ctx context.Context, id int, name, description string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(name, "name"); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE categories SET name = ?, description = ? WHERE id = ? AND is_active = 1`,
		name, description, id,
	)
	if err != nil {
		return fmt.Errorf("failed to update category: %w", mapError(err))
	}
	return expectAffected(result, fmt.Sprintf("category %d", id))
}

// DeleteCategory deactivates a category.
func (s *SQLiteStorage) DeleteCategory(ctx context.Context, id int) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, `UPDATE categories SET is_active = 0 WHERE id = ? AND is_active = 1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete category: %w", mapError(err))
	}
	return expectAffected(result, fmt.Sprintf("category %d", id))
}

func expectAffected(result sql.Result, what string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", what, common.ErrNotFound)
	}
	return nil
}
