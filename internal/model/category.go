package model

import "time"

// CategoryType indicates whether a category is for income, expense, or system use.
type CategoryType string

const (
	// CategoryTypeIncome represents categories for income transactions.
	CategoryTypeIncome CategoryType = "income"
	// CategoryTypeExpense represents categories for expense transactions.
	CategoryTypeExpense CategoryType = "expense"
	// CategoryTypeSystem represents system-managed categories (e.g., transfers).
	CategoryTypeSystem CategoryType = "system"
)

// IsValid reports whether t is a known category type.
func (t CategoryType) IsValid() bool {
	switch t {
	case CategoryTypeIncome, CategoryTypeExpense, CategoryTypeSystem:
		return true
	}
	return false
}

// Category is a label that rules and users assign to transactions.
type Category struct {
	CreatedAt   time.Time    `json:"createdAt"`
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Type        CategoryType `json:"type"`
	ID          int          `json:"id"`
	IsActive    bool         `json:"isActive"`
}
