// Package service defines the interfaces for all application services.
package service

import (
	"context"
	"time"

	"github.com/Veraticus/spice-ledger/internal/model"
)

// TransactionFilter defines filtering options for transaction queries.
// Zero values mean "no constraint".
type TransactionFilter struct {
	StartDate   *time.Time
	EndDate     *time.Time
	BankAccount string
	IDs         []string
	Limit       int
	Offset      int
}

// TransactionStore persists ledger transactions.
type TransactionStore interface {
	SaveTransactions(ctx context.Context, transactions []model.Transaction) (int, error)
	GetTransactions(ctx context.Context, filter TransactionFilter) ([]model.Transaction, error)
	GetTransactionByID(ctx context.Context, id string) (*model.Transaction, error)
	CountTransactions(ctx context.Context) (int, error)
}

// RuleStore persists transaction rules and their application history.
type RuleStore interface {
	CreateRule(ctx context.Context, rule *model.TransactionRule) error
	GetRule(ctx context.Context, id int) (*model.TransactionRule, error)
	ListRules(ctx context.Context) ([]model.TransactionRule, error)
	ListEnabledRules(ctx context.Context) ([]model.TransactionRule, error)
	UpdateRule(ctx context.Context, rule *model.TransactionRule) error
	DeleteRule(ctx context.Context, id int) error

	// ApplyRuleUpdate persists the rule-driven fields of txn and records
	// the application in one database transaction.
	ApplyRuleUpdate(ctx context.Context, txn model.Transaction, rule model.TransactionRule) error
	GetRuleApplications(ctx context.Context, transactionID string) ([]model.RuleApplication, error)
}

// CategoryStore persists categories.
type CategoryStore interface {
	GetCategories(ctx context.Context) ([]model.Category, error)
	GetCategoryByName(ctx context.Context, name string) (*model.Category, error)
	GetCategoryByID(ctx context.Context, id int) (*model.Category, error)
	CreateCategory(ctx context.Context, name, description string, categoryType model.CategoryType) (*model.Category, error)
	UpdateCategory(ctx context.Context, id int, name, description string) error
	DeleteCategory(ctx context.Context, id int) error
}

// Storage defines the contract for our persistence layer.
type Storage interface {
	TransactionStore
	RuleStore
	CategoryStore

	// Database management
	Migrate(ctx context.Context) error
	SchemaVersion(ctx context.Context) (int, error)
	Backup(ctx context.Context, destPath string) error
	Close() error
}
