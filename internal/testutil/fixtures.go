package testutil

import (
	"fmt"
	"time"

	"github.com/Veraticus/spice-ledger/internal/model"
)

// CategoryName represents a strongly-typed category name.
type CategoryName string

// String returns the string representation of the category name.
func (c CategoryName) String() string {
	return string(c)
}

// Type returns the category type the fixture is seeded with.
func (c CategoryName) Type() model.CategoryType {
	switch c {
	case CategorySalary, CategoryRefunds:
		return model.CategoryTypeIncome
	case CategoryTransfers:
		return model.CategoryTypeSystem
	}
	return model.CategoryTypeExpense
}

// Common category names used across tests.
const (
	CategoryGroceries CategoryName = "Groceries"
	CategoryDining    CategoryName = "Dining"
	CategoryRent      CategoryName = "Rent"
	CategoryUtilities CategoryName = "Utilities"
	CategorySalary    CategoryName = "Salary"
	CategoryRefunds   CategoryName = "Refunds"
	CategoryTransfers CategoryName = "Transfers"
)

// TxnOption customizes a fixture transaction.
type TxnOption func(*model.Transaction)

// WithCategory sets the transaction's category.
func WithCategory(category string) TxnOption {
	return func(t *model.Transaction) { t.Category = model.StringPtr(category) }
}

// WithAccount sets the transaction's bank account.
func WithAccount(account string) TxnOption {
	return func(t *model.Transaction) { t.BankAccount = account }
}

// WithDate sets the transaction's date.
func WithDate(date time.Time) TxnOption {
	return func(t *model.Transaction) { t.Date = date }
}

// NewTransaction builds a valid transaction with a stable hash.
func NewTransaction(id, description string, amount float64, txnType model.TransactionType, opts ...TxnOption) model.Transaction {
	txn := model.Transaction{
		ID:          id,
		Date:        time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC),
		Description: description,
		Amount:      amount,
		Type:        txnType,
		BankAccount: "Checking",
	}
	for _, opt := range opts {
		opt(&txn)
	}
	txn.Hash = txn.GenerateHash() + ":" + id
	return txn
}

// ContainsRule builds an enabled rule that assigns category to transactions
// whose description contains needle.
func ContainsRule(name string, order int, needle, category string) model.TransactionRule {
	return model.TransactionRule{
		Name:    name,
		Order:   order,
		Enabled: true,
		Filters: model.GroupFilter{
			ID:       fmt.Sprintf("%s-root", name),
			Operator: model.CombinatorAnd,
			Filters: []model.Filter{
				{ID: fmt.Sprintf("%s-f1", name), Field: model.FieldDescription, Operator: model.OpContains, Value: needle},
			},
		},
		Action: model.RuleAction{Category: model.StringPtr(category)},
	}
}
