package model

import (
	"crypto/sha256"
	"fmt"
	"strings"
	"time"
)

// TransactionType is the direction of money movement on an account.
type TransactionType string

const (
	// TypeCredit is money coming into the account.
	TypeCredit TransactionType = "credit"
	// TypeDebit is money leaving the account.
	TypeDebit TransactionType = "debit"
)

// IsValid reports whether the type is credit or debit.
func (t TransactionType) IsValid() bool {
	return t == TypeCredit || t == TypeDebit
}

// ParseTransactionType maps common bank spellings onto a TransactionType.
func ParseTransactionType(s string) (TransactionType, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "credit", "cr", "c", "deposit", "income":
		return TypeCredit, true
	case "debit", "dr", "d", "withdrawal", "expense":
		return TypeDebit, true
	}
	return "", false
}

// Transaction represents a single ledger transaction from any source.
type Transaction struct {
	Date        time.Time       `json:"date"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
	Category    *string         `json:"category,omitempty"` // nil when uncategorized
	ID          string          `json:"id"`
	Description string          `json:"description"`
	Type        TransactionType `json:"type"`
	BankAccount string          `json:"bankAccount"`
	Notes       string          `json:"notes,omitempty"`
	Hash        string          `json:"-"`
	Amount      float64         `json:"amount"` // sign is carried by Type
	IsInternal  bool            `json:"isInternal"`
}

// CategoryName returns the category or an empty string when absent.
func (t Transaction) CategoryName() string {
	if t.Category == nil {
		return ""
	}
	return *t.Category
}

// GenerateHash creates a unique hash for duplicate detection.
func (t *Transaction) GenerateHash() string {
	data := fmt.Sprintf("%s:%.2f:%s:%s:%s",
		t.Date.Format("2006-01-02"),
		t.Amount,
		t.Type,
		strings.ToLower(strings.TrimSpace(t.Description)),
		t.BankAccount)
	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", hash)
}

// StringPtr returns a pointer to s. Handy for optional fields.
func StringPtr(s string) *string {
	return &s
}
