// Package model defines the core data structures for the spice ledger.
package model

import (
	"cmp"
	"slices"
	"time"
)

// FieldName identifies the transaction field a filter reads.
type FieldName string

// Recognized filter fields.
const (
	FieldDate        FieldName = "date"
	FieldAmount      FieldName = "amount"
	FieldDescription FieldName = "description"
	FieldCategory    FieldName = "category"
	FieldType        FieldName = "type"
	FieldBankAccount FieldName = "bankAccount"
)

// FieldNames lists every recognized field in display order.
var FieldNames = []FieldName{
	FieldDate, FieldAmount, FieldDescription, FieldCategory, FieldType, FieldBankAccount,
}

// IsValid reports whether f is one of the recognized fields.
func (f FieldName) IsValid() bool {
	return slices.Contains(FieldNames, f)
}

// Operator is the comparison a filter performs.
type Operator string

// Comparison operators.
const (
	OpContains           Operator = "contains"
	OpEquals             Operator = "equals"
	OpStartsWith         Operator = "startsWith"
	OpEndsWith           Operator = "endsWith"
	OpGreaterThan        Operator = "greaterThan"
	OpLessThan           Operator = "lessThan"
	OpGreaterThanOrEqual Operator = "greaterThanOrEqual"
	OpLessThanOrEqual    Operator = "lessThanOrEqual"
	OpNotEquals          Operator = "notEquals"
)

// Operators lists every recognized comparison operator.
var Operators = []Operator{
	OpContains, OpEquals, OpStartsWith, OpEndsWith,
	OpGreaterThan, OpLessThan, OpGreaterThanOrEqual, OpLessThanOrEqual,
	OpNotEquals,
}

// IsValid reports whether o is one of the recognized operators.
func (o Operator) IsValid() bool {
	return slices.Contains(Operators, o)
}

// Combinator joins the children of a GroupFilter.
type Combinator string

// Group combinators.
const (
	CombinatorAnd Combinator = "and"
	CombinatorOr  Combinator = "or"
)

// IsValid reports whether c is "and" or "or".
func (c Combinator) IsValid() bool {
	return c == CombinatorAnd || c == CombinatorOr
}

// Filter is one atomic field/operator/value condition.
// Value is always stored as text and converted at comparison time.
type Filter struct {
	ID       string    `json:"id"`
	Field    FieldName `json:"field"`
	Operator Operator  `json:"operator"`
	Value    string    `json:"value"`
}

// GroupFilter combines filters and nested groups with AND or OR.
type GroupFilter struct {
	ID       string        `json:"id"`
	Operator Combinator    `json:"operator"`
	Filters  []Filter      `json:"filters,omitempty"`
	Groups   []GroupFilter `json:"groups,omitempty"`
}

// IsEmpty reports whether the group has neither filters nor sub-groups.
func (g GroupFilter) IsEmpty() bool {
	return len(g.Filters) == 0 && len(g.Groups) == 0
}

// Internal flag values accepted by RuleAction.IsInternal.
const (
	InternalYes = "yes"
	InternalNo  = "no"
)

// RuleAction holds the field overrides applied to a matching transaction.
type RuleAction struct {
	Category   *string `json:"category,omitempty"`
	IsInternal *string `json:"isInternal,omitempty"`
	Notes      *string `json:"notes,omitempty"`
}

// IsEmpty reports whether the action overrides nothing.
func (a RuleAction) IsEmpty() bool {
	return a.Category == nil && a.IsInternal == nil && a.Notes == nil
}

// Apply writes the overrides onto txn and reports whether anything changed.
// IsInternal values other than "yes" and "no" are ignored.
func (a RuleAction) Apply(txn *Transaction) bool {
	changed := false

	if a.Category != nil && (txn.Category == nil || *txn.Category != *a.Category) {
		category := *a.Category
		txn.Category = &category
		changed = true
	}

	if a.Notes != nil && txn.Notes != *a.Notes {
		txn.Notes = *a.Notes
		changed = true
	}

	if a.IsInternal != nil {
		var internal bool
		switch *a.IsInternal {
		case InternalYes:
			internal = true
		case InternalNo:
			internal = false
		default:
			return changed
		}
		if txn.IsInternal != internal {
			txn.IsInternal = internal
			changed = true
		}
	}

	return changed
}

// TransactionRule is a named, ordered filter tree plus an action.
type TransactionRule struct {
	CreatedAt time.Time   `json:"createdAt"`
	UpdatedAt time.Time   `json:"updatedAt"`
	Filters   GroupFilter `json:"filters"`
	Action    RuleAction  `json:"action"`
	Name      string      `json:"name"`
	ID        int         `json:"id"`
	Order     int         `json:"order"`
	Enabled   bool        `json:"enabled"`
}

// SortRules orders rules by ascending Order, breaking ties by ID.
func SortRules(rules []TransactionRule) {
	slices.SortStableFunc(rules, func(a, b TransactionRule) int {
		if c := cmp.Compare(a.Order, b.Order); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}

// RuleApplication records a rule action persisted onto a transaction.
type RuleApplication struct {
	AppliedAt     time.Time `json:"appliedAt"`
	TransactionID string    `json:"transactionId"`
	RuleName      string    `json:"ruleName"`
	ID            int       `json:"id"`
	RuleID        int       `json:"ruleId"`
}
