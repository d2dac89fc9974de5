// Package rules evaluates transaction rule filter trees.
//
// A rule's filters form a tree of model.GroupFilter nodes. Each node joins its
// atomic filters and nested groups with AND or OR. Evaluation is pure: a
// Matcher holds only the time zone used for date parsing and day comparison,
// so one instance can be shared across goroutines.
package rules

import (
	"time"

	"github.com/Veraticus/spice-ledger/internal/model"
)

// Matcher evaluates filters and filter groups against transactions.
type Matcher struct {
	location *time.Location
}

// NewMatcher creates a matcher that parses filter dates and compares calendar
// days in loc. A nil loc means time.Local.
func NewMatcher(loc *time.Location) *Matcher {
	if loc == nil {
		loc = time.Local
	}
	return &Matcher{location: loc}
}

// Location returns the matcher's time zone.
func (m *Matcher) Location() *time.Location {
	return m.location
}

// MatchesFilter evaluates one atomic condition against txn.
func (m *Matcher) MatchesFilter(txn model.Transaction, f model.Filter) bool {
	return m.Compare(FieldValue(txn, f.Field), f.Value, f.Operator, f.Field)
}

// MatchesGroup evaluates a filter tree against txn.
//
// A group with no filters and no sub-groups never matches, whatever its
// operator. Children are visited filters first, then groups, in slice order,
// stopping as soon as the result is decided. Unknown operators never match.
func (m *Matcher) MatchesGroup(txn model.Transaction, g model.GroupFilter) bool {
	if g.IsEmpty() {
		return false
	}

	switch g.Operator {
	case model.CombinatorAnd:
		for _, f := range g.Filters {
			if !m.MatchesFilter(txn, f) {
				return false
			}
		}
		for _, sub := range g.Groups {
			if !m.MatchesGroup(txn, sub) {
				return false
			}
		}
		return true
	case model.CombinatorOr:
		for _, f := range g.Filters {
			if m.MatchesFilter(txn, f) {
				return true
			}
		}
		for _, sub := range g.Groups {
			if m.MatchesGroup(txn, sub) {
				return true
			}
		}
		return false
	}

	return false
}

// Matches reports whether txn matches the rule's filter tree.
// It does not look at rule.Enabled.
func (m *Matcher) Matches(txn model.Transaction, rule model.TransactionRule) bool {
	return m.MatchesGroup(txn, rule.Filters)
}

// FirstMatch returns the index of the first rule in rules that matches txn,
// or -1. Callers pass rules already sorted and filtered.
func (m *Matcher) FirstMatch(txn model.Transaction, rules []model.TransactionRule) int {
	for i := range rules {
		if m.Matches(txn, rules[i]) {
			return i
		}
	}
	return -1
}

var defaultMatcher = NewMatcher(nil)

// Compare is Matcher.Compare using the local time zone.
func Compare(v Value, raw string, op model.Operator, field model.FieldName) bool {
	return defaultMatcher.Compare(v, raw, op, field)
}

// MatchesFilter is Matcher.MatchesFilter using the local time zone.
func MatchesFilter(txn model.Transaction, f model.Filter) bool {
	return defaultMatcher.MatchesFilter(txn, f)
}

// MatchesGroup is Matcher.MatchesGroup using the local time zone.
func MatchesGroup(txn model.Transaction, g model.GroupFilter) bool {
	return defaultMatcher.MatchesGroup(txn, g)
}
