package rules

import (
	"fmt"
	"math"
	"strings"

	"github.com/Veraticus/spice-ledger/internal/model"
)

// Issue describes a filter tree node that will evaluate in a surprising way.
type Issue struct {
	Path     string `json:"path"`
	FilterID string `json:"filterId,omitempty"`
	Message  string `json:"message"`
}

func (i Issue) String() string {
	if i.FilterID != "" {
		return fmt.Sprintf("%s (%s): %s", i.Path, i.FilterID, i.Message)
	}
	return fmt.Sprintf("%s: %s", i.Path, i.Message)
}

// Validate walks a filter tree and reports nodes that can never match or that
// hold values the comparator cannot convert. It does not change evaluation:
// a tree with issues still evaluates exactly as written.
func (m *Matcher) Validate(g model.GroupFilter) []Issue {
	var issues []Issue
	m.validateGroup(g, "filters", &issues)
	return issues
}

// Validate is Matcher.Validate using the local time zone.
func Validate(g model.GroupFilter) []Issue {
	return defaultMatcher.Validate(g)
}

func (m *Matcher) validateGroup(g model.GroupFilter, path string, issues *[]Issue) {
	if !g.Operator.IsValid() {
		*issues = append(*issues, Issue{
			Path:     path,
			FilterID: g.ID,
			Message:  fmt.Sprintf("unknown group operator %q never matches", g.Operator),
		})
	}
	if g.IsEmpty() {
		*issues = append(*issues, Issue{
			Path:     path,
			FilterID: g.ID,
			Message:  "empty group never matches",
		})
	}

	for i, f := range g.Filters {
		m.validateFilter(f, fmt.Sprintf("%s.filters[%d]", path, i), issues)
	}
	for i, sub := range g.Groups {
		m.validateGroup(sub, fmt.Sprintf("%s.groups[%d]", path, i), issues)
	}
}

func (m *Matcher) validateFilter(f model.Filter, path string, issues *[]Issue) {
	add := func(format string, args ...any) {
		*issues = append(*issues, Issue{Path: path, FilterID: f.ID, Message: fmt.Sprintf(format, args...)})
	}

	if !f.Field.IsValid() {
		add("unknown field %q only matches equals and notEquals", f.Field)
		return
	}
	if !f.Operator.IsValid() {
		add("unknown operator %q never matches", f.Operator)
		return
	}

	switch TypeOf(f.Field) {
	case FieldTypeDate:
		if !m.convert(f.Value, FieldTypeDate).valid() {
			add("value %q is not a date", f.Value)
		}
	case FieldTypeNumber:
		n := m.convert(f.Value, FieldTypeNumber)
		switch {
		case !n.valid():
			add("value %q is not a number", f.Value)
		case numberPrefix.FindString(strings.TrimSpace(f.Value)) != strings.TrimSpace(f.Value) && !math.IsInf(n.Number, 0):
			add("value %q is read as %s", f.Value, n)
		}
	case FieldTypeText:
		if f.Field == model.FieldType && f.Operator == model.OpEquals {
			if !model.TransactionType(strings.ToLower(f.Value)).IsValid() {
				add("type is always %q or %q", model.TypeCredit, model.TypeDebit)
			}
		}
	}
}
