package rules

import (
	"cmp"
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/Veraticus/spice-ledger/internal/model"
	"github.com/spf13/cast"
)

// dateLayouts are tried when cast cannot parse a filter date. Slash dates are
// month first.
var dateLayouts = []string{
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006/1/2",
	"2006/1/2 15:04:05",
	"1/2/2006",
	"1/2/2006 15:04:05",
	"1/2/2006 15:04",
	"Jan 2, 2006",
	"January 2, 2006",
	"Jan 2 2006",
	"January 2 2006",
	"Mon, Jan 2, 2006",
	"Monday, January 2, 2006",
}

// numberPrefix is the leading decimal literal of a filter number. Trailing
// text such as a currency code is ignored.
var numberPrefix = regexp.MustCompile(`^[+-]?(?:[0-9]+(?:\.[0-9]*)?|\.[0-9]+)(?:[eE][+-]?[0-9]+)?`)

// Compare reports whether a transaction-side value satisfies op against the
// raw filter value, using the type tag of field to convert raw.
//
// A missing value satisfies equals and notEquals and nothing else.
func (m *Matcher) Compare(v Value, raw string, op model.Operator, field model.FieldName) bool {
	if v.IsNone() {
		return op == model.OpEquals || op == model.OpNotEquals
	}

	target := m.convert(raw, TypeOf(field))

	switch op {
	case model.OpContains:
		return strings.Contains(v.normalized(), target.normalized())
	case model.OpStartsWith:
		return strings.HasPrefix(v.normalized(), target.normalized())
	case model.OpEndsWith:
		return strings.HasSuffix(v.normalized(), target.normalized())
	case model.OpEquals:
		return m.equal(v, target)
	case model.OpNotEquals:
		return !m.equal(v, target)
	case model.OpGreaterThan:
		c, ok := order(v, target)
		return ok && c > 0
	case model.OpLessThan:
		c, ok := order(v, target)
		return ok && c < 0
	case model.OpGreaterThanOrEqual:
		c, ok := order(v, target)
		return ok && c >= 0
	case model.OpLessThanOrEqual:
		c, ok := order(v, target)
		return ok && c <= 0
	}

	return false
}

// convert turns a raw filter value into a Value of the given type.
// Unparsable dates become invalid dates and unparsable numbers become NaN.
func (m *Matcher) convert(raw string, t FieldType) Value {
	switch t {
	case FieldTypeDate:
		return DateValue(m.parseDate(strings.TrimSpace(raw)))
	case FieldTypeNumber:
		return NumberValue(parseNumber(raw))
	}
	return TextValue(raw)
}

// parseDate returns the zero time when raw is not a date.
func (m *Matcher) parseDate(raw string) time.Time {
	if raw == "" {
		return time.Time{}
	}
	if parsed, err := cast.StringToDateInDefaultLocation(raw, m.location); err == nil {
		return parsed
	}
	for _, layout := range dateLayouts {
		if parsed, err := time.ParseInLocation(layout, raw, m.location); err == nil {
			return parsed
		}
	}
	return time.Time{}
}

// parseNumber reads the leading decimal number of raw, so "100 USD" is 100
// and "1_000" is 1. No leading number is NaN.
func parseNumber(raw string) float64 {
	trimmed := strings.TrimSpace(raw)
	literal := numberPrefix.FindString(trimmed)
	if literal == "" {
		switch {
		case strings.HasPrefix(trimmed, "Infinity"), strings.HasPrefix(trimmed, "+Infinity"):
			return math.Inf(1)
		case strings.HasPrefix(trimmed, "-Infinity"):
			return math.Inf(-1)
		}
		return math.NaN()
	}
	f, err := cast.ToFloat64E(literal)
	if err != nil {
		return math.NaN()
	}
	return f
}

// equal is day-granular for dates and exact for numbers. Anything else, and
// mixed kinds, compare as case-insensitive text.
func (m *Matcher) equal(a, b Value) bool {
	switch {
	case a.Kind == KindDate && b.Kind == KindDate:
		if !a.valid() || !b.valid() {
			return false
		}
		ay, am, ad := a.Time.In(m.location).Date()
		by, bm, bd := b.Time.In(m.location).Date()
		return ay == by && am == bm && ad == bd
	case a.Kind == KindNumber && b.Kind == KindNumber:
		return a.Number == b.Number
	}
	return a.normalized() == b.normalized()
}

// order compares a to b. Date and number pairs use their native ordering;
// everything else falls back to lexicographic order of the normalized text.
// ok is false when either side is an invalid date or NaN.
func order(a, b Value) (c int, ok bool) {
	switch {
	case a.Kind == KindDate && b.Kind == KindDate:
		if !a.valid() || !b.valid() {
			return 0, false
		}
		return a.Time.Compare(b.Time), true
	case a.Kind == KindNumber && b.Kind == KindNumber:
		if !a.valid() || !b.valid() {
			return 0, false
		}
		return cmp.Compare(a.Number, b.Number), true
	}
	return strings.Compare(a.normalized(), b.normalized()), true
}
