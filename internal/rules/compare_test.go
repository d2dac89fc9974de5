package rules

import (
	"math"
	"testing"
	"time"

	"github.com/Veraticus/spice-ledger/internal/model"
	"github.com/stretchr/testify/assert"
)

func TestCompare_MissingValue(t *testing.T) {
	m := NewMatcher(time.UTC)

	for _, op := range model.Operators {
		t.Run(string(op), func(t *testing.T) {
			want := op == model.OpEquals || op == model.OpNotEquals
			assert.Equal(t, want, m.Compare(NoValue(), "anything", op, model.FieldCategory))
		})
	}

	assert.False(t, m.Compare(NoValue(), "x", model.Operator("bogus"), model.FieldCategory))
}

func TestCompare_Text(t *testing.T) {
	m := NewMatcher(time.UTC)
	desc := TextValue("Morning coffee run")

	tests := []struct {
		name  string
		v     Value
		raw   string
		op    model.Operator
		field model.FieldName
		want  bool
	}{
		{"contains is case-insensitive", desc, "COFFEE", model.OpContains, model.FieldDescription, true},
		{"contains miss", desc, "tea", model.OpContains, model.FieldDescription, false},
		{"contains empty needle", desc, "", model.OpContains, model.FieldDescription, true},
		{"startsWith", desc, "MORNING", model.OpStartsWith, model.FieldDescription, true},
		{"startsWith miss", desc, "coffee", model.OpStartsWith, model.FieldDescription, false},
		{"endsWith", desc, "Run", model.OpEndsWith, model.FieldDescription, true},
		{"endsWith miss", desc, "morning", model.OpEndsWith, model.FieldDescription, false},
		{"equals ignores case", desc, "morning COFFEE run", model.OpEquals, model.FieldDescription, true},
		{"equals is exact otherwise", desc, "morning coffee", model.OpEquals, model.FieldDescription, false},
		{"notEquals", desc, "morning coffee", model.OpNotEquals, model.FieldDescription, true},
		{"notEquals same text", desc, "MORNING COFFEE RUN", model.OpNotEquals, model.FieldDescription, false},
		{"type equals debit", TextValue("debit"), "DEBIT", model.OpEquals, model.FieldType, true},
		{"bank account equals", TextValue("Checking"), "checking", model.OpEquals, model.FieldBankAccount, true},
		{"greaterThan is lexicographic", TextValue("banana"), "apple", model.OpGreaterThan, model.FieldDescription, true},
		{"lessThan is lexicographic", TextValue("Banana"), "apple", model.OpLessThan, model.FieldDescription, false},
		{"lexicographic digits", TextValue("9"), "10", model.OpGreaterThan, model.FieldDescription, true},
		{"greaterThanOrEqual on equal text", TextValue("APPLE"), "apple", model.OpGreaterThanOrEqual, model.FieldDescription, true},
		{"lessThanOrEqual on equal text", TextValue("apple"), "APPLE", model.OpLessThanOrEqual, model.FieldDescription, true},
		{"unknown operator", desc, "coffee", model.Operator("matches"), model.FieldDescription, false},
		{"empty description equals empty", TextValue(""), "", model.OpEquals, model.FieldDescription, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, m.Compare(tt.v, tt.raw, tt.op, tt.field))
		})
	}
}

func TestCompare_Amount(t *testing.T) {
	m := NewMatcher(time.UTC)

	tests := []struct {
		name   string
		amount float64
		raw    string
		op     model.Operator
		want   bool
	}{
		{"greaterThan equal amount", 100, "100", model.OpGreaterThan, false},
		{"greaterThan larger amount", 100.01, "100", model.OpGreaterThan, true},
		{"greaterThanOrEqual equal amount", 100, "100", model.OpGreaterThanOrEqual, true},
		{"lessThan", 99.99, "100", model.OpLessThan, true},
		{"lessThanOrEqual", 100, "100.00", model.OpLessThanOrEqual, true},
		{"numeric equality ignores formatting", 100, "100.00", model.OpEquals, true},
		{"numeric equality with spaces", 12.5, " 12.5 ", model.OpEquals, true},
		{"numeric inequality", 100, "100.5", model.OpNotEquals, true},
		{"numeric order is not lexicographic", 9, "10", model.OpLessThan, true},
		{"contains on rendered number", 150.5, "50", model.OpContains, true},
		{"startsWith on rendered number", 150.5, "15", model.OpStartsWith, true},
		{"endsWith on rendered number", 150.5, ".5", model.OpEndsWith, true},
		{"unparsable equals", 100, "abc", model.OpEquals, false},
		{"unparsable notEquals", 100, "abc", model.OpNotEquals, true},
		{"unparsable greaterThan", 100, "abc", model.OpGreaterThan, false},
		{"unparsable lessThanOrEqual", 100, "abc", model.OpLessThanOrEqual, false},
		{"empty value", 0, "", model.OpEquals, false},
		{"trailing currency code is ignored", 100, "100 USD", model.OpEquals, true},
		{"trailing text ordering", 150, "100usd", model.OpGreaterThan, true},
		{"underscore ends the number", 1, "1_000", model.OpEquals, true},
		{"thousands separator ends the number", 1000, "1,000", model.OpGreaterThan, true},
		{"leading currency symbol", 100, "$100", model.OpEquals, false},
		{"exponent", 1500, "1.5e3", model.OpEquals, true},
		{"leading dot", 0.5, ".5", model.OpEquals, true},
		{"explicit sign", 5, "+5", model.OpEquals, true},
		{"infinity", 1e12, "Infinity", model.OpLessThan, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			txn := model.Transaction{Amount: tt.amount}
			v := FieldValue(txn, model.FieldAmount)
			assert.Equal(t, tt.want, m.Compare(v, tt.raw, tt.op, model.FieldAmount))
		})
	}
}

func TestCompare_NaNTransactionAmount(t *testing.T) {
	m := NewMatcher(time.UTC)
	v := NumberValue(math.NaN())

	assert.False(t, m.Compare(v, "1", model.OpEquals, model.FieldAmount))
	assert.True(t, m.Compare(v, "1", model.OpNotEquals, model.FieldAmount))
	assert.False(t, m.Compare(v, "1", model.OpGreaterThan, model.FieldAmount))
	assert.False(t, m.Compare(v, "1", model.OpLessThan, model.FieldAmount))
}

func TestCompare_Date(t *testing.T) {
	m := NewMatcher(time.UTC)
	late := DateValue(time.Date(2024, 1, 15, 23, 59, 0, 0, time.UTC))

	tests := []struct {
		name string
		raw  string
		op   model.Operator
		want bool
	}{
		{"equals is day-granular", "2024-01-15T00:00:00", model.OpEquals, true},
		{"equals with date-only value", "2024-01-15", model.OpEquals, true},
		{"equals with RFC3339 value", "2024-01-15T08:00:00Z", model.OpEquals, true},
		{"equals other day", "2024-01-16", model.OpEquals, false},
		{"notEquals same day", "2024-01-15T12:00:00", model.OpNotEquals, false},
		{"notEquals other day", "2024-01-14", model.OpNotEquals, true},
		{"greaterThan uses time of day", "2024-01-15T00:00:00", model.OpGreaterThan, true},
		{"lessThan", "2024-02-01", model.OpLessThan, true},
		{"greaterThanOrEqual exact instant", "2024-01-15T23:59:00", model.OpGreaterThanOrEqual, true},
		{"lessThanOrEqual exact instant", "2024-01-15T23:59:00", model.OpLessThanOrEqual, true},
		{"lessThan earlier", "2024-01-15T23:58:59", model.OpLessThan, false},
		{"contains on ISO rendering", "2024-01-15T23:59:00", model.OpContains, true},
		{"ISO without seconds", "2024-01-15T10:00", model.OpEquals, true},
		{"ISO without seconds ordering", "2024-01-15T10:00", model.OpGreaterThan, true},
		{"year first with slashes", "2024/01/15", model.OpEquals, true},
		{"month first with slashes", "01/15/2024", model.OpEquals, true},
		{"month first without padding", "1/15/2024", model.OpEquals, true},
		{"month first notEquals same day", "01/15/2024", model.OpNotEquals, false},
		{"short month name", "Jan 15, 2024", model.OpEquals, true},
		{"long month name", "January 15, 2024", model.OpEquals, true},
		{"long month name other day", "January 16, 2024", model.OpEquals, false},
		{"day first month name", "15 Jan 2024", model.OpEquals, true},
		{"space separated time", "2024-01-15 10:00:00", model.OpEquals, true},
		{"invalid date equals", "not a date", model.OpEquals, false},
		{"invalid date notEquals", "not a date", model.OpNotEquals, true},
		{"invalid date greaterThan", "not a date", model.OpGreaterThan, false},
		{"invalid date lessThan", "", model.OpLessThan, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, m.Compare(late, tt.raw, tt.op, model.FieldDate))
		})
	}
}

func TestCompare_DateUsesMatcherLocation(t *testing.T) {
	est := time.FixedZone("EST", -5*3600)
	m := NewMatcher(est)

	// 03:00 UTC on the 16th is still the evening of the 15th in EST.
	v := DateValue(time.Date(2024, 1, 16, 3, 0, 0, 0, time.UTC))

	assert.True(t, m.Compare(v, "2024-01-15", model.OpEquals, model.FieldDate))
	assert.False(t, m.Compare(v, "2024-01-16", model.OpEquals, model.FieldDate))
	assert.False(t, NewMatcher(time.UTC).Compare(v, "2024-01-15", model.OpEquals, model.FieldDate))
}

func TestCompare_InvalidTransactionDate(t *testing.T) {
	m := NewMatcher(time.UTC)
	v := FieldValue(model.Transaction{}, model.FieldDate)

	assert.False(t, m.Compare(v, "2024-01-15", model.OpEquals, model.FieldDate))
	assert.True(t, m.Compare(v, "2024-01-15", model.OpNotEquals, model.FieldDate))
	assert.False(t, m.Compare(v, "2024-01-15", model.OpGreaterThan, model.FieldDate))
	assert.True(t, m.Compare(v, "invalid", model.OpContains, model.FieldDate))
}

func TestCompare_MixedKinds(t *testing.T) {
	m := NewMatcher(time.UTC)

	// A number compared through a text field falls back to string semantics.
	assert.True(t, m.Compare(NumberValue(5), "5", model.OpEquals, model.FieldDescription))
	assert.True(t, m.Compare(NumberValue(5), "10", model.OpGreaterThan, model.FieldDescription))
}

func TestPackageCompareUsesLocalTime(t *testing.T) {
	v := DateValue(time.Date(2024, 1, 15, 23, 59, 0, 0, time.Local))
	assert.True(t, Compare(v, "2024-01-15T00:00:00", model.OpEquals, model.FieldDate))
}
