package rules

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/Veraticus/spice-ledger/internal/model"
)

// FieldType is the semantic type tag of a filter field.
type FieldType int

// Field type tags.
const (
	FieldTypeText FieldType = iota
	FieldTypeDate
	FieldTypeNumber
)

func (t FieldType) String() string {
	switch t {
	case FieldTypeDate:
		return "date"
	case FieldTypeNumber:
		return "number"
	default:
		return "text"
	}
}

// TypeOf returns the fixed type tag of a field. Unknown fields are text.
func TypeOf(field model.FieldName) FieldType {
	switch field {
	case model.FieldDate:
		return FieldTypeDate
	case model.FieldAmount:
		return FieldTypeNumber
	default:
		return FieldTypeText
	}
}

// Kind discriminates the variants of Value.
type Kind int

// Value kinds.
const (
	KindNone Kind = iota
	KindDate
	KindNumber
	KindText
)

// Value is a typed operand: a transaction field or a converted filter value.
// A KindDate value with a zero Time is an invalid date.
type Value struct {
	Time   time.Time
	Text   string
	Number float64
	Kind   Kind
}

// NoValue is the result of reading an absent or unknown field.
func NoValue() Value { return Value{} }

// DateValue wraps a timestamp.
func DateValue(t time.Time) Value { return Value{Kind: KindDate, Time: t} }

// NumberValue wraps a number.
func NumberValue(f float64) Value { return Value{Kind: KindNumber, Number: f} }

// TextValue wraps a string.
func TextValue(s string) Value { return Value{Kind: KindText, Text: s} }

// IsNone reports whether v carries no value.
func (v Value) IsNone() bool { return v.Kind == KindNone }

// valid is false for invalid dates and NaN.
func (v Value) valid() bool {
	switch v.Kind {
	case KindDate:
		return !v.Time.IsZero()
	case KindNumber:
		return !math.IsNaN(v.Number)
	}
	return true
}

const isoLayout = "2006-01-02T15:04:05.000Z"

// String renders the value the way text comparisons see it before lower-casing.
func (v Value) String() string {
	switch v.Kind {
	case KindDate:
		if v.Time.IsZero() {
			return "Invalid Date"
		}
		return v.Time.UTC().Format(isoLayout)
	case KindNumber:
		return strconv.FormatFloat(v.Number, 'f', -1, 64)
	case KindText:
		return v.Text
	}
	return ""
}

func (v Value) normalized() string {
	return strings.ToLower(v.String())
}

// FieldValue reads field from txn.
//
// Text fields read as empty strings when blank, except category, which is
// optional and reads as NoValue when the transaction has none. Unknown field
// names also read as NoValue.
func FieldValue(txn model.Transaction, field model.FieldName) Value {
	switch field {
	case model.FieldDate:
		return DateValue(txn.Date)
	case model.FieldAmount:
		return NumberValue(txn.Amount)
	case model.FieldDescription:
		return TextValue(txn.Description)
	case model.FieldCategory:
		if txn.Category == nil {
			return NoValue()
		}
		return TextValue(*txn.Category)
	case model.FieldType:
		return TextValue(string(txn.Type))
	case model.FieldBankAccount:
		return TextValue(txn.BankAccount)
	}
	return NoValue()
}
