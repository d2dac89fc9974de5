package rules

import (
	"math"
	"testing"
	"time"

	"github.com/Veraticus/spice-ledger/internal/model"
	"github.com/stretchr/testify/assert"
)

func TestFieldValue(t *testing.T) {
	date := time.Date(2024, 3, 9, 14, 30, 0, 0, time.UTC)
	txn := model.Transaction{
		Date:        date,
		Amount:      42.75,
		Description: "Morning coffee run",
		Category:    model.StringPtr("Dining"),
		Type:        model.TypeDebit,
		BankAccount: "Checking",
	}

	tests := []struct {
		field model.FieldName
		want  Value
	}{
		{model.FieldDate, DateValue(date)},
		{model.FieldAmount, NumberValue(42.75)},
		{model.FieldDescription, TextValue("Morning coffee run")},
		{model.FieldCategory, TextValue("Dining")},
		{model.FieldType, TextValue("debit")},
		{model.FieldBankAccount, TextValue("Checking")},
		{model.FieldName("merchant"), NoValue()},
		{model.FieldName(""), NoValue()},
	}

	for _, tt := range tests {
		t.Run(string(tt.field), func(t *testing.T) {
			assert.Equal(t, tt.want, FieldValue(txn, tt.field))
		})
	}
}

func TestFieldValue_AbsentFields(t *testing.T) {
	var txn model.Transaction

	assert.True(t, FieldValue(txn, model.FieldCategory).IsNone(), "absent category is missing")
	assert.Equal(t, TextValue(""), FieldValue(txn, model.FieldDescription))
	assert.Equal(t, TextValue(""), FieldValue(txn, model.FieldType))
	assert.Equal(t, TextValue(""), FieldValue(txn, model.FieldBankAccount))

	date := FieldValue(txn, model.FieldDate)
	assert.Equal(t, KindDate, date.Kind)
	assert.False(t, date.valid(), "zero date is an invalid date")
}

func TestFieldValue_EmptyCategoryIsText(t *testing.T) {
	txn := model.Transaction{Category: model.StringPtr("")}
	assert.Equal(t, TextValue(""), FieldValue(txn, model.FieldCategory))
}

func TestTypeOf(t *testing.T) {
	assert.Equal(t, FieldTypeDate, TypeOf(model.FieldDate))
	assert.Equal(t, FieldTypeNumber, TypeOf(model.FieldAmount))
	for _, f := range []model.FieldName{
		model.FieldDescription, model.FieldCategory, model.FieldType, model.FieldBankAccount, "unknown",
	} {
		assert.Equal(t, FieldTypeText, TypeOf(f), f)
	}
}

func TestValue_String(t *testing.T) {
	est := time.FixedZone("EST", -5*3600)

	tests := []struct {
		name string
		v    Value
		want string
	}{
		{"date renders as UTC ISO with millis", DateValue(time.Date(2024, 1, 15, 23, 59, 0, 0, est)), "2024-01-16T04:59:00.000Z"},
		{"invalid date", DateValue(time.Time{}), "Invalid Date"},
		{"integer number", NumberValue(100), "100"},
		{"fractional number", NumberValue(100.01), "100.01"},
		{"negative number", NumberValue(-3.5), "-3.5"},
		{"NaN", NumberValue(math.NaN()), "NaN"},
		{"text", TextValue("Hello"), "Hello"},
		{"none", NoValue(), ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.v.String())
		})
	}
}
