package storage

import (
	"context"
	"testing"
	"time"

	"github.com/Veraticus/spice-ledger/internal/common"
	"github.com/Veraticus/spice-ledger/internal/model"
	"github.com/Veraticus/spice-ledger/internal/service"
	"github.com/stretchr/testify/assert"
)

func TestValidateContext(t *testing.T) {
	canceled, cancel := context.WithCancel(context.Background())
	cancel()

	assert.NoError(t, validateContext(context.Background()))
	assert.NoError(t, validateContext(canceled), "canceled context still valid")
	//nolint:staticcheck // testing nil context handling
	assert.ErrorIs(t, validateContext(nil), ErrNilContext)
}

func TestValidateString(t *testing.T) {
	tests := []struct {
		name    string
		str     string
		wantErr bool
	}{
		{"valid string", "test", false},
		{"empty string", "", true},
		{"whitespace only", "  \t\n", true},
		{"string with spaces", " test ", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateString(tt.str, "param")
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrEmptyString)
				assert.Contains(t, err.Error(), "param")
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestValidateTransaction(t *testing.T) {
	valid := model.Transaction{ID: "1", Date: time.Now(), Type: model.TypeCredit}

	tests := []struct {
		txn     *model.Transaction
		name    string
		wantErr error
	}{
		{name: "valid", txn: &valid},
		{name: "nil", txn: nil, wantErr: ErrNilParameter},
		{name: "missing id", txn: &model.Transaction{Date: time.Now(), Type: model.TypeDebit}, wantErr: ErrInvalidTransaction},
		{name: "missing date", txn: &model.Transaction{ID: "1", Type: model.TypeDebit}, wantErr: ErrInvalidTransaction},
		{name: "missing type", txn: &model.Transaction{ID: "1", Date: time.Now()}, wantErr: ErrInvalidTransaction},
		{name: "empty description allowed", txn: &model.Transaction{ID: "1", Date: time.Now(), Type: model.TypeDebit}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateTransaction(tt.txn)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestValidateFilter(t *testing.T) {
	early := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	late := early.AddDate(0, 1, 0)

	assert.NoError(t, validateFilter(service.TransactionFilter{}))
	assert.NoError(t, validateFilter(service.TransactionFilter{StartDate: &early, EndDate: &late}))
	assert.NoError(t, validateFilter(service.TransactionFilter{StartDate: &early, EndDate: &early}))
	assert.ErrorIs(t, validateFilter(service.TransactionFilter{StartDate: &late, EndDate: &early}), ErrInvalidDateRange)
	assert.ErrorIs(t, validateFilter(service.TransactionFilter{Offset: -1}), common.ErrInvalidInput)
}

func TestValidateRule(t *testing.T) {
	assert.ErrorIs(t, validateRule(nil), ErrNilParameter)
	assert.ErrorIs(t, validateRule(&model.TransactionRule{}), common.ErrInvalidRule)
	assert.NoError(t, validateRule(&model.TransactionRule{Name: "ok"}))
}
