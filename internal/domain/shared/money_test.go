package shared

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToMinorUnits(t *testing.T) {
	tests := []struct {
		name    string
		amount  string
		want    int64
		wantErr bool
	}{
		{name: "whole amount", amount: "100", want: 10000},
		{name: "two decimals", amount: "12.50", want: 1250},
		{name: "smallest unit", amount: "0.01", want: 1},
		{name: "zero", amount: "0", wantErr: true},
		{name: "negative", amount: "-5", wantErr: true},
		{name: "too precise", amount: "1.005", wantErr: true},
		{name: "overflow", amount: "92233720368547758.08", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ToMinorUnits(decimal.RequireFromString(tt.amount))
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidMoneyAmount)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFromMinorUnits(t *testing.T) {
	assert.Equal(t, "12.5", FromMinorUnits(1250).String())
	assert.Equal(t, "0.01", FromMinorUnits(1).String())
}

func TestValidateClientReference(t *testing.T) {
	assert.NoError(t, ValidateClientReference("ref-A"))
	assert.ErrorIs(t, ValidateClientReference("txn_abc"), ErrReservedReference)
	assert.ErrorIs(t, ValidateClientReference("gw_123"), ErrReservedReference)

	long := make([]byte, MaxReferenceLength+1)
	for i := range long {
		long[i] = 'a'
	}
	assert.ErrorIs(t, ValidateClientReference(string(long)), ErrReferenceTooLong)
}

func TestNewReference(t *testing.T) {
	a, b := NewReference(), NewReference()
	assert.NotEqual(t, a, b)
	assert.Len(t, a, len(GeneratedReferencePrefix)+32)
	assert.ErrorIs(t, ValidateClientReference(a), ErrReservedReference)
}

func TestTransactionKind(t *testing.T) {
	assert.True(t, TransactionKindLoanRepayment.IsValid())
	assert.False(t, TransactionKind("refund").IsValid())
	assert.True(t, TransactionKindWithdrawal.IsDebit())
	assert.True(t, TransactionKindLoanRepayment.IsDebit())
	assert.False(t, TransactionKindSave.IsDebit())
}
