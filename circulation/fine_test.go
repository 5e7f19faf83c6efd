package circulation_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/openshelf/circulation-go/circulation"
)

func money(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func Test_DeriveFineStatus_CoversTheWholeLifecycle(t *testing.T) {
	assert.Equal(t, circulation.FinePending, circulation.DeriveFineStatus(money("5.00"), decimal.Zero))
	assert.Equal(t, circulation.FinePartiallyPaid, circulation.DeriveFineStatus(money("5.00"), money("2.50")))
	assert.Equal(t, circulation.FinePaid, circulation.DeriveFineStatus(money("5.00"), money("5.00")))
	assert.Equal(t, circulation.FinePaid, circulation.DeriveFineStatus(decimal.Zero, decimal.Zero),
		"a zero fine has nothing outstanding and is born settled")
}

func Test_Fine_ApplyPayment_AccumulatesPartialPayments(t *testing.T) {
	// setup
	now := fixedTime()
	fine := circulation.Fine{Amount: money("5.00"), PaidAmount: decimal.Zero, Status: circulation.FinePending}

	// act
	afterFirst, err := fine.ApplyPayment(money("2.00"), now)
	assert.NoError(t, err)
	afterSecond, err := afterFirst.ApplyPayment(money("1.00"), now)

	// assert
	assert.NoError(t, err)
	assert.True(t, afterSecond.PaidAmount.Equal(money("3.00")))
	assert.Equal(t, circulation.FinePartiallyPaid, afterSecond.Status)
	assert.Nil(t, afterSecond.PaymentDate, "payment date is only set on full payment")
	assert.True(t, afterSecond.Outstanding().Equal(money("2.00")))
}

func Test_Fine_ApplyPayment_SetsPaymentDateOnFullPayment(t *testing.T) {
	// setup
	now := fixedTime()
	fine := circulation.Fine{Amount: money("5.00"), PaidAmount: money("4.00"), Status: circulation.FinePartiallyPaid}

	// act
	paid, err := fine.ApplyPayment(money("1.00"), now)

	// assert
	assert.NoError(t, err)
	assert.Equal(t, circulation.FinePaid, paid.Status)
	if assert.NotNil(t, paid.PaymentDate) {
		assert.True(t, paid.PaymentDate.Equal(now))
	}
	assert.True(t, paid.Outstanding().IsZero())
}

func Test_Fine_ApplyPayment_RejectsOverpayment(t *testing.T) {
	// setup
	now := fixedTime()
	fine := circulation.Fine{Amount: money("5.00"), PaidAmount: money("4.50"), Status: circulation.FinePartiallyPaid}

	// act
	unchanged, err := fine.ApplyPayment(money("1.00"), now)

	// assert
	assert.ErrorIs(t, err, circulation.ErrOverPayment)
	assert.ErrorIs(t, err, circulation.ErrValidation)
	assert.True(t, unchanged.PaidAmount.Equal(fine.PaidAmount), "a rejected payment leaves the fine unchanged")
	assert.Equal(t, circulation.FinePartiallyPaid, unchanged.Status)
}

func Test_Fine_ApplyPayment_RejectsNonPositiveAmounts(t *testing.T) {
	// setup
	now := fixedTime()
	fine := circulation.Fine{Amount: money("5.00")}

	// act + assert
	_, err := fine.ApplyPayment(decimal.Zero, now)
	assert.ErrorIs(t, err, circulation.ErrNonPositiveAmount)

	_, err = fine.ApplyPayment(money("-1.00"), now)
	assert.ErrorIs(t, err, circulation.ErrNonPositiveAmount)
}

func Test_Fine_Validate_RejectsPaidAmountAboveTotal(t *testing.T) {
	// setup
	fine := circulation.Fine{MemberID: 1, Amount: money("5.00"), PaidAmount: money("6.00")}

	// act + assert
	assert.ErrorIs(t, fine.Validate(), circulation.ErrInvalidEntity)
}

func Test_Fine_Validate_RejectsNegativeAmount(t *testing.T) {
	// setup
	fine := circulation.Fine{MemberID: 1, Amount: money("-0.01")}

	// act + assert
	assert.ErrorIs(t, fine.Validate(), circulation.ErrNegativeAmount)
}
