package circulation

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Fine is a monetary penalty owed by a member, optionally linked to the
// loan that caused it. The link is severed (set to nil) if the loan is
// later purged; the fine itself survives.
type Fine struct {
	ID          FineID
	MemberID    MemberID
	LoanID      *LoanID
	Amount      decimal.Decimal
	PaidAmount  decimal.Decimal
	Reason      string
	Status      FineStatus
	IssuedAt    time.Time
	PaymentDate *time.Time
}

// Validate checks the invariants that the engine enforces on insert.
func (f Fine) Validate() error {
	if f.MemberID == 0 {
		return errors.Join(ErrInvalidEntity, errors.New("fine must reference a member"))
	}

	if f.Amount.IsNegative() {
		return ErrNegativeAmount
	}

	if f.PaidAmount.IsNegative() || f.PaidAmount.GreaterThan(f.Amount) {
		return errors.Join(ErrInvalidEntity, errors.New("paid amount must be between zero and the fine amount"))
	}

	return nil
}

// Outstanding returns the unpaid remainder of the fine.
func (f Fine) Outstanding() decimal.Decimal {
	return f.Amount.Sub(f.PaidAmount)
}

// DeriveFineStatus derives the lifecycle state from the paid/total ratio.
// A zero-amount fine has nothing outstanding and is settled from the start.
func DeriveFineStatus(amount, paid decimal.Decimal) FineStatus {
	switch {
	case paid.GreaterThanOrEqual(amount):
		return FinePaid
	case paid.IsZero():
		return FinePending
	default:
		return FinePartiallyPaid
	}
}

// ApplyPayment returns a copy of the fine with the payment applied and the
// status re-derived. Paying beyond the remaining amount fails with
// ErrOverPayment and leaves the fine unchanged; the payment date is set
// when the fine becomes fully paid.
func (f Fine) ApplyPayment(amount decimal.Decimal, now time.Time) (Fine, error) {
	if !amount.IsPositive() {
		return f, ErrNonPositiveAmount
	}

	if f.PaidAmount.Add(amount).GreaterThan(f.Amount) {
		return f, ErrOverPayment
	}

	paid := f.PaidAmount.Add(amount)

	updated := f
	updated.PaidAmount = paid
	updated.Status = DeriveFineStatus(f.Amount, paid)

	if updated.Status == FinePaid && f.PaymentDate == nil {
		paymentDate := now
		updated.PaymentDate = &paymentDate
	}

	return updated, nil
}

// AuditTable implements AuditImage.
func (f Fine) AuditTable() AuditTable { return AuditTableFines }
