package circulation

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Loan records one checkout of a copy by a member. ReturnDate is nil while
// the loan is open; it is set exactly once, on return.
type Loan struct {
	ID         LoanID
	CopyID     CopyID
	MemberID   MemberID
	StaffID    StaffID
	LoanDate   time.Time
	DueDate    time.Time
	ReturnDate *time.Time
	LateFee    decimal.Decimal
	Status     LoanStatus
}

// Validate checks the invariants that the engine enforces on insert.
func (l Loan) Validate() error {
	if l.CopyID == 0 || l.MemberID == 0 || l.StaffID == 0 {
		return errors.Join(ErrInvalidEntity, errors.New("loan must reference a copy, a member and a staff member"))
	}

	if !l.DueDate.After(l.LoanDate) {
		return ErrDueDateNotAfterLoan
	}

	if l.ReturnDate != nil && l.ReturnDate.Before(l.LoanDate) {
		return errors.Join(ErrInvalidEntity, errors.New("return date must not precede the loan date"))
	}

	if l.LateFee.IsNegative() {
		return errors.Join(ErrInvalidEntity, errors.New("late fee must not be negative"))
	}

	return nil
}

// DeriveStatus reports the effective status at the given instant without
// mutating anything: an Active loan past its due date reads as Overdue.
// The stored status only flips via the periodic sweep.
func (l Loan) DeriveStatus(now time.Time) LoanStatus {
	if l.Status == LoanActive && now.After(l.DueDate) {
		return LoanOverdue
	}

	return l.Status
}

// DaysLate returns the number of chargeable late days at the given instant.
// Any started day past the due date counts as a full day; a loan returned
// on or before its due date is zero days late.
func (l Loan) DaysLate(now time.Time) int {
	if !now.After(l.DueDate) {
		return 0
	}

	late := now.Sub(l.DueDate)
	days := int(late / (24 * time.Hour))
	if late%(24*time.Hour) > 0 {
		days++
	}

	return days
}

// AuditTable implements AuditImage.
func (l Loan) AuditTable() AuditTable { return AuditTableLoans }
