package engine

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/openshelf/circulation-go/circulation"
)

// Checkout issues a new loan for an available copy. It fails with
// ErrCopyUnavailable unless the copy is Available, and with one of the
// Ineligible errors if the member is inactive, over the loan limit, or
// carries too high an outstanding fine balance. The loan insert and the
// copy status flip commit atomically.
func (e *Engine) Checkout(ctx context.Context, cmd CheckoutCommand) (circulation.Loan, error) {
	if err := cmd.validate(); err != nil {
		return circulation.Loan{}, err
	}

	var loan circulation.Loan

	err := e.execute(ctx, opCheckout, func(unit circulation.Unit) error {
		var execErr error
		loan, execErr = e.checkoutInUnit(unit, cmd.CopyID, cmd.MemberID, cmd.StaffID, cmd.Now)

		return execErr
	})
	if err != nil {
		return circulation.Loan{}, err
	}

	return loan, nil
}

// checkoutInUnit performs the checkout inside an already-open unit. It is
// shared with reservation matching, which issues the fulfillment loan in
// the same unit that released the copy.
func (e *Engine) checkoutInUnit(
	unit circulation.Unit,
	copyID circulation.CopyID,
	memberID circulation.MemberID,
	staffID circulation.StaffID,
	now time.Time,
) (circulation.Loan, error) {

	if _, staffErr := unit.Staff(staffID); staffErr != nil {
		return circulation.Loan{}, staffErr
	}

	bookCopy, copyErr := unit.Copy(copyID)
	if copyErr != nil {
		return circulation.Loan{}, copyErr
	}

	if bookCopy.Status != circulation.CopyAvailable {
		return circulation.Loan{}, circulation.ErrCopyUnavailable
	}

	member, memberErr := unit.Member(memberID)
	if memberErr != nil {
		return circulation.Loan{}, memberErr
	}

	if eligErr := e.checkEligibility(unit, member, now, true); eligErr != nil {
		return circulation.Loan{}, eligErr
	}

	dueDate, dueErr := e.policy.DueDate(member.Membership, now)
	if dueErr != nil {
		return circulation.Loan{}, dueErr
	}

	loan := circulation.Loan{
		CopyID:   copyID,
		MemberID: memberID,
		StaffID:  staffID,
		LoanDate: now,
		DueDate:  dueDate,
		LateFee:  decimal.Zero,
		Status:   circulation.LoanActive,
	}

	if validateErr := loan.Validate(); validateErr != nil {
		return circulation.Loan{}, validateErr
	}

	loanID, insertErr := unit.InsertLoan(loan)
	if insertErr != nil {
		return circulation.Loan{}, insertErr
	}
	loan.ID = loanID

	if auditErr := stageAudit(unit, circulation.AuditInsert, loanID, nil, loan, staffID, now); auditErr != nil {
		return circulation.Loan{}, auditErr
	}

	beforeCopy := bookCopy
	bookCopy.Status = circulation.CopyCheckedOut

	if updateErr := unit.UpdateCopy(bookCopy); updateErr != nil {
		return circulation.Loan{}, updateErr
	}

	if auditErr := stageAudit(unit, circulation.AuditUpdate, bookCopy.ID, beforeCopy, bookCopy, staffID, now); auditErr != nil {
		return circulation.Loan{}, auditErr
	}

	return loan, nil
}
