package engine

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/openshelf/circulation-go/circulation"
)

// PayFine applies a payment to a fine. Paying beyond the remaining amount
// fails with ErrOverPayment and leaves the fine unchanged; the payment date
// is recorded when the fine becomes fully paid. Fines remain payable
// independently of their loan, including after the loan was purged.
func (e *Engine) PayFine(ctx context.Context, cmd PayFineCommand) (circulation.Fine, error) {
	if err := cmd.validate(); err != nil {
		return circulation.Fine{}, err
	}

	var fine circulation.Fine

	err := e.execute(ctx, opPayFine, func(unit circulation.Unit) error {
		if _, staffErr := unit.Staff(cmd.StaffID); staffErr != nil {
			return staffErr
		}

		beforeFine, lookupErr := unit.Fine(cmd.FineID)
		if lookupErr != nil {
			return lookupErr
		}

		if beforeFine.Status == circulation.FinePaid {
			return circulation.ErrFineAlreadyPaid
		}

		var payErr error
		fine, payErr = beforeFine.ApplyPayment(cmd.Amount, cmd.Now)
		if payErr != nil {
			return payErr
		}

		if updateErr := unit.UpdateFine(fine); updateErr != nil {
			return updateErr
		}

		return stageAudit(unit, circulation.AuditUpdate, fine.ID, beforeFine, fine, cmd.StaffID, cmd.Now)
	})
	if err != nil {
		return circulation.Fine{}, err
	}

	return fine, nil
}

// AccrueFine records a manual fine against a member, optionally linked to a
// loan (damage charges, processing fees). Late-return and replacement fines
// are accrued by the engine itself on return and loss.
func (e *Engine) AccrueFine(ctx context.Context, cmd AccrueFineCommand) (circulation.Fine, error) {
	if err := cmd.validate(); err != nil {
		return circulation.Fine{}, err
	}

	var fine circulation.Fine

	err := e.execute(ctx, opAccrueFine, func(unit circulation.Unit) error {
		if _, staffErr := unit.Staff(cmd.StaffID); staffErr != nil {
			return staffErr
		}

		if _, memberErr := unit.Member(cmd.MemberID); memberErr != nil {
			return memberErr
		}

		if cmd.LoanID != nil {
			if _, loanErr := unit.Loan(*cmd.LoanID); loanErr != nil {
				return loanErr
			}
		}

		var accrueErr error
		fine, accrueErr = e.accrueInUnit(unit, cmd.MemberID, cmd.LoanID, cmd.Amount, cmd.Reason, cmd.StaffID, cmd.Now)

		return accrueErr
	})
	if err != nil {
		return circulation.Fine{}, err
	}

	return fine, nil
}

// accrueInUnit creates a fine in its derived state inside an already-open
// unit; shared by manual accrual, late returns and lost-copy replacement
// charges. A zero-amount fine is born Paid.
func (e *Engine) accrueInUnit(
	unit circulation.Unit,
	memberID circulation.MemberID,
	loanID *circulation.LoanID,
	amount decimal.Decimal,
	reason string,
	staffID circulation.StaffID,
	now time.Time,
) (circulation.Fine, error) {

	fine := circulation.Fine{
		MemberID:   memberID,
		LoanID:     loanID,
		Amount:     amount,
		PaidAmount: decimal.Zero,
		Reason:     reason,
		Status:     circulation.DeriveFineStatus(amount, decimal.Zero),
		IssuedAt:   now,
	}

	if validateErr := fine.Validate(); validateErr != nil {
		return circulation.Fine{}, validateErr
	}

	fineID, insertErr := unit.InsertFine(fine)
	if insertErr != nil {
		return circulation.Fine{}, insertErr
	}
	fine.ID = fineID

	if auditErr := stageAudit(unit, circulation.AuditInsert, fineID, nil, fine, staffID, now); auditErr != nil {
		return circulation.Fine{}, auditErr
	}

	return fine, nil
}
