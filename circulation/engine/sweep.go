package engine

import (
	"context"

	"github.com/openshelf/circulation-go/circulation"
)

// SweepOverdue flips the stored status of past-due Active loans to Overdue
// and returns how many it flipped. It is idempotent and safe to run
// concurrently with checkouts and returns: it only touches loans whose due
// date has passed and whose stored status is still Active, so a racing
// return wins and the sweep skips that loan on retry.
func (e *Engine) SweepOverdue(ctx context.Context, cmd SweepOverdueCommand) (int, error) {
	if err := cmd.validate(); err != nil {
		return 0, err
	}

	var flipped int

	err := e.execute(ctx, opSweepOverdue, func(unit circulation.Unit) error {
		flipped = 0

		dueLoans, lookupErr := unit.OpenLoansDueBefore(cmd.Now)
		if lookupErr != nil {
			return lookupErr
		}

		for _, loan := range dueLoans {
			if loan.Status != circulation.LoanActive {
				continue
			}

			beforeLoan := loan
			loan.Status = circulation.LoanOverdue

			if updateErr := unit.UpdateLoan(loan); updateErr != nil {
				return updateErr
			}

			auditErr := stageAudit(unit, circulation.AuditUpdate, loan.ID, beforeLoan, loan, cmd.StaffID, cmd.Now)
			if auditErr != nil {
				return auditErr
			}

			flipped++
		}

		return nil
	})
	if err != nil {
		return 0, err
	}

	return flipped, nil
}

// PurgeLoan deletes a Returned loan from the ledger. Fines that reference
// the loan survive with their link severed, staying payable on their own.
func (e *Engine) PurgeLoan(ctx context.Context, cmd PurgeLoanCommand) error {
	if err := cmd.validate(); err != nil {
		return err
	}

	return e.execute(ctx, opPurgeLoan, func(unit circulation.Unit) error {
		if _, staffErr := unit.Staff(cmd.StaffID); staffErr != nil {
			return staffErr
		}

		loan, lookupErr := unit.Loan(cmd.LoanID)
		if lookupErr != nil {
			return lookupErr
		}

		if loan.Status != circulation.LoanReturned {
			return circulation.ErrLoanNotReturned
		}

		linkedFines, finesErr := unit.FinesByLoan(cmd.LoanID)
		if finesErr != nil {
			return finesErr
		}

		for _, fine := range linkedFines {
			beforeFine := fine
			fine.LoanID = nil

			if updateErr := unit.UpdateFine(fine); updateErr != nil {
				return updateErr
			}

			auditErr := stageAudit(unit, circulation.AuditUpdate, fine.ID, beforeFine, fine, cmd.StaffID, cmd.Now)
			if auditErr != nil {
				return auditErr
			}
		}

		if deleteErr := unit.DeleteLoan(cmd.LoanID); deleteErr != nil {
			return deleteErr
		}

		return stageAudit(unit, circulation.AuditDelete, loan.ID, loan, nil, cmd.StaffID, cmd.Now)
	})
}
