package engine

import (
	"context"
	"time"

	"github.com/openshelf/circulation-go/circulation"
)

// ReportLostResult reports what marking a copy lost settled: the copy, the
// loan that was closed (nil when the copy was on the shelf), and the
// replacement-cost fine charged to its holder.
type ReportLostResult struct {
	Copy            circulation.BookCopy
	ClosedLoan      *circulation.Loan
	ReplacementFine *circulation.Fine
}

// ReportLost marks a copy as Lost and, when an Active loan holds it, closes
// that loan and charges the holder the policy's replacement cost. The copy
// does not return to circulation; a later ReturnCopy of the closed loan is
// rejected as AlreadyReturned.
func (e *Engine) ReportLost(ctx context.Context, cmd ReportLostCommand) (ReportLostResult, error) {
	if err := cmd.validate(); err != nil {
		return ReportLostResult{}, err
	}

	var result ReportLostResult

	err := e.execute(ctx, opReportLost, func(unit circulation.Unit) error {
		var execErr error
		result, execErr = e.reportLostInUnit(unit, cmd.CopyID, cmd.StaffID, cmd.Now)

		return execErr
	})
	if err != nil {
		return ReportLostResult{}, err
	}

	return result, nil
}

func (e *Engine) reportLostInUnit(
	unit circulation.Unit,
	copyID circulation.CopyID,
	staffID circulation.StaffID,
	now time.Time,
) (ReportLostResult, error) {

	if _, staffErr := unit.Staff(staffID); staffErr != nil {
		return ReportLostResult{}, staffErr
	}

	bookCopy, copyErr := unit.Copy(copyID)
	if copyErr != nil {
		return ReportLostResult{}, copyErr
	}

	if bookCopy.Status == circulation.CopyLost {
		return ReportLostResult{}, circulation.ErrCopyAlreadyLost
	}

	beforeCopy := bookCopy
	bookCopy.Status = circulation.CopyLost

	if updateErr := unit.UpdateCopy(bookCopy); updateErr != nil {
		return ReportLostResult{}, updateErr
	}

	if auditErr := stageAudit(unit, circulation.AuditUpdate, bookCopy.ID, beforeCopy, bookCopy, staffID, now); auditErr != nil {
		return ReportLostResult{}, auditErr
	}

	result := ReportLostResult{Copy: bookCopy}

	activeLoan, hasLoan, loanErr := unit.ActiveLoanByCopy(copyID)
	if loanErr != nil {
		return ReportLostResult{}, loanErr
	}

	if !hasLoan {
		return result, nil
	}

	beforeLoan := activeLoan
	returnDate := now
	activeLoan.ReturnDate = &returnDate
	activeLoan.Status = circulation.LoanReturned

	if updateErr := unit.UpdateLoan(activeLoan); updateErr != nil {
		return ReportLostResult{}, updateErr
	}

	if auditErr := stageAudit(unit, circulation.AuditUpdate, activeLoan.ID, beforeLoan, activeLoan, staffID, now); auditErr != nil {
		return ReportLostResult{}, auditErr
	}

	fine, fineErr := e.accrueInUnit(
		unit, activeLoan.MemberID, &activeLoan.ID, e.policy.ReplacementCost, "lost copy replacement", staffID, now)
	if fineErr != nil {
		return ReportLostResult{}, fineErr
	}

	result.ClosedLoan = &activeLoan
	result.ReplacementFine = &fine

	return result, nil
}
