package engine

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/openshelf/circulation-go/circulation"
)

// Operation names, used for logging, metrics and span naming.
const (
	opCheckout             = "checkout"
	opReturnCopy           = "return_copy"
	opReportLost           = "report_lost"
	opReserve              = "reserve"
	opCancelReservation    = "cancel_reservation"
	opPayFine              = "pay_fine"
	opAccrueFine           = "accrue_fine"
	opSweepOverdue         = "sweep_overdue"
	opPurgeLoan            = "purge_loan"
	opRegisterBranch       = "register_branch"
	opRegisterStaff        = "register_staff"
	opRegisterMember       = "register_member"
	opRegisterAuthor       = "register_author"
	opRegisterPublisher    = "register_publisher"
	opAddBook              = "add_book"
	opAddCopy              = "add_copy"
	opMarkUnderMaintenance = "mark_under_maintenance"
	opReturnToShelf        = "return_to_shelf"
	opSetCopyCondition     = "set_copy_condition"
	opActiveLoans          = "active_loans"
	opAvailableCopies      = "available_copies"
)

func requireIDs(ids ...int64) error {
	for _, id := range ids {
		if id <= 0 {
			return errors.Join(circulation.ErrInvalidCommand, errors.New("identifier must be positive"))
		}
	}

	return nil
}

func requireTime(now time.Time) error {
	if now.IsZero() {
		return errors.Join(circulation.ErrInvalidCommand, errors.New("operation time must be set"))
	}

	return nil
}

// CheckoutCommand represents the intent to check a copy out to a member.
type CheckoutCommand struct {
	CopyID   circulation.CopyID
	MemberID circulation.MemberID
	StaffID  circulation.StaffID
	Now      time.Time
}

// BuildCheckoutCommand creates a new CheckoutCommand with the provided parameters.
func BuildCheckoutCommand(
	copyID circulation.CopyID,
	memberID circulation.MemberID,
	staffID circulation.StaffID,
	now time.Time,
) CheckoutCommand {

	return CheckoutCommand{CopyID: copyID, MemberID: memberID, StaffID: staffID, Now: now}
}

func (c CheckoutCommand) validate() error {
	if err := requireIDs(c.CopyID, c.MemberID, c.StaffID); err != nil {
		return err
	}

	return requireTime(c.Now)
}

// ReturnCommand represents the intent to return an open loan.
type ReturnCommand struct {
	LoanID  circulation.LoanID
	StaffID circulation.StaffID
	Now     time.Time
}

// BuildReturnCommand creates a new ReturnCommand with the provided parameters.
func BuildReturnCommand(loanID circulation.LoanID, staffID circulation.StaffID, now time.Time) ReturnCommand {
	return ReturnCommand{LoanID: loanID, StaffID: staffID, Now: now}
}

func (c ReturnCommand) validate() error {
	if err := requireIDs(c.LoanID, c.StaffID); err != nil {
		return err
	}

	return requireTime(c.Now)
}

// ReportLostCommand represents the intent to mark a copy as lost.
type ReportLostCommand struct {
	CopyID  circulation.CopyID
	StaffID circulation.StaffID
	Now     time.Time
}

// BuildReportLostCommand creates a new ReportLostCommand with the provided parameters.
func BuildReportLostCommand(copyID circulation.CopyID, staffID circulation.StaffID, now time.Time) ReportLostCommand {
	return ReportLostCommand{CopyID: copyID, StaffID: staffID, Now: now}
}

func (c ReportLostCommand) validate() error {
	if err := requireIDs(c.CopyID, c.StaffID); err != nil {
		return err
	}

	return requireTime(c.Now)
}

// ReserveCommand represents the intent to place a hold on a book. Priority
// is optional; when nil the policy's default tier applies. Lower tiers are
// served first.
type ReserveCommand struct {
	BookID   circulation.BookID
	MemberID circulation.MemberID
	Priority *int
	Now      time.Time
}

// BuildReserveCommand creates a new ReserveCommand with the default priority tier.
func BuildReserveCommand(bookID circulation.BookID, memberID circulation.MemberID, now time.Time) ReserveCommand {
	return ReserveCommand{BookID: bookID, MemberID: memberID, Now: now}
}

// BuildReserveCommandWithPriority creates a new ReserveCommand with an explicit priority tier.
func BuildReserveCommandWithPriority(
	bookID circulation.BookID,
	memberID circulation.MemberID,
	priority int,
	now time.Time,
) ReserveCommand {

	return ReserveCommand{BookID: bookID, MemberID: memberID, Priority: &priority, Now: now}
}

func (c ReserveCommand) validate() error {
	if err := requireIDs(c.BookID, c.MemberID); err != nil {
		return err
	}

	if c.Priority != nil && *c.Priority < 0 {
		return errors.Join(circulation.ErrInvalidCommand, errors.New("priority tier must not be negative"))
	}

	return requireTime(c.Now)
}

// CancelReservationCommand represents the intent to cancel a pending reservation.
type CancelReservationCommand struct {
	ReservationID circulation.ReservationID
	StaffID       circulation.StaffID
	Now           time.Time
}

// BuildCancelReservationCommand creates a new CancelReservationCommand with the provided parameters.
func BuildCancelReservationCommand(
	reservationID circulation.ReservationID,
	staffID circulation.StaffID,
	now time.Time,
) CancelReservationCommand {

	return CancelReservationCommand{ReservationID: reservationID, StaffID: staffID, Now: now}
}

func (c CancelReservationCommand) validate() error {
	if err := requireIDs(c.ReservationID, c.StaffID); err != nil {
		return err
	}

	return requireTime(c.Now)
}

// PayFineCommand represents the intent to pay part or all of a fine.
type PayFineCommand struct {
	FineID  circulation.FineID
	Amount  decimal.Decimal
	StaffID circulation.StaffID
	Now     time.Time
}

// BuildPayFineCommand creates a new PayFineCommand with the provided parameters.
func BuildPayFineCommand(
	fineID circulation.FineID,
	amount decimal.Decimal,
	staffID circulation.StaffID,
	now time.Time,
) PayFineCommand {

	return PayFineCommand{FineID: fineID, Amount: amount, StaffID: staffID, Now: now}
}

func (c PayFineCommand) validate() error {
	if err := requireIDs(c.FineID, c.StaffID); err != nil {
		return err
	}

	if !c.Amount.IsPositive() {
		return circulation.ErrNonPositiveAmount
	}

	return requireTime(c.Now)
}

// AccrueFineCommand represents the intent to record a manual fine against a
// member, optionally linked to a loan.
type AccrueFineCommand struct {
	MemberID circulation.MemberID
	LoanID   *circulation.LoanID
	Amount   decimal.Decimal
	Reason   string
	StaffID  circulation.StaffID
	Now      time.Time
}

// BuildAccrueFineCommand creates a new AccrueFineCommand with the provided parameters.
func BuildAccrueFineCommand(
	memberID circulation.MemberID,
	loanID *circulation.LoanID,
	amount decimal.Decimal,
	reason string,
	staffID circulation.StaffID,
	now time.Time,
) AccrueFineCommand {

	return AccrueFineCommand{
		MemberID: memberID,
		LoanID:   loanID,
		Amount:   amount,
		Reason:   reason,
		StaffID:  staffID,
		Now:      now,
	}
}

func (c AccrueFineCommand) validate() error {
	if err := requireIDs(c.MemberID, c.StaffID); err != nil {
		return err
	}

	if c.LoanID != nil {
		if err := requireIDs(*c.LoanID); err != nil {
			return err
		}
	}

	if c.Amount.IsNegative() {
		return circulation.ErrNegativeAmount
	}

	return requireTime(c.Now)
}

// SweepOverdueCommand represents the intent to flip past-due Active loans
// to Overdue. StaffID may be zero for scheduler-driven sweeps.
type SweepOverdueCommand struct {
	StaffID circulation.StaffID
	Now     time.Time
}

// BuildSweepOverdueCommand creates a new SweepOverdueCommand with the provided parameters.
func BuildSweepOverdueCommand(staffID circulation.StaffID, now time.Time) SweepOverdueCommand {
	return SweepOverdueCommand{StaffID: staffID, Now: now}
}

func (c SweepOverdueCommand) validate() error {
	if c.StaffID < 0 {
		return errors.Join(circulation.ErrInvalidCommand, errors.New("staff identifier must not be negative"))
	}

	return requireTime(c.Now)
}

// PurgeLoanCommand represents the intent to purge a returned loan. Fines
// linked to the loan survive with their link severed.
type PurgeLoanCommand struct {
	LoanID  circulation.LoanID
	StaffID circulation.StaffID
	Now     time.Time
}

// BuildPurgeLoanCommand creates a new PurgeLoanCommand with the provided parameters.
func BuildPurgeLoanCommand(loanID circulation.LoanID, staffID circulation.StaffID, now time.Time) PurgeLoanCommand {
	return PurgeLoanCommand{LoanID: loanID, StaffID: staffID, Now: now}
}

func (c PurgeLoanCommand) validate() error {
	if err := requireIDs(c.LoanID, c.StaffID); err != nil {
		return err
	}

	return requireTime(c.Now)
}
