package engine

import (
	"context"
	"time"

	"github.com/openshelf/circulation-go/circulation"
)

// Read-side views. Queries run outside atomic units: they observe committed
// state only and never mutate, so they bypass the retry machinery.

// ActiveLoans lists open loans (Active and Overdue) matching the filter,
// evaluated against `now`.
func (e *Engine) ActiveLoans(
	ctx context.Context,
	now time.Time,
	filter circulation.ActiveLoanFilter,
) ([]circulation.ActiveLoanRow, error) {

	if err := requireTime(now); err != nil {
		return nil, err
	}

	start := time.Now()
	spanCtx, span := e.startSpan(ctx, opActiveLoans)

	rows, err := e.store.ActiveLoans(spanCtx, now, filter)

	e.recordOperationOutcome(spanCtx, span, opActiveLoans, time.Since(start), err)

	return rows, err
}

// AvailableCopies lists copies on the shelf matching the filter.
func (e *Engine) AvailableCopies(
	ctx context.Context,
	filter circulation.AvailableCopyFilter,
) ([]circulation.AvailableCopyRow, error) {

	start := time.Now()
	spanCtx, span := e.startSpan(ctx, opAvailableCopies)

	rows, err := e.store.AvailableCopies(spanCtx, filter)

	e.recordOperationOutcome(spanCtx, span, opAvailableCopies, time.Since(start), err)

	return rows, err
}
