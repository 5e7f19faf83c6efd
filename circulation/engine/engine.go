package engine

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/openshelf/circulation-go/circulation"
)

const (
	logMsgOperationCompleted = "circulation operation completed: "
	logMsgOperationFailed    = "circulation operation failed: "
	logAttrError             = "error"
	logAttrDurationMS        = "duration_ms"

	metricOperationDuration = "circulation_operation_duration"
	metricOperationErrors   = "circulation_operation_errors"

	spanPrefix        = "circulation."
	spanAttrOperation = "operation"
	statusOK          = "ok"
	statusError       = "error"
)

// Engine composes the loan ledger, reservation queue, fine ledger, catalog
// store and audit recorder into atomic operations over a circulation.Store.
type Engine struct {
	store            circulation.Store
	policy           circulation.Policy
	logger           circulation.Logger
	contextualLogger circulation.ContextualLogger
	metrics          circulation.MetricsCollector
	tracing          circulation.TracingCollector
	retryOptions     []circulation.RetryOption
}

// Option defines a functional option for configuring the Engine.
type Option func(*Engine) error

// WithPolicy replaces the default lending policy.
func WithPolicy(policy circulation.Policy) Option {
	return func(e *Engine) error {
		if err := policy.Validate(); err != nil {
			return err
		}

		e.policy = policy

		return nil
	}
}

// WithLogger sets the logger for the Engine.
//
// Debug level: per-unit commit/retry details (development use)
// Info level: operation outcomes with durations (production-safe)
// Warn level: non-critical issues like rollback failures
// Error level: failures that cause operation failures.
func WithLogger(logger circulation.Logger) Option {
	return func(e *Engine) error {
		e.logger = logger
		return nil
	}
}

// WithContextualLogger sets the context-aware logger for the Engine,
// enabling automatic trace/span correlation when tracing is configured.
func WithContextualLogger(logger circulation.ContextualLogger) Option {
	return func(e *Engine) error {
		e.contextualLogger = logger
		return nil
	}
}

// WithMetrics sets the metrics collector for the Engine. The collector
// receives operation durations, error counters and retry metrics.
func WithMetrics(collector circulation.MetricsCollector) Option {
	return func(e *Engine) error {
		e.metrics = collector
		return nil
	}
}

// WithTracing sets the tracing collector for the Engine. Every operation
// runs inside its own span.
func WithTracing(collector circulation.TracingCollector) Option {
	return func(e *Engine) error {
		e.tracing = collector
		return nil
	}
}

// WithRetryOptions sets a custom retry configuration for unit-commit
// conflicts, see circulation.RetryUnitConflicts.
func WithRetryOptions(options ...circulation.RetryOption) Option {
	return func(e *Engine) error {
		e.retryOptions = options
		return nil
	}
}

// New creates an Engine on top of the given store with optional
// configuration; the default policy applies unless WithPolicy is supplied.
func New(store circulation.Store, options ...Option) (*Engine, error) {
	if store == nil {
		return nil, circulation.ErrNilStore
	}

	e := &Engine{
		store:  store,
		policy: circulation.DefaultPolicy(),
	}

	for _, option := range options {
		if err := option(e); err != nil {
			return nil, err
		}
	}

	return e, nil
}

// Policy returns the policy the engine enforces.
func (e *Engine) Policy() circulation.Policy {
	return e.policy
}

// execute runs fn as one atomic unit, retrying unit-commit conflicts with
// fresh reads. The unit is rolled back unless fn succeeds and the commit
// lands.
func (e *Engine) execute(ctx context.Context, operation string, fn func(unit circulation.Unit) error) error {
	start := time.Now()
	spanCtx, span := e.startSpan(ctx, operation)

	retryOptions := e.retryOptions
	if e.metrics != nil {
		retryOptions = append(retryOptions, circulation.WithRetryMetrics(e.metrics, operation))
	}

	err := circulation.RetryUnitConflicts(spanCtx, func(attemptCtx context.Context) error {
		unit, beginErr := e.store.BeginUnit(attemptCtx)
		if beginErr != nil {
			return beginErr
		}

		if fnErr := fn(unit); fnErr != nil {
			e.rollback(unit)
			return fnErr
		}

		if commitErr := unit.Commit(attemptCtx); commitErr != nil {
			e.rollback(unit)
			return commitErr
		}

		return nil
	}, retryOptions...)

	duration := time.Since(start)
	e.recordOperationOutcome(spanCtx, span, operation, duration, err)

	return err
}

// rollback discards a unit, tolerating units that already finished.
func (e *Engine) rollback(unit circulation.Unit) {
	if rollbackErr := unit.Rollback(); rollbackErr != nil && !errors.Is(rollbackErr, circulation.ErrUnitAlreadyFinished) {
		if e.logger != nil {
			e.logger.Warn("unit rollback failed", logAttrError, rollbackErr.Error())
		}
	}
}

func (e *Engine) recordOperationOutcome(
	ctx context.Context,
	span circulation.SpanContext,
	operation string,
	duration time.Duration,
	err error,
) {

	durationMS := toMilliseconds(duration)

	if err != nil {
		e.logError(ctx, logMsgOperationFailed+operation, err, logAttrDurationMS, durationMS)
		e.incrementCounter(metricOperationErrors, map[string]string{
			spanAttrOperation: operation,
			"error_kind":      errorKind(err),
		})
		e.finishSpan(span, statusError)
	} else {
		e.logOperation(ctx, logMsgOperationCompleted+operation, logAttrDurationMS, durationMS)
		e.finishSpan(span, statusOK)
	}

	e.recordDuration(metricOperationDuration, duration, map[string]string{spanAttrOperation: operation})
}

func (e *Engine) logOperation(ctx context.Context, msg string, args ...any) {
	if e.contextualLogger != nil {
		e.contextualLogger.InfoContext(ctx, msg, args...)
		return
	}

	if e.logger != nil {
		e.logger.Info(msg, args...)
	}
}

func (e *Engine) logError(ctx context.Context, msg string, err error, args ...any) {
	allArgs := append([]any{logAttrError, err.Error()}, args...)

	if e.contextualLogger != nil {
		e.contextualLogger.ErrorContext(ctx, msg, allArgs...)
		return
	}

	if e.logger != nil {
		e.logger.Error(msg, allArgs...)
	}
}

func (e *Engine) recordDuration(metric string, duration time.Duration, labels map[string]string) {
	if e.metrics != nil {
		e.metrics.RecordDuration(metric, duration, labels)
	}
}

func (e *Engine) incrementCounter(metric string, labels map[string]string) {
	if e.metrics != nil {
		e.metrics.IncrementCounter(metric, labels)
	}
}

func (e *Engine) startSpan(ctx context.Context, operation string) (context.Context, circulation.SpanContext) {
	if e.tracing == nil {
		return ctx, nil
	}

	return e.tracing.StartSpan(ctx, spanPrefix+operation, map[string]string{spanAttrOperation: operation})
}

func (e *Engine) finishSpan(span circulation.SpanContext, status string) {
	if e.tracing != nil && span != nil {
		e.tracing.FinishSpan(span, status, nil)
	}
}

// toMilliseconds converts a time.Duration to float64 milliseconds with 3 decimal places.
func toMilliseconds(d time.Duration) float64 {
	return math.Round(float64(d.Nanoseconds())/1e6*1000) / 1000
}

// errorKind extracts the error classification for metrics labeling.
func errorKind(err error) string {
	switch {
	case errors.Is(err, circulation.ErrNotFound):
		return "not_found"
	case errors.Is(err, circulation.ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, circulation.ErrIneligible):
		return "ineligible"
	case errors.Is(err, circulation.ErrConflict):
		return "conflict"
	case errors.Is(err, circulation.ErrValidation):
		return "validation"
	default:
		return "other"
	}
}

// stageAudit builds the audit entry for one mutation and stages it in the
// same unit. Any failure aborts the unit: audit completeness is a
// correctness requirement, not best-effort logging.
func stageAudit(
	unit circulation.Unit,
	action circulation.AuditAction,
	recordID int64,
	before circulation.AuditImage,
	after circulation.AuditImage,
	actor circulation.StaffID,
	now time.Time,
) error {

	entry, buildErr := circulation.BuildAuditEntry(action, recordID, before, after, actor, now)
	if buildErr != nil {
		return buildErr
	}

	if appendErr := unit.AppendAudit(entry); appendErr != nil {
		return errors.Join(circulation.ErrAuditAppendFailed, appendErr)
	}

	return nil
}

// checkEligibility applies the shared member eligibility rule: the
// membership window must cover `now`, the outstanding fine balance must not
// exceed the policy threshold, and - for checkouts only - the active loan
// count must be below the member's limit.
func (e *Engine) checkEligibility(
	unit circulation.Unit,
	member circulation.Member,
	now time.Time,
	enforceLoanLimit bool,
) error {

	if !member.IsActiveAt(now) {
		return circulation.ErrMembershipInactive
	}

	if enforceLoanLimit {
		activeLoans, countErr := unit.ActiveLoanCount(member.ID)
		if countErr != nil {
			return countErr
		}

		if activeLoans >= member.MaxBooksAllowed {
			return circulation.ErrLoanLimitReached
		}
	}

	balance, balanceErr := unit.OutstandingBalance(member.ID)
	if balanceErr != nil {
		return balanceErr
	}

	if balance.GreaterThan(e.policy.MaxBalance) {
		return circulation.ErrBalanceTooHigh
	}

	return nil
}
