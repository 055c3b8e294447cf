package application

import (
	"context"
	"time"

	"github.com/google/uuid"
	adapterlogger "gitlab.com/timkado/api/daisi-billing-testkit/internal/adapters/logger"
	"gitlab.com/timkado/api/daisi-billing-testkit/internal/domain"
	"go.uber.org/zap"
)

// Lifecycle standardizes per-test setup, teardown and invariant assertions
// for one suite instance, cooperating with the run-wide fail-fast tracker.
//
// Note: assertions should not run inside setup/teardown hooks, as the
// surrounding runner would attribute their failure to the wrong phase.
// Use Run, which brackets the test body with the listener-status check.
type Lifecycle struct {
	logger      domain.Logger
	metricsSink domain.MetricsSink
	clock       domain.Clock
	factory     domain.CallContextFactory
	runStatus   *RunStatusTracker
	reporter    *OutcomeReporter // optional; nil disables outcome publishing

	suite               string
	tenantContext       domain.TenantContext
	internalCallContext *domain.MutableInternalCallContext

	// ListenerStatusCheck asserts that global listener state is clean. The
	// default nil check is a no-op; suites with bus listeners override it.
	ListenerStatusCheck func() error

	// hasFailed remembers whether THIS instance observed any non-success
	// outcome. It is independent from the run-wide tracker and the two are
	// never reconciled.
	hasFailed bool
}

// NewLifecycle creates the lifecycle wrapper for one suite instance.
// The reporter may be nil when the run has no broker to publish to.
func NewLifecycle(
	log domain.Logger,
	metrics domain.MetricsSink,
	clk domain.Clock,
	factory domain.CallContextFactory,
	runStatus *RunStatusTracker,
	reporter *OutcomeReporter,
	suite string,
	tenant domain.TenantContext,
	internalCallContext *domain.MutableInternalCallContext,
) *Lifecycle {
	return &Lifecycle{
		logger:              log.With(zap.String("component", "lifecycle"), zap.String("suite", suite)),
		metricsSink:         metrics,
		clock:               clk,
		factory:             factory,
		runStatus:           runStatus,
		reporter:            reporter,
		suite:               suite,
		tenantContext:       tenant,
		internalCallContext: internalCallContext,
	}
}

// BeforeTest runs before each test body. When the run has already failed
// fast it returns immediately: no start marker, no context reset. Otherwise
// it logs the start marker and clears any state a prior test left in the
// internal call context.
func (l *Lifecycle) BeforeTest(ctx context.Context, testName string) {
	if l.runStatus.HasFailures() {
		l.metricsSink.IncAbortedSetups()
		return
	}

	ctx = context.WithValue(ctx, adapterlogger.LogKeyTestName, testName)
	l.logger.Info(ctx, "*** Starting test", zap.String("test", l.suite+":"+testName))

	if l.internalCallContext != nil {
		l.internalCallContext.Reset()
	}
}

// AfterTest runs after each test body. When the run has already failed fast
// it returns immediately. Otherwise it classifies the outcome (unrecognized
// status codes fall through to UNKNOWN, never an error), logs the end marker
// with the tag and the floored elapsed seconds, and records the first
// non-success outcome in the per-instance flag.
func (l *Lifecycle) AfterTest(ctx context.Context, outcome domain.TestOutcome) {
	if l.runStatus.HasFailures() {
		return
	}

	ctx = context.WithValue(ctx, adapterlogger.LogKeyTestName, outcome.TestName)
	tag := outcome.Status.Tag()
	l.logger.Info(ctx, "*** Ending test",
		zap.String("test", outcome.FullName()),
		zap.String("tag", tag),
		zap.Int64("elapsed_s", outcome.ElapsedSeconds()),
	)

	l.metricsSink.IncTestsTotal(outcome.Suite, outcome.Status.Result())
	l.metricsSink.ObserveTestDuration(outcome.Suite, time.Duration(outcome.EndMillis-outcome.StartMillis)*time.Millisecond)

	if !l.hasFailed && !outcome.Status.IsSuccess() {
		l.hasFailed = true
	}

	if l.reporter != nil {
		l.reporter.Dispatch(ctx, outcome)
	}
}

// Run executes a test body between two listener-status checks. The pre-check
// always runs; the post-check runs only when the body returned nil, so a
// failing body's signal is never conflated with an assertion failure in the
// result reporting. Check failures and body failures both surface as
// ordinary test failures to the caller.
func (l *Lifecycle) Run(ctx context.Context, body func() error) error {
	// Make sure we start with a clean state.
	if err := l.checkListenerStatus(); err != nil {
		return err
	}

	if err := body(); err != nil {
		// Post-check deliberately skipped; the runner records the body's failure.
		return err
	}

	// Make sure we finish in a clean state (the test didn't fail).
	return l.checkListenerStatus()
}

func (l *Lifecycle) checkListenerStatus() error {
	if l.ListenerStatusCheck == nil {
		return nil
	}
	return l.ListenerStatusCheck()
}

// RefreshCallContext resolves the account and rewrites this instance's
// internal call context in place, stamping created/updated from the clock.
func (l *Lifecycle) RefreshCallContext(ctx context.Context, accountID uuid.UUID) error {
	ctx = context.WithValue(ctx, adapterlogger.LogKeyAccountID, accountID.String())
	if err := RefreshCallContext(ctx, accountID, l.clock, l.factory, l.tenantContext, l.internalCallContext); err != nil {
		l.metricsSink.IncContextRefreshes("error")
		l.logger.Error(ctx, "Call-context refresh failed", zap.Error(err))
		return err
	}
	l.metricsSink.IncContextRefreshes("ok")
	return nil
}

// HasFailed reports whether this instance observed any non-success outcome.
// Once true it stays true for the instance's lifetime.
func (l *Lifecycle) HasFailed() bool {
	return l.hasFailed
}

// InternalCallContext exposes the per-test execution context for assertions
// and for collaborators that scope queries by account record id.
func (l *Lifecycle) InternalCallContext() *domain.MutableInternalCallContext {
	return l.internalCallContext
}

// TenantContext exposes the immutable external context snapshot.
func (l *Lifecycle) TenantContext() domain.TenantContext {
	return l.tenantContext
}
