package application

import (
	"context"
	"fmt"

	"gitlab.com/timkado/api/daisi-billing-testkit/internal/domain"
	"go.uber.org/zap"
)

// OutcomeReporter builds publishable outcome reports from classified test
// outcomes and dispatches them to the test-run stream without blocking the
// test's teardown.
type OutcomeReporter struct {
	logger      domain.Logger
	metricsSink domain.MetricsSink
	publisher   domain.Publisher
	pool        *WorkerPool
	runID       string
}

// NewOutcomeReporter creates a reporter for one run. The runID groups every
// outcome published by this process under one subject namespace.
func NewOutcomeReporter(
	log domain.Logger,
	metrics domain.MetricsSink,
	pub domain.Publisher,
	pool *WorkerPool,
	runID string,
) *OutcomeReporter {
	return &OutcomeReporter{
		logger:      log.With(zap.String("component", "outcome_reporter"), zap.String("run_id", runID)),
		metricsSink: metrics,
		publisher:   pub,
		pool:        pool,
		runID:       runID,
	}
}

// BuildReport turns a test outcome into its publishable payload and target
// subject (testrun.<run_id>.<suite>.<result>).
func (r *OutcomeReporter) BuildReport(outcome domain.TestOutcome) (*domain.OutcomeReport, string, []byte, error) {
	if outcome.Suite == "" {
		return nil, "", nil, domain.NewErrDataProcessing("empty_suite", "", fmt.Errorf("outcome for test %q carries no suite name", outcome.TestName))
	}
	if outcome.TestName == "" {
		return nil, "", nil, domain.NewErrDataProcessing("empty_test_name", outcome.Suite, fmt.Errorf("outcome carries no test name"))
	}

	report := &domain.OutcomeReport{
		RunID:          r.runID,
		Suite:          outcome.Suite,
		TestName:       outcome.TestName,
		Status:         int(outcome.Status),
		Tag:            outcome.Status.Tag(),
		ElapsedSeconds: outcome.ElapsedSeconds(),
		StartMillis:    outcome.StartMillis,
		EndMillis:      outcome.EndMillis,
	}

	targetSubject := fmt.Sprintf("testrun.%s.%s.%s", r.runID, outcome.Suite, outcome.Status.Result())

	payloadBytes, err := json.Marshal(report)
	if err != nil {
		return nil, "", nil, domain.NewErrDataProcessing("marshal_outcome_report", outcome.Suite, err)
	}

	return report, targetSubject, payloadBytes, nil
}

// Dispatch builds the report and hands publishing off to the dispatch pool so
// the lifecycle's teardown never waits on the broker. Failures are logged and
// counted; a lost report never fails a test.
func (r *OutcomeReporter) Dispatch(ctx context.Context, outcome domain.TestOutcome) {
	report, targetSubject, payloadBytes, err := r.BuildReport(outcome)
	if err != nil {
		r.logger.Error(ctx, "Failed to build outcome report", zap.Error(err), zap.String("test", outcome.FullName()))
		return
	}

	submitErr := r.pool.Submit(func() {
		if pubErr := r.publisher.Publish(ctx, targetSubject, payloadBytes); pubErr != nil {
			r.logger.Error(ctx, "Failed to publish outcome report",
				zap.Error(pubErr),
				zap.String("target_subject", targetSubject),
				zap.String("test", report.Suite+":"+report.TestName),
			)
		}
	})
	if submitErr != nil {
		r.logger.Error(ctx, "Failed to submit outcome report to dispatch pool", zap.Error(submitErr), zap.String("test", outcome.FullName()))
	}
}
