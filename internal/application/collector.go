package application

import (
	"context"
	"fmt"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"gitlab.com/timkado/api/daisi-billing-testkit/internal/adapters/config"
	"gitlab.com/timkado/api/daisi-billing-testkit/internal/adapters/logger"
	"gitlab.com/timkado/api/daisi-billing-testkit/internal/domain"

	"go.uber.org/zap"
)

// Expected NATS subject parts for test-run outcome events
const (
	expectedSubjectPrefix    = "testrun"
	expectedSubjectPartCount = 4 // testrun.<run_id>.<suite>.<result>
)

var json = jsoniter.ConfigFastest

// OutcomeMessage represents the raw message structure received from the NATS
// JetStream subscription on the test-run stream.
type OutcomeMessage interface {
	GetData() []byte
	GetSubject() string
	Ack() error
	Nack(delay time.Duration) error // Nack with a delay
}

// Collector aggregates outcome events published by testkit processes across a
// CI run. It dedups redelivered events and feeds the reporter's metrics.
type Collector struct {
	configProvider domain.ConfigProvider
	logger         domain.Logger
	dedupStore     domain.DedupStore
	metricsSink    domain.MetricsSink
}

// NewCollector creates a new outcome event collector.
func NewCollector(
	cfg domain.ConfigProvider,
	log domain.Logger,
	dedup domain.DedupStore,
	metrics domain.MetricsSink,
) *Collector {
	return &Collector{
		configProvider: cfg,
		logger:         log.With(zap.String("component", "collector")),
		dedupStore:     dedup,
		metricsSink:    metrics,
	}
}

// parseOutcomeSubject parses a test-run subject
// (e.g., testrun.<run_id>.<suite>.<result>) into its parts.
func parseOutcomeSubject(subject string) domain.ParsedOutcomeSubject {
	parts := strings.Split(subject, ".")
	info := domain.ParsedOutcomeSubject{RawSubject: subject, IsValid: false}

	if len(parts) != expectedSubjectPartCount {
		return info // Invalid structure
	}

	info.Prefix = parts[0]
	if info.Prefix != expectedSubjectPrefix {
		return info // Prefix doesn't match
	}

	info.RunID = parts[1]
	info.Suite = parts[2]
	info.Result = parts[3]

	if info.RunID == "" || info.Suite == "" || info.Result == "" {
		return info // One of the critical parts is empty
	}

	info.IsValid = true
	return info
}

// HandleOutcomeEvent processes a single outcome event: parse the subject,
// unmarshal the report, dedup, aggregate. Malformed events are acked (there
// is no point in redelivering them); transient store failures nack so the
// broker redelivers.
func (c *Collector) HandleOutcomeEvent(ctx context.Context, msg OutcomeMessage) error {
	subject := msg.GetSubject()
	parsed := parseOutcomeSubject(subject)

	if !parsed.IsValid {
		c.logger.Error(ctx, "Failed to parse test-run subject",
			zap.String("subject", subject),
			zap.String("expected_format", "testrun.<run_id>.<suite>.<result>"),
		)
		c.metricsSink.IncOutcomesTotal("unknown_subject_format", "error")
		if ackErr := msg.Ack(); ackErr != nil { // Ack bad subject to prevent loops
			c.logger.Error(ctx, "Failed to ACK message with invalid subject format", zap.Error(ackErr), zap.String("subject", subject))
		}
		return fmt.Errorf("invalid test-run subject format: %s", subject)
	}
	ctx = logger.ContextWithRunID(ctx, parsed.RunID)

	var report domain.OutcomeReport
	if err := json.Unmarshal(msg.GetData(), &report); err != nil {
		c.logger.Error(ctx, "Failed to unmarshal outcome report", zap.Error(err), zap.ByteString("raw_data", msg.GetData()))
		c.metricsSink.IncOutcomesTotal(parsed.Suite, "unmarshal_error")
		_ = msg.Ack() // Unmarshal error is a data quality issue, Ack.
		return nil
	}

	// The payload's status is authoritative; the subject token is routing only.
	result := domain.TestStatus(report.Status).Result()
	if parsed.Result != result {
		c.logger.Warn(ctx, "Mismatch between subject result and payload status. Using payload status.",
			zap.String("subject_result", parsed.Result),
			zap.String("payload_result", result))
	}

	isDup, err := c.dedupStore.IsDuplicate(ctx, report.Key(), c.configProvider.GetDuration(config.KeyDedupTTL))
	if err != nil {
		c.logger.Error(ctx, "Deduplication check failed", zap.Error(err), zap.String("outcome_key", string(report.Key())))
		// An external service issue, potentially transient: Nack for redelivery.
		_ = msg.Nack(0)
		return err
	}
	if isDup {
		c.logger.Info(ctx, "Duplicate outcome event skipped", zap.String("outcome_key", string(report.Key())))
		_ = msg.Ack()
		return nil
	}

	c.metricsSink.IncOutcomesTotal(report.Suite, result)
	c.metricsSink.ObserveTestDuration(report.Suite, time.Duration(report.EndMillis-report.StartMillis)*time.Millisecond)

	c.logger.Info(ctx, "Outcome event aggregated",
		zap.String("suite", report.Suite),
		zap.String("test_name", report.TestName),
		zap.String("result", result),
		zap.Int64("elapsed_s", report.ElapsedSeconds),
	)

	if ackErr := msg.Ack(); ackErr != nil {
		// If ACK fails the broker will redeliver; the dedup store absorbs it.
		c.logger.Error(ctx, "Failed to ACK message after successful aggregation", zap.Error(ackErr), zap.String("outcome_key", string(report.Key())))
	}
	return nil
}
