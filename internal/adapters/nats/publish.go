package nats

import (
	"context"
	"fmt"
	"strings"

	"github.com/nats-io/nats.go"
	"gitlab.com/timkado/api/daisi-billing-testkit/internal/adapters/config"
	"gitlab.com/timkado/api/daisi-billing-testkit/internal/domain"
	"go.uber.org/zap"
)

// JetStreamPublisher implements the domain.Publisher interface for NATS JetStream.
// The lifecycle wrapper's report dispatcher publishes outcome reports through it.
type JetStreamPublisher struct {
	configProvider domain.ConfigProvider
	logger         domain.Logger
	metricsSink    domain.MetricsSink
	natsConn       *nats.Conn
	jsCtx          nats.JetStreamContext
}

// NewJetStreamPublisher creates a new NATS JetStream publisher.
// It expects an active NATS connection to be passed in.
func NewJetStreamPublisher(
	cfg domain.ConfigProvider,
	log domain.Logger,
	metrics domain.MetricsSink,
	nc *nats.Conn, // Accepts an existing NATS connection
) (*JetStreamPublisher, error) {
	logger := log.With(zap.String("component", "nats_publisher"))

	if nc == nil || !nc.IsConnected() {
		logger.Error(context.Background(), "NATS connection is nil or not connected")
		return nil, fmt.Errorf("NATS connection is nil or not connected for publisher")
	}

	js, err := nc.JetStream()
	if err != nil {
		logger.Error(context.Background(), "Failed to get JetStream context for publisher", zap.Error(err))
		return nil, fmt.Errorf("failed to get JetStream context for publisher: %w", err)
	}

	// Ensure the test-run stream exists. This makes the publisher robust when
	// the testkit is the first process to touch a fresh broker.
	streamName := cfg.GetString(config.KeyJSTestRunStreamName)
	if streamName == "" {
		streamName = "testrun_stream"
		logger.Info(context.Background(), "Test-run stream name not configured, using default", zap.String("default_stream_name", streamName))
	}
	streamSubjectsCSV := cfg.GetString(config.KeyJSTestRunSubjects)
	if streamSubjectsCSV == "" {
		streamSubjectsCSV = "testrun.>"
		logger.Info(context.Background(), "Test-run stream subjects not configured, using default", zap.String("default_stream_subjects_csv", streamSubjectsCSV))
	}
	streamSubjects := strings.Split(streamSubjectsCSV, ",")
	for i, s := range streamSubjects {
		streamSubjects[i] = strings.TrimSpace(s)
	}

	_, streamErr := js.StreamInfo(streamName)
	if streamErr != nil {
		if streamErr == nats.ErrStreamNotFound {
			logger.Info(context.Background(), "Test-run stream not found, creating it",
				zap.String("stream_name", streamName),
				zap.Strings("subjects", streamSubjects),
			)
			_, addStreamErr := js.AddStream(&nats.StreamConfig{
				Name:     streamName,
				Subjects: streamSubjects,
				Storage:  nats.FileStorage,
			})
			if addStreamErr != nil {
				logger.Error(context.Background(), "Failed to create test-run stream", zap.Error(addStreamErr), zap.String("stream_name", streamName))
				return nil, fmt.Errorf("failed to create test-run stream %s: %w", streamName, addStreamErr)
			}
			logger.Info(context.Background(), "Test-run stream created successfully", zap.String("stream_name", streamName))
		} else {
			logger.Error(context.Background(), "Failed to get test-run stream info", zap.Error(streamErr), zap.String("stream_name", streamName))
			return nil, fmt.Errorf("failed to get test-run stream info for %s: %w", streamName, streamErr)
		}
	} else {
		logger.Info(context.Background(), "Test-run stream already exists", zap.String("stream_name", streamName))
	}

	return &JetStreamPublisher{
		configProvider: cfg,
		logger:         logger,
		metricsSink:    metrics,
		natsConn:       nc,
		jsCtx:          js,
	}, nil
}

// Publish sends the given data to the specified subject on NATS JetStream and waits for server ACK.
func (p *JetStreamPublisher) Publish(ctx context.Context, subject string, data []byte) error {
	p.logger.Debug(ctx, "Attempting to publish outcome report and wait for server ACK",
		zap.String("subject", subject),
		zap.Int("data_len", len(data)),
	)

	msg := nats.NewMsg(subject)
	msg.Data = data

	// PublishMsg is synchronous and waits for an ACK from the JetStream server.
	ack, err := p.jsCtx.PublishMsg(msg, nats.Context(ctx))
	if err != nil {
		p.logger.Error(ctx, "Failed to publish outcome report to JetStream",
			zap.Error(err),
			zap.String("subject", subject),
		)
		p.metricsSink.IncPublishErrors()
		p.metricsSink.IncEventsPublished(subject, "failure")

		if ctx.Err() != nil {
			return domain.NewErrExternalService("NATS_publisher_ctx_cancelled", ctx.Err())
		}
		return domain.NewErrExternalService("NATS_publisher_send_or_ack", err)
	}

	p.metricsSink.IncEventsPublished(subject, "success")
	p.logger.Debug(ctx, "Outcome report published to JetStream and ACKed by server",
		zap.String("subject", subject),
		zap.String("stream_name_from_ack", ack.Stream),
		zap.Uint64("sequence_from_ack", ack.Sequence),
	)
	return nil
}

// Shutdown is a no-op for JetStreamPublisher since the NATS connection is managed externally.
func (p *JetStreamPublisher) Shutdown() error {
	p.logger.Info(context.Background(), "NATS JetStream publisher shutdown (no-op, connection managed externally).")
	return nil
}
