package nats

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"gitlab.com/timkado/api/daisi-billing-testkit/internal/adapters/config"
	"gitlab.com/timkado/api/daisi-billing-testkit/internal/application"
	"gitlab.com/timkado/api/daisi-billing-testkit/internal/domain"
	"go.uber.org/zap"
)

// JetStreamIngester subscribes to the test-run stream and passes outcome
// events to an application.Collector.
type JetStreamIngester struct {
	configProvider domain.ConfigProvider
	logger         domain.Logger
	collector      *application.Collector
	natsConn       *nats.Conn
	jsCtx          nats.JetStreamContext
	subscription   *nats.Subscription
	shutdownCtx    context.Context
	shutdownCancel context.CancelFunc
}

// NewJetStreamIngester creates a new NATS JetStream ingester over an existing
// connection and JetStream context.
func NewJetStreamIngester(
	cfg domain.ConfigProvider,
	log domain.Logger,
	collector *application.Collector,
	nc *nats.Conn,
	js nats.JetStreamContext,
) (*JetStreamIngester, error) {
	logger := log.With(zap.String("component", "nats_ingester"))

	if nc == nil || !nc.IsConnected() {
		logger.Error(context.Background(), "NATS connection is nil or not connected for ingester")
		return nil, fmt.Errorf("NATS connection is nil or not connected for ingester")
	}
	if js == nil {
		logger.Error(context.Background(), "JetStream context is nil for ingester")
		return nil, fmt.Errorf("JetStream context is nil for ingester")
	}

	// Ensure the test-run stream and the reporter's durable consumer exist.
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

	_, err := js.StreamInfo(streamName)
	if err != nil {
		if err == nats.ErrStreamNotFound {
			logger.Info(context.Background(), "Stream not found, creating it", zap.String("stream_name", streamName), zap.Strings("subjects", streamSubjects))
			_, streamAddErr := js.AddStream(&nats.StreamConfig{
				Name:     streamName,
				Subjects: streamSubjects,
				Storage:  nats.FileStorage,
			})
			if streamAddErr != nil {
				logger.Error(context.Background(), "Failed to create stream", zap.Error(streamAddErr), zap.String("stream_name", streamName))
				return nil, fmt.Errorf("failed to create stream %s: %w", streamName, streamAddErr)
			}
			logger.Info(context.Background(), "Stream created successfully", zap.String("stream_name", streamName))
		} else {
			logger.Error(context.Background(), "Failed to get stream info", zap.Error(err), zap.String("stream_name", streamName))
			return nil, fmt.Errorf("failed to get stream info for %s: %w", streamName, err)
		}
	} else {
		logger.Info(context.Background(), "Stream already exists", zap.String("stream_name", streamName))
	}

	consumerName := cfg.GetString(config.KeyJSTestRunConsumerGroup)
	if consumerName == "" {
		consumerName = "testrun_collectors"
		logger.Info(context.Background(), "Consumer group not configured, using default", zap.String("default_consumer_name", consumerName))
	}

	ackWait := cfg.GetDuration(config.KeyJSAckWait)
	maxAckPending := cfg.GetInt(config.KeyJSMaxAckPending)
	maxDeliver := cfg.GetInt(config.KeyJSMaxDeliver)

	if ackWait == 0 {
		ackWait = 30 * time.Second
	}
	if maxAckPending == 0 {
		maxAckPending = 5000
	}
	if maxDeliver == 0 {
		maxDeliver = 3
	}

	consumerInfo, err := js.ConsumerInfo(streamName, consumerName)
	if err != nil || consumerInfo == nil {
		if err != nats.ErrConsumerNotFound && err != nil {
			logger.Warn(context.Background(), "Could not get consumer info, attempting to create/update", zap.Error(err), zap.String("consumer_name", consumerName))
		}
		logger.Info(context.Background(), "Consumer not found or needs update, creating/updating it",
			zap.String("stream_name", streamName),
			zap.String("consumer_name", consumerName),
		)

		_, consumerAddErr := js.AddConsumer(streamName, &nats.ConsumerConfig{
			Durable:       consumerName,
			AckPolicy:     nats.AckExplicitPolicy,
			FilterSubject: streamSubjects[0],
			AckWait:       ackWait,
			MaxAckPending: maxAckPending,
			MaxDeliver:    maxDeliver,
		})
		if consumerAddErr != nil {
			logger.Error(context.Background(), "Failed to create/update consumer", zap.Error(consumerAddErr), zap.String("consumer_name", consumerName))
			return nil, fmt.Errorf("failed to create/update consumer %s: %w", consumerName, consumerAddErr)
		}
		logger.Info(context.Background(), "Consumer created/updated successfully", zap.String("consumer_name", consumerName))
	} else {
		logger.Info(context.Background(), "Consumer already exists and configured", zap.String("consumer_name", consumerName))
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &JetStreamIngester{
		configProvider: cfg,
		logger:         logger,
		collector:      collector,
		natsConn:       nc,
		jsCtx:          js,
		shutdownCtx:    ctx,
		shutdownCancel: cancel,
	}, nil
}

// Start begins subscribing to JetStream messages and processing them.
// This is a blocking call and should typically be run in a goroutine.
func (j *JetStreamIngester) Start() error {
	j.logger.Info(j.shutdownCtx, "Starting NATS JetStream ingester...")

	queueGroupName := j.configProvider.GetString(config.KeyJSTestRunConsumerGroup)
	subjectsCSV := j.configProvider.GetString(config.KeyJSTestRunSubjects)
	subscribeSubject := strings.Split(subjectsCSV, ",")[0]

	ackWait := j.configProvider.GetDuration(config.KeyJSAckWait)
	maxAckPending := j.configProvider.GetInt(config.KeyJSMaxAckPending)

	var err error
	j.subscription, err = j.jsCtx.QueueSubscribe(
		subscribeSubject,
		queueGroupName,
		j.processJetStreamMessage,
		nats.ManualAck(),
		nats.AckWait(ackWait),
		nats.MaxAckPending(maxAckPending),
	)

	if err != nil {
		j.logger.Error(j.shutdownCtx, "Failed to subscribe to JetStream",
			zap.String("subject", subscribeSubject),
			zap.String("queue_group", queueGroupName),
			zap.Error(err),
		)
		return fmt.Errorf("failed to subscribe to JetStream subject %s with queue group %s: %w", subscribeSubject, queueGroupName, err)
	}

	j.logger.Info(j.shutdownCtx, "Successfully subscribed to JetStream",
		zap.String("subject", j.subscription.Subject),
		zap.String("queue_group", j.subscription.Queue),
	)

	// Wait for shutdown signal
	<-j.shutdownCtx.Done()
	j.logger.Info(j.shutdownCtx, "NATS JetStream ingester processing loop ended due to shutdown signal.")
	return nil
}

// Shutdown gracefully stops the ingester. It only drains its own
// subscription; the NATS connection is managed externally.
func (j *JetStreamIngester) Shutdown() error {
	j.logger.Info(j.shutdownCtx, "Initiating NATS JetStream ingester shutdown...")
	j.shutdownCancel()

	if j.subscription != nil && j.subscription.IsValid() {
		j.logger.Info(j.shutdownCtx, "Draining NATS JetStream subscription...")
		if err := j.subscription.Drain(); err != nil {
			j.logger.Error(j.shutdownCtx, "Error draining NATS subscription", zap.Error(err))
		} else {
			j.logger.Info(j.shutdownCtx, "NATS JetStream subscription drained successfully.")
		}
	}

	j.logger.Info(j.shutdownCtx, "NATS JetStream ingester shutdown complete (NATS connection managed externally).")
	return nil
}

// natsJetStreamMessageWrapper adapts *nats.Msg to application.OutcomeMessage.
type natsJetStreamMessageWrapper struct {
	msg    *nats.Msg
	logger domain.Logger
}

// NewNatsJetStreamMessageWrapper creates a new wrapper for nats.Msg
func NewNatsJetStreamMessageWrapper(m *nats.Msg, l domain.Logger) application.OutcomeMessage {
	return &natsJetStreamMessageWrapper{msg: m, logger: l}
}

func (w *natsJetStreamMessageWrapper) GetData() []byte {
	return w.msg.Data
}

func (w *natsJetStreamMessageWrapper) GetSubject() string {
	return w.msg.Subject
}

func (w *natsJetStreamMessageWrapper) Ack() error {
	if err := w.msg.AckSync(); err != nil {
		w.logger.Error(context.Background(), "Failed to ACK message via AckSync", zap.Error(err), zap.String("subject", w.msg.Subject))
		return err
	}
	return nil
}

func (w *natsJetStreamMessageWrapper) Nack(delay time.Duration) error {
	// Redelivery relies on JetStream's AckWait rather than a client-side delay.
	if err := w.msg.Nak(); err != nil {
		w.logger.Error(context.Background(), "Failed to NACK message", zap.Error(err), zap.String("subject", w.msg.Subject))
		return err
	}
	return nil
}

// processJetStreamMessage is the callback for JetStream subscriptions.
func (j *JetStreamIngester) processJetStreamMessage(natsMsg *nats.Msg) {
	// Panic recovery for this specific goroutine (message handler)
	defer func() {
		if r := recover(); r != nil {
			j.logger.Error(j.shutdownCtx, "Panic recovered in NATS message handler",
				zap.Any("panic_error", r),
				zap.String("subject", natsMsg.Subject),
				zap.Stack("stacktrace"),
			)
			if err := natsMsg.Nak(); err != nil {
				j.logger.Error(j.shutdownCtx, "Failed to NACK message after panic recovery", zap.Error(err), zap.String("subject", natsMsg.Subject))
			}
		}
	}()

	// Don't pick up new messages once shutdown has been initiated.
	select {
	case <-j.shutdownCtx.Done():
		j.logger.Info(j.shutdownCtx, "Shutdown initiated, not processing new message, attempting NACK", zap.String("subject", natsMsg.Subject))
		if err := natsMsg.Nak(); err != nil {
			j.logger.Error(j.shutdownCtx, "Failed to NACK message during shutdown check", zap.Error(err), zap.String("subject", natsMsg.Subject))
		}
		return
	default:
	}

	wrappedMsg := NewNatsJetStreamMessageWrapper(natsMsg, j.logger)
	msgProcessingCtx := context.Background()

	if err := j.collector.HandleOutcomeEvent(msgProcessingCtx, wrappedMsg); err != nil {
		// HandleOutcomeEvent has already logged its own detailed error and
		// decided Ack/Nack for the message; nothing further to do here.
		j.logger.Warn(j.shutdownCtx, "Error processing outcome event",
			zap.Error(err),
			zap.String("subject", natsMsg.Subject),
		)
	}
}
