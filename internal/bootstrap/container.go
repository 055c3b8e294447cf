//go:build wireinject
// +build wireinject

package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/google/wire"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	adapterclock "gitlab.com/timkado/api/daisi-billing-testkit/internal/adapters/clock"
	"gitlab.com/timkado/api/daisi-billing-testkit/internal/adapters/config"
	adapterlogger "gitlab.com/timkado/api/daisi-billing-testkit/internal/adapters/logger"
	adaptermetrics "gitlab.com/timkado/api/daisi-billing-testkit/internal/adapters/metrics"
	adapternats "gitlab.com/timkado/api/daisi-billing-testkit/internal/adapters/nats"
	adapterredis "gitlab.com/timkado/api/daisi-billing-testkit/internal/adapters/redis"
	"gitlab.com/timkado/api/daisi-billing-testkit/internal/application"
	"gitlab.com/timkado/api/daisi-billing-testkit/internal/domain"
	"go.uber.org/zap"
)

// ServiceName is the name of this service.
const ServiceName = "daisi-billing-testkit"

// RunID groups every outcome published by one CI run under a single subject
// namespace.
type RunID string

// SuiteName identifies the suite a harness instance is built for.
type SuiteName string

// --- Core Infrastructure Providers ---

func provideConfig() (domain.ConfigProvider, error) {
	cfg := config.NewViperConfigProvider()
	if cfg == nil {
		return nil, domain.ErrConfigSourceInit
	}
	return cfg, nil
}

func provideLogger(cfg domain.ConfigProvider) (domain.Logger, func(), error) {
	loggerImpl, err := adapterlogger.NewZapAdapter(cfg, ServiceName)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}
	cleanup := func() {
		if zapLogger, ok := loggerImpl.(*adapterlogger.ZapAdapter); ok {
			_ = zapLogger.Sync()
		} else {
			fmt.Println("Warning: Logger type assertion for sync failed.")
		}
	}
	return loggerImpl, cleanup, nil
}

func provideNATSConnection(cfg domain.ConfigProvider, log domain.Logger) (*nats.Conn, func(), error) {
	natsURL := cfg.GetString(config.KeyNatsURL)
	if natsURL == "" {
		return nil, nil, fmt.Errorf("NATS_URL is not configured (key: %s)", config.KeyNatsURL)
	}

	nc, err := nats.Connect(
		natsURL,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(5*time.Second),
		nats.DisconnectErrHandler(func(conn *nats.Conn, err error) {
			log.Warn(context.Background(), "NATS disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(conn *nats.Conn) {
			log.Info(context.Background(), "NATS reconnected", zap.String("url", conn.ConnectedUrl()))
		}),
		nats.ClosedHandler(func(conn *nats.Conn) {
			log.Info(context.Background(), "NATS connection closed")
		}),
		nats.Name(ServiceName),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to NATS at %s: %w", natsURL, err)
	}

	cleanup := func() {
		if nc != nil && !nc.IsClosed() {
			log.Info(context.Background(), "Draining NATS connection...")
			if err := nc.Drain(); err != nil {
				log.Error(context.Background(), "Error draining NATS connection", zap.Error(err))
			} else {
				log.Info(context.Background(), "NATS connection drained successfully.")
			}
		}
	}
	return nc, cleanup, nil
}

func provideJetStreamContext(nc *nats.Conn) (nats.JetStreamContext, error) {
	js, err := nc.JetStream()
	if err != nil {
		return nil, fmt.Errorf("failed to get JetStream context: %w", err)
	}
	return js, nil
}

func provideRedisClient(cfg domain.ConfigProvider, log domain.Logger) (*redis.Client, func(), error) {
	redisAddr := cfg.GetString(config.KeyRedisAddr)
	if redisAddr == "" {
		return nil, nil, fmt.Errorf("Redis address is not configured (key: %s)", config.KeyRedisAddr)
	}

	opts, err := redis.ParseURL(redisAddr)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse Redis URL '%s': %w", redisAddr, err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if status := client.Ping(ctx); status.Err() != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("failed to ping Redis at %s: %w", redisAddr, status.Err())
	}
	log.Info(context.Background(), "Successfully connected to Redis (shared client)", zap.String("address", redisAddr))

	cleanup := func() {
		if client != nil {
			if err := client.Close(); err != nil {
				log.Error(context.Background(), "Failed to close shared Redis client", zap.Error(err))
			} else {
				log.Info(context.Background(), "Shared Redis client closed successfully.")
			}
		}
	}
	return client, cleanup, nil
}

func provideMetricsSink() (domain.MetricsSink, error) {
	sink, err := adaptermetrics.NewPrometheusMetricsSink()
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus metrics sink: %w", err)
	}
	return sink, nil
}

func provideMetricsServer(cfg domain.ConfigProvider, log domain.Logger) *http.Server {
	metricsPort := cfg.GetString(config.KeyMetricsPort)
	log.Info(context.Background(), "Starting metrics server", zap.String("port", metricsPort))
	return adaptermetrics.StartMetricsServer(metricsPort)
}

func provideRunID(cfg domain.ConfigProvider) RunID {
	if id := cfg.GetString(config.KeyRunID); id != "" {
		return RunID(id)
	}
	return RunID(uuid.NewString())
}

var CoreInfraSet = wire.NewSet(
	provideConfig,
	provideLogger,
	provideNATSConnection,
	provideJetStreamContext,
	provideRedisClient,
	provideMetricsSink,
	provideMetricsServer,
	provideRunID,
)

// --- Application Service and Adapter Providers ---

func provideWorkerPool(cfg domain.ConfigProvider, log domain.Logger) (*application.WorkerPool, func(), error) {
	pool, err := application.NewWorkerPool(cfg, log)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create worker pool: %w", err)
	}
	cleanup := func() {
		pool.Release()
	}
	return pool, cleanup, nil
}

func provideDedupStore(log domain.Logger, metrics domain.MetricsSink, client *redis.Client) (domain.DedupStore, error) {
	store, err := adapterredis.NewDedupStore(log, metrics, client)
	if err != nil {
		return nil, fmt.Errorf("failed to create dedup store: %w", err)
	}
	return store, nil
}

func providePublisher(cfg domain.ConfigProvider, log domain.Logger, metrics domain.MetricsSink, nc *nats.Conn) (domain.Publisher, error) {
	pub, err := adapternats.NewJetStreamPublisher(cfg, log, metrics, nc)
	if err != nil {
		return nil, fmt.Errorf("failed to create jetstream publisher: %w", err)
	}
	return pub, nil
}

func provideCollector(
	cfg domain.ConfigProvider,
	log domain.Logger,
	dedup domain.DedupStore,
	metrics domain.MetricsSink,
) *application.Collector {
	return application.NewCollector(cfg, log, dedup, metrics)
}

func provideIngester(
	cfg domain.ConfigProvider,
	log domain.Logger,
	collector *application.Collector,
	nc *nats.Conn,
	jsCtx nats.JetStreamContext,
) (*adapternats.JetStreamIngester, func(), error) {
	ingester, err := adapternats.NewJetStreamIngester(cfg, log, collector, nc, jsCtx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create jetstream ingester: %w", err)
	}
	cleanup := func() {
		if err := ingester.Shutdown(); err != nil {
			log.Error(context.Background(), "Error shutting down jetstream ingester", zap.Error(err))
		}
	}
	return ingester, cleanup, nil
}

var ApplicationServicesSet = wire.NewSet(
	provideWorkerPool,
	provideDedupStore,
	providePublisher,
	provideCollector,
	provideIngester,
)

// App bundles everything the reporter service binary needs.
type App struct {
	Logger        domain.Logger
	Cfg           domain.ConfigProvider
	NatsConn      *nats.Conn
	MetricsSink   domain.MetricsSink
	MetricsServer *http.Server
	WorkerPool    *application.WorkerPool
	Ingester      *adapternats.JetStreamIngester
	Publisher     domain.Publisher
	DedupStore    domain.DedupStore
	Collector     *application.Collector
}

func NewApp(
	logger domain.Logger,
	cfg domain.ConfigProvider,
	natsConn *nats.Conn,
	metricsSink domain.MetricsSink,
	metricsServer *http.Server,
	workerPool *application.WorkerPool,
	ingester *adapternats.JetStreamIngester,
	publisher domain.Publisher,
	dedupStore domain.DedupStore,
	collector *application.Collector,
) *App {
	return &App{
		Logger:        logger,
		Cfg:           cfg,
		NatsConn:      natsConn,
		MetricsSink:   metricsSink,
		MetricsServer: metricsServer,
		WorkerPool:    workerPool,
		Ingester:      ingester,
		Publisher:     publisher,
		DedupStore:    dedupStore,
		Collector:     collector,
	}
}

var FullAppSet = wire.NewSet(
	CoreInfraSet,
	ApplicationServicesSet,
	NewApp,
)

func InitializeApp() (*App, func(), error) {
	wire.Build(
		FullAppSet,
	)
	return nil, nil, nil
}

// --- Test Harness Providers ---

func provideMockClock() *adapterclock.MockClock {
	return adapterclock.NewMockClock()
}

func provideClock(mock *adapterclock.MockClock) domain.Clock {
	return mock
}

func provideAccountDirectory(log domain.Logger, client *redis.Client) (*adapterredis.AccountDirectory, error) {
	dir, err := adapterredis.NewAccountDirectory(log, client)
	if err != nil {
		return nil, fmt.Errorf("failed to create account directory: %w", err)
	}
	return dir, nil
}

func provideCallContextFactory(log domain.Logger, dir *adapterredis.AccountDirectory) domain.CallContextFactory {
	return application.NewCallContextFactory(log, dir)
}

func provideRunStatusTracker() *application.RunStatusTracker {
	return application.NewRunStatusTracker()
}

func provideOutcomeReporter(
	log domain.Logger,
	metrics domain.MetricsSink,
	pub domain.Publisher,
	pool *application.WorkerPool,
	runID RunID,
) *application.OutcomeReporter {
	return application.NewOutcomeReporter(log, metrics, pub, pool, string(runID))
}

func provideInternalCallContext() *domain.MutableInternalCallContext {
	icc := &domain.MutableInternalCallContext{}
	icc.Reset()
	return icc
}

func provideLifecycle(
	log domain.Logger,
	metrics domain.MetricsSink,
	clk domain.Clock,
	factory domain.CallContextFactory,
	runStatus *application.RunStatusTracker,
	reporter *application.OutcomeReporter,
	suite SuiteName,
	tenant domain.TenantContext,
	icc *domain.MutableInternalCallContext,
) *application.Lifecycle {
	return application.NewLifecycle(log, metrics, clk, factory, runStatus, reporter, string(suite), tenant, icc)
}

var HarnessSet = wire.NewSet(
	provideMockClock,
	provideClock,
	provideAccountDirectory,
	provideCallContextFactory,
	provideRunStatusTracker,
	provideOutcomeReporter,
	provideInternalCallContext,
	provideLifecycle,
)

// Harness bundles everything a suite needs: the lifecycle wrapper, the
// mutable clock it advances, the run-wide tracker and the fixture directory
// used to seed accounts.
type Harness struct {
	Logger              domain.Logger
	Cfg                 domain.ConfigProvider
	Clock               *adapterclock.MockClock
	RunStatus           *application.RunStatusTracker
	Reporter            *application.OutcomeReporter
	Lifecycle           *application.Lifecycle
	Directory           *adapterredis.AccountDirectory
	Factory             domain.CallContextFactory
	InternalCallContext *domain.MutableInternalCallContext
}

func NewHarness(
	logger domain.Logger,
	cfg domain.ConfigProvider,
	clk *adapterclock.MockClock,
	runStatus *application.RunStatusTracker,
	reporter *application.OutcomeReporter,
	lifecycle *application.Lifecycle,
	directory *adapterredis.AccountDirectory,
	factory domain.CallContextFactory,
	icc *domain.MutableInternalCallContext,
) *Harness {
	return &Harness{
		Logger:              logger,
		Cfg:                 cfg,
		Clock:               clk,
		RunStatus:           runStatus,
		Reporter:            reporter,
		Lifecycle:           lifecycle,
		Directory:           directory,
		Factory:             factory,
		InternalCallContext: icc,
	}
}

var FullHarnessSet = wire.NewSet(
	provideConfig,
	provideLogger,
	provideNATSConnection,
	provideRedisClient,
	provideMetricsSink,
	provideRunID,
	provideWorkerPool,
	providePublisher,
	HarnessSet,
	NewHarness,
)

func InitializeHarness(suite SuiteName, tenant domain.TenantContext) (*Harness, func(), error) {
	wire.Build(
		FullHarnessSet,
	)
	return nil, nil, nil
}
