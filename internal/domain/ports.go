package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ConfigProvider defines the interface for accessing configuration.
// This allows different configuration sources (e.g., Viper, environment
// variables) to be used interchangeably.
type ConfigProvider interface {
	GetString(key string) string
	GetDuration(key string) time.Duration
	GetInt(key string) int
	GetBool(key string) bool
	Set(key string, value interface{})
}

// Logger defines the interface for structured logging throughout the testkit.
// Logging methods expect a context.Context for context-aware logging
// (e.g., run_id, test_name).
type Logger interface {
	Info(ctx context.Context, msg string, fields ...zap.Field)
	Warn(ctx context.Context, msg string, fields ...zap.Field)
	Error(ctx context.Context, msg string, fields ...zap.Field)
	Debug(ctx context.Context, msg string, fields ...zap.Field)
	With(fields ...zap.Field) Logger // For adding static, non-contextual fields to a logger instance
}

// Clock is the time source consulted by the refresher and the lifecycle
// wrapper. Implementations must return UTC instants. The mock implementation
// is settable so tests can simulate arbitrary "now" values.
type Clock interface {
	Now() time.Time
}

// CallContextFactory derives an account-scoped internal tenant context from
// an external tenant context and an account identifier. Resolution failure
// (unknown or invalid account) is a test-setup defect and is returned as-is.
type CallContextFactory interface {
	CreateInternalTenantContext(ctx context.Context, accountID uuid.UUID, tenant TenantContext) (*InternalTenantContext, error)
}

// AccountDirectory resolves account fixtures seeded by the test-database
// helper into their record id / timezone / reference time rows.
type AccountDirectory interface {
	Lookup(ctx context.Context, accountID uuid.UUID) (*AccountRecord, error)
}

// DedupStore defines the interface for checking whether an outcome has
// already been collected. The reporter uses it so redelivered outcome events
// are counted exactly once.
type DedupStore interface {
	// IsDuplicate checks if the given key has been seen within the specified
	// TTL. It returns true if it's a duplicate, false otherwise. An error is
	// returned if the check fails.
	IsDuplicate(ctx context.Context, key OutcomeKey, ttl time.Duration) (bool, error)
}

// Publisher defines the interface for sending outcome reports to the
// downstream message broker (e.g., NATS JetStream).
type Publisher interface {
	// Publish sends the given data to the specified subject.
	// An error is returned if publishing fails.
	Publish(ctx context.Context, subject string, data []byte) error
}

// MetricsSink defines the interface for emitting testkit metrics.
// This allows for different monitoring backends (e.g., Prometheus).
type MetricsSink interface {
	IncTestsTotal(suite, result string) // result: success, failure, skip, ...
	ObserveTestDuration(suite string, duration time.Duration)
	IncAbortedSetups()                 // setups skipped by the run-wide fail-fast flag
	IncContextRefreshes(result string) // result: "ok", "error"
	IncEventsPublished(subject, status string)
	IncPublishErrors()
	IncDedupCheck(result string)           // result: "hit", "miss"
	IncOutcomesTotal(suite, result string) // reporter-side aggregate
}
