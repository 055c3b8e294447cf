package application

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"gitlab.com/timkado/api/daisi-billing-testkit/internal/domain"
	"go.uber.org/zap" // For zap.Field
)

// --- Mocks ---

// mockOutcomeMessage
type mockOutcomeMessage struct {
	mock.Mock
	data    []byte
	subject string
}

func (m *mockOutcomeMessage) GetData() []byte {
	args := m.Called()
	if args.Get(0) != nil {
		return args.Get(0).([]byte)
	}
	return m.data
}
func (m *mockOutcomeMessage) GetSubject() string {
	args := m.Called()
	if args.Get(0) != nil {
		return args.Get(0).(string)
	}
	return m.subject
}
func (m *mockOutcomeMessage) Ack() error {
	args := m.Called()
	return args.Error(0)
}
func (m *mockOutcomeMessage) Nack(delay time.Duration) error {
	args := m.Called(delay)
	return args.Error(0)
}

// mockConfigProvider
type mockConfigProvider struct {
	mock.Mock
}

func (m *mockConfigProvider) GetString(key string) string {
	args := m.Called(key)
	return args.String(0)
}
func (m *mockConfigProvider) GetDuration(key string) time.Duration {
	args := m.Called(key)
	if args.Get(0) == nil {
		return 0
	}
	return args.Get(0).(time.Duration)
}
func (m *mockConfigProvider) GetInt(key string) int {
	args := m.Called(key)
	return args.Int(0)
}
func (m *mockConfigProvider) GetBool(key string) bool {
	args := m.Called(key)
	return args.Bool(0)
}
func (m *mockConfigProvider) Set(key string, value interface{}) {
	m.Called(key, value)
}

// mockLogger
type mockLogger struct {
	mock.Mock
}

func (m *mockLogger) Info(ctx context.Context, msg string, fields ...zap.Field) {
	m.Called(ctx, msg, fields)
}
func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...zap.Field) {
	m.Called(ctx, msg, fields)
}
func (m *mockLogger) Error(ctx context.Context, msg string, fields ...zap.Field) {
	m.Called(ctx, msg, fields)
}
func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...zap.Field) {
	m.Called(ctx, msg, fields)
}
func (m *mockLogger) With(fields ...zap.Field) domain.Logger {
	args := m.Called(fields)
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).(domain.Logger)
}

// newQuietLogger returns a mockLogger that tolerates any logging call and
// hands itself back from With. Most tests only care that logging never blows
// up; the few that assert on log calls build their own expectations.
func newQuietLogger() *mockLogger {
	l := new(mockLogger)
	l.On("With", mock.Anything).Return(l).Maybe()
	l.On("Info", mock.Anything, mock.AnythingOfType("string"), mock.Anything).Maybe()
	l.On("Warn", mock.Anything, mock.AnythingOfType("string"), mock.Anything).Maybe()
	l.On("Error", mock.Anything, mock.AnythingOfType("string"), mock.Anything).Maybe()
	l.On("Debug", mock.Anything, mock.AnythingOfType("string"), mock.Anything).Maybe()
	return l
}

// mockDedupStore
type mockDedupStore struct {
	mock.Mock
}

func (m *mockDedupStore) IsDuplicate(ctx context.Context, key domain.OutcomeKey, ttl time.Duration) (bool, error) {
	args := m.Called(ctx, key, ttl)
	return args.Bool(0), args.Error(1)
}

// mockPublisher
type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, subject string, data []byte) error {
	args := m.Called(ctx, subject, data)
	return args.Error(0)
}

// mockMetricsSink
type mockMetricsSink struct {
	mock.Mock
}

func (m *mockMetricsSink) IncTestsTotal(suite, result string) {
	m.Called(suite, result)
}
func (m *mockMetricsSink) ObserveTestDuration(suite string, duration time.Duration) {
	m.Called(suite, duration)
}
func (m *mockMetricsSink) IncAbortedSetups() {
	m.Called()
}
func (m *mockMetricsSink) IncContextRefreshes(result string) {
	m.Called(result)
}
func (m *mockMetricsSink) IncEventsPublished(subject, status string) {
	m.Called(subject, status)
}
func (m *mockMetricsSink) IncPublishErrors() {
	m.Called()
}
func (m *mockMetricsSink) IncDedupCheck(result string) {
	m.Called(result)
}
func (m *mockMetricsSink) IncOutcomesTotal(suite, result string) {
	m.Called(suite, result)
}

// mockCallContextFactory
type mockCallContextFactory struct {
	mock.Mock
}

func (m *mockCallContextFactory) CreateInternalTenantContext(ctx context.Context, accountID uuid.UUID, tenant domain.TenantContext) (*domain.InternalTenantContext, error) {
	args := m.Called(ctx, accountID, tenant)
	var itc *domain.InternalTenantContext
	if args.Get(0) != nil {
		itc = args.Get(0).(*domain.InternalTenantContext)
	}
	return itc, args.Error(1)
}

// mockAccountDirectory
type mockAccountDirectory struct {
	mock.Mock
}

func (m *mockAccountDirectory) Lookup(ctx context.Context, accountID uuid.UUID) (*domain.AccountRecord, error) {
	args := m.Called(ctx, accountID)
	var rec *domain.AccountRecord
	if args.Get(0) != nil {
		rec = args.Get(0).(*domain.AccountRecord)
	}
	return rec, args.Error(1)
}

// sequenceClock returns pre-programmed instants in order, then keeps
// repeating the last one. It stands in for the mutable test clock when a
// test needs distinct consecutive reads.
type sequenceClock struct {
	times []time.Time
	idx   int
}

func (c *sequenceClock) Now() time.Time {
	if len(c.times) == 0 {
		return time.Time{}
	}
	t := c.times[c.idx]
	if c.idx < len(c.times)-1 {
		c.idx++
	}
	return t
}

// fixedClock always returns the same instant.
type fixedClock struct {
	t time.Time
}

func (c *fixedClock) Now() time.Time {
	return c.t
}
