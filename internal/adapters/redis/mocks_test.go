package redis

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
	"gitlab.com/timkado/api/daisi-billing-testkit/internal/domain"
	"go.uber.org/zap"
)

// nopLogger satisfies domain.Logger; the adapter tests don't assert on logs.
type nopLogger struct{}

func (nopLogger) Info(ctx context.Context, msg string, fields ...zap.Field)  {}
func (nopLogger) Warn(ctx context.Context, msg string, fields ...zap.Field)  {}
func (nopLogger) Error(ctx context.Context, msg string, fields ...zap.Field) {}
func (nopLogger) Debug(ctx context.Context, msg string, fields ...zap.Field) {}
func (n nopLogger) With(fields ...zap.Field) domain.Logger                   { return n }

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
