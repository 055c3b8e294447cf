package application

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"gitlab.com/timkado/api/daisi-billing-testkit/internal/adapters/config"
	"gitlab.com/timkado/api/daisi-billing-testkit/internal/domain"
)

func validReportBytes(t *testing.T) ([]byte, *domain.OutcomeReport) {
	t.Helper()
	report := &domain.OutcomeReport{
		RunID:          "run-1",
		Suite:          "invoice",
		TestName:       "testCreateInvoice",
		Status:         int(domain.StatusSuccess),
		Tag:            domain.TagSuccess,
		ElapsedSeconds: 2,
		StartMillis:    10_000,
		EndMillis:      12_500,
	}
	data, err := json.Marshal(report)
	assert.NoError(t, err)
	return data, report
}

func TestCollector_HandleOutcomeEvent_HappyPath(t *testing.T) {
	mockCfg := new(mockConfigProvider)
	mockDedup := new(mockDedupStore)
	mockMetrics := new(mockMetricsSink)
	mockMsg := new(mockOutcomeMessage)

	data, report := validReportBytes(t)
	mockMsg.data = data
	mockMsg.subject = "testrun.run-1.invoice.success"
	mockMsg.On("GetData").Return(nil)
	mockMsg.On("GetSubject").Return(nil)
	mockMsg.On("Ack").Return(nil)

	mockCfg.On("GetDuration", config.KeyDedupTTL).Return(24 * time.Hour)
	mockDedup.On("IsDuplicate", mock.Anything, report.Key(), 24*time.Hour).Return(false, nil)
	mockMetrics.On("IncOutcomesTotal", "invoice", "success").Return()
	mockMetrics.On("ObserveTestDuration", "invoice", 2500*time.Millisecond).Return()

	collector := NewCollector(mockCfg, newQuietLogger(), mockDedup, mockMetrics)

	err := collector.HandleOutcomeEvent(context.Background(), mockMsg)
	assert.NoError(t, err)
	mockDedup.AssertExpectations(t)
	mockMetrics.AssertExpectations(t)
	mockMsg.AssertExpectations(t)
}

func TestCollector_HandleOutcomeEvent_InvalidSubject(t *testing.T) {
	mockCfg := new(mockConfigProvider)
	mockDedup := new(mockDedupStore)
	mockMetrics := new(mockMetricsSink)
	mockMsg := new(mockOutcomeMessage)

	mockMsg.subject = "testrun.run-1.invoice" // missing the result token
	mockMsg.On("GetSubject").Return(nil)
	mockMsg.On("Ack").Return(nil)
	mockMetrics.On("IncOutcomesTotal", "unknown_subject_format", "error").Return()

	collector := NewCollector(mockCfg, newQuietLogger(), mockDedup, mockMetrics)

	err := collector.HandleOutcomeEvent(context.Background(), mockMsg)
	assert.Error(t, err)
	mockMsg.AssertCalled(t, "Ack")
	mockDedup.AssertNotCalled(t, "IsDuplicate")
}

func TestCollector_HandleOutcomeEvent_UnmarshalErrorIsAcked(t *testing.T) {
	mockCfg := new(mockConfigProvider)
	mockDedup := new(mockDedupStore)
	mockMetrics := new(mockMetricsSink)
	mockMsg := new(mockOutcomeMessage)

	mockMsg.data = []byte("{not json")
	mockMsg.subject = "testrun.run-1.invoice.success"
	mockMsg.On("GetData").Return(nil)
	mockMsg.On("GetSubject").Return(nil)
	mockMsg.On("Ack").Return(nil)
	mockMetrics.On("IncOutcomesTotal", "invoice", "unmarshal_error").Return()

	collector := NewCollector(mockCfg, newQuietLogger(), mockDedup, mockMetrics)

	err := collector.HandleOutcomeEvent(context.Background(), mockMsg)
	assert.NoError(t, err, "bad payloads are dropped, not redelivered")
	mockMsg.AssertCalled(t, "Ack")
	mockDedup.AssertNotCalled(t, "IsDuplicate")
}

func TestCollector_HandleOutcomeEvent_DuplicateIsAckedAndNotCounted(t *testing.T) {
	mockCfg := new(mockConfigProvider)
	mockDedup := new(mockDedupStore)
	mockMetrics := new(mockMetricsSink)
	mockMsg := new(mockOutcomeMessage)

	data, report := validReportBytes(t)
	mockMsg.data = data
	mockMsg.subject = "testrun.run-1.invoice.success"
	mockMsg.On("GetData").Return(nil)
	mockMsg.On("GetSubject").Return(nil)
	mockMsg.On("Ack").Return(nil)

	mockCfg.On("GetDuration", config.KeyDedupTTL).Return(24 * time.Hour)
	mockDedup.On("IsDuplicate", mock.Anything, report.Key(), 24*time.Hour).Return(true, nil)

	collector := NewCollector(mockCfg, newQuietLogger(), mockDedup, mockMetrics)

	err := collector.HandleOutcomeEvent(context.Background(), mockMsg)
	assert.NoError(t, err)
	mockMsg.AssertCalled(t, "Ack")
	mockMetrics.AssertNotCalled(t, "IncOutcomesTotal")
}

func TestCollector_HandleOutcomeEvent_DedupStoreErrorNacks(t *testing.T) {
	mockCfg := new(mockConfigProvider)
	mockDedup := new(mockDedupStore)
	mockMetrics := new(mockMetricsSink)
	mockMsg := new(mockOutcomeMessage)

	data, report := validReportBytes(t)
	mockMsg.data = data
	mockMsg.subject = "testrun.run-1.invoice.success"
	mockMsg.On("GetData").Return(nil)
	mockMsg.On("GetSubject").Return(nil)
	mockMsg.On("Nack", time.Duration(0)).Return(nil)

	storeErr := domain.NewErrExternalService("Redis_dedup", assert.AnError)
	mockCfg.On("GetDuration", config.KeyDedupTTL).Return(24 * time.Hour)
	mockDedup.On("IsDuplicate", mock.Anything, report.Key(), 24*time.Hour).Return(false, storeErr)

	collector := NewCollector(mockCfg, newQuietLogger(), mockDedup, mockMetrics)

	err := collector.HandleOutcomeEvent(context.Background(), mockMsg)
	assert.Error(t, err)
	mockMsg.AssertCalled(t, "Nack", time.Duration(0))
	mockMsg.AssertNotCalled(t, "Ack")
	mockMetrics.AssertNotCalled(t, "IncOutcomesTotal")
}

func TestCollector_HandleOutcomeEvent_PayloadStatusWins(t *testing.T) {
	mockCfg := new(mockConfigProvider)
	mockDedup := new(mockDedupStore)
	mockMetrics := new(mockMetricsSink)
	mockMsg := new(mockOutcomeMessage)

	data, report := validReportBytes(t) // payload says success
	mockMsg.data = data
	mockMsg.subject = "testrun.run-1.invoice.failure" // subject disagrees
	mockMsg.On("GetData").Return(nil)
	mockMsg.On("GetSubject").Return(nil)
	mockMsg.On("Ack").Return(nil)

	mockCfg.On("GetDuration", config.KeyDedupTTL).Return(24 * time.Hour)
	mockDedup.On("IsDuplicate", mock.Anything, report.Key(), 24*time.Hour).Return(false, nil)
	mockMetrics.On("IncOutcomesTotal", "invoice", "success").Return()
	mockMetrics.On("ObserveTestDuration", "invoice", mock.Anything).Return()

	collector := NewCollector(mockCfg, newQuietLogger(), mockDedup, mockMetrics)

	err := collector.HandleOutcomeEvent(context.Background(), mockMsg)
	assert.NoError(t, err)
	mockMetrics.AssertExpectations(t)
}

func TestParseOutcomeSubject(t *testing.T) {
	tests := []struct {
		name      string
		subject   string
		wantValid bool
		wantRunID string
		wantSuite string
	}{
		{"valid subject", "testrun.run-1.invoice.success", true, "run-1", "invoice"},
		{"wrong prefix", "cdc.run-1.invoice.success", false, "", ""},
		{"too few parts", "testrun.run-1.invoice", false, "", ""},
		{"too many parts", "testrun.run-1.invoice.success.extra", false, "", ""},
		{"empty run id", "testrun..invoice.success", false, "", ""},
		{"empty suite", "testrun.run-1..success", false, "", ""},
		{"empty result", "testrun.run-1.invoice.", false, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parsed := parseOutcomeSubject(tt.subject)
			assert.Equal(t, tt.wantValid, parsed.IsValid)
			if tt.wantValid {
				assert.Equal(t, tt.wantRunID, parsed.RunID)
				assert.Equal(t, tt.wantSuite, parsed.Suite)
			}
		})
	}
}
