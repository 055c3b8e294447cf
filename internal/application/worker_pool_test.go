package application

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"gitlab.com/timkado/api/daisi-billing-testkit/internal/adapters/config"
	"gitlab.com/timkado/api/daisi-billing-testkit/internal/domain"
)

func TestNewWorkerPool_SizingLogic(t *testing.T) {
	tests := []struct {
		name            string
		maxProcs        int
		setupMockConfig func(mockCfg *mockConfigProvider)
		expectedSize    int
	}{
		{
			name:     "Absolute override for pool size",
			maxProcs: 4,
			setupMockConfig: func(mockCfg *mockConfigProvider) {
				mockCfg.On("GetInt", config.KeyWorkers).Return(10).Once()
				mockCfg.On("GetInt", config.KeyWorkersMultiplier).Return(0).Maybe()
				mockCfg.On("GetInt", config.KeyMinWorkers).Return(0).Maybe()
			},
			expectedSize: 10,
		},
		{
			name:     "Multiplier used when absolute size is zero or not set",
			maxProcs: 3,
			setupMockConfig: func(mockCfg *mockConfigProvider) {
				mockCfg.On("GetInt", config.KeyWorkers).Return(0).Once()
				mockCfg.On("GetInt", config.KeyWorkersMultiplier).Return(2).Once()
				mockCfg.On("GetInt", config.KeyMinWorkers).Return(1).Once()
			},
			expectedSize: 3 * 2,
		},
		{
			name:     "Min workers applied if multiplier result is too low",
			maxProcs: 2,
			setupMockConfig: func(mockCfg *mockConfigProvider) {
				mockCfg.On("GetInt", config.KeyWorkers).Return(0).Once()
				mockCfg.On("GetInt", config.KeyWorkersMultiplier).Return(1).Once()
				mockCfg.On("GetInt", config.KeyMinWorkers).Return(7).Once()
			},
			expectedSize: 7,
		},
		{
			name:     "Fallback multiplier used when configured multiplier is non-positive",
			maxProcs: 4,
			setupMockConfig: func(mockCfg *mockConfigProvider) {
				mockCfg.On("GetInt", config.KeyWorkers).Return(0).Once()
				mockCfg.On("GetInt", config.KeyWorkersMultiplier).Return(-1).Once()
				mockCfg.On("GetInt", config.KeyMinWorkers).Return(3).Once()
			},
			expectedSize: 4, // GOMAXPROCS * fallback multiplier 1
		},
		{
			name:     "Default min workers when every config is zero",
			maxProcs: 1,
			setupMockConfig: func(mockCfg *mockConfigProvider) {
				mockCfg.On("GetInt", config.KeyWorkers).Return(0).Once()
				mockCfg.On("GetInt", config.KeyWorkersMultiplier).Return(0).Once()
				mockCfg.On("GetInt", config.KeyMinWorkers).Return(0).Once()
			},
			expectedSize: 2, // fallback minimum
		},
		{
			name:     "Negative absolute override falls through to multiplier logic",
			maxProcs: 2,
			setupMockConfig: func(mockCfg *mockConfigProvider) {
				mockCfg.On("GetInt", config.KeyWorkers).Return(-5).Once()
				mockCfg.On("GetInt", config.KeyWorkersMultiplier).Return(4).Once()
				mockCfg.On("GetInt", config.KeyMinWorkers).Return(0).Once()
			},
			expectedSize: 8,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockCfg := new(mockConfigProvider)

			orig := getMaxProcs
			getMaxProcs = func() int { return tt.maxProcs }
			defer func() { getMaxProcs = orig }()

			tt.setupMockConfig(mockCfg)

			pool, err := NewWorkerPool(mockCfg, newQuietLogger())
			assert.NoError(t, err)
			if assert.NotNil(t, pool) {
				assert.Equal(t, tt.expectedSize, pool.Cap())
				pool.Release()
			}
			mockCfg.AssertExpectations(t)
		})
	}
}

func TestWorkerPool_SubmitRunsTask(t *testing.T) {
	mockCfg := new(mockConfigProvider)
	mockCfg.On("GetInt", config.KeyWorkers).Return(2).Once()
	mockCfg.On("GetInt", config.KeyWorkersMultiplier).Return(0).Maybe()
	mockCfg.On("GetInt", config.KeyMinWorkers).Return(0).Maybe()

	pool, err := NewWorkerPool(mockCfg, newQuietLogger())
	assert.NoError(t, err)

	var ran atomic.Int32
	for i := 0; i < 5; i++ {
		assert.NoError(t, pool.Submit(func() { ran.Add(1) }))
	}
	pool.Release() // waits for the submitted tasks

	assert.Equal(t, int32(5), ran.Load())
}

func TestWorkerPool_SubmitAfterReleaseFails(t *testing.T) {
	mockCfg := new(mockConfigProvider)
	mockCfg.On("GetInt", config.KeyWorkers).Return(2).Once()
	mockCfg.On("GetInt", config.KeyWorkersMultiplier).Return(0).Maybe()
	mockCfg.On("GetInt", config.KeyMinWorkers).Return(0).Maybe()

	pool, err := NewWorkerPool(mockCfg, newQuietLogger())
	assert.NoError(t, err)
	pool.Release()

	err = pool.Submit(func() {})
	assert.ErrorIs(t, err, domain.ErrTaskSubmissionToPool)
}
