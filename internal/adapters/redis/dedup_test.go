package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/timkado/api/daisi-billing-testkit/internal/domain"
)

func TestDedupStore_FirstSeenThenDuplicate(t *testing.T) {
	_, client := newTestRedisClient(t)

	metrics := new(mockMetricsSink)
	metrics.On("IncDedupCheck", "miss").Return().Once()
	metrics.On("IncDedupCheck", "hit").Return().Once()

	store, err := NewDedupStore(nopLogger{}, metrics, client)
	require.NoError(t, err)

	key := domain.OutcomeKey("run-1:invoice:testCreateInvoice")

	dup, err := store.IsDuplicate(context.Background(), key, time.Hour)
	require.NoError(t, err)
	assert.False(t, dup)

	dup, err = store.IsDuplicate(context.Background(), key, time.Hour)
	require.NoError(t, err)
	assert.True(t, dup)

	metrics.AssertExpectations(t)
}

func TestDedupStore_KeyExpires(t *testing.T) {
	mr, client := newTestRedisClient(t)

	metrics := new(mockMetricsSink)
	metrics.On("IncDedupCheck", "miss").Return().Twice()

	store, err := NewDedupStore(nopLogger{}, metrics, client)
	require.NoError(t, err)

	key := domain.OutcomeKey("run-1:invoice:testRepairInvoice")

	dup, err := store.IsDuplicate(context.Background(), key, time.Minute)
	require.NoError(t, err)
	assert.False(t, dup)

	mr.FastForward(2 * time.Minute)

	dup, err = store.IsDuplicate(context.Background(), key, time.Minute)
	require.NoError(t, err)
	assert.False(t, dup, "an expired key is a fresh outcome again")

	metrics.AssertExpectations(t)
}

func TestDedupStore_DistinctKeysAreIndependent(t *testing.T) {
	_, client := newTestRedisClient(t)

	metrics := new(mockMetricsSink)
	metrics.On("IncDedupCheck", "miss").Return().Twice()

	store, err := NewDedupStore(nopLogger{}, metrics, client)
	require.NoError(t, err)

	dup, err := store.IsDuplicate(context.Background(), domain.OutcomeKey("run-1:invoice:a"), time.Hour)
	require.NoError(t, err)
	assert.False(t, dup)

	dup, err = store.IsDuplicate(context.Background(), domain.OutcomeKey("run-1:invoice:b"), time.Hour)
	require.NoError(t, err)
	assert.False(t, dup)
}

func TestNewDedupStore_NilClient(t *testing.T) {
	_, err := NewDedupStore(nopLogger{}, new(mockMetricsSink), nil)
	assert.Error(t, err)
}
