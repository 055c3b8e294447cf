package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"gitlab.com/timkado/api/daisi-billing-testkit/internal/domain"
	"go.uber.org/zap"
)

const (
	dedupKeyPrefix = "seen:" // seen:{run_id}:{suite}:{test_name}
)

// DedupStore implements the domain.DedupStore interface using Redis.
// The reporter uses it so redelivered outcome events are counted once.
type DedupStore struct {
	logger      domain.Logger
	metricsSink domain.MetricsSink
	redisClient *redis.Client
}

// NewDedupStore creates a Redis-based outcome deduplication store over an
// existing shared Redis client.
func NewDedupStore(log domain.Logger, metrics domain.MetricsSink, client *redis.Client) (*DedupStore, error) {
	logger := log.With(zap.String("component", "redis_dedup_store"))

	if client == nil {
		logger.Error(context.Background(), "Redis client is nil for dedup store")
		return nil, fmt.Errorf("redis client is nil for dedup store")
	}

	return &DedupStore{
		logger:      logger,
		metricsSink: metrics,
		redisClient: client,
	}, nil
}

// IsDuplicate checks if the given outcome key has been seen within the
// specified TTL. It uses Redis SETNX for atomicity.
func (s *DedupStore) IsDuplicate(ctx context.Context, key domain.OutcomeKey, ttl time.Duration) (bool, error) {
	redisKey := dedupKeyPrefix + string(key)
	s.logger.Debug(ctx, "Checking for duplicate outcome in Redis",
		zap.String("redis_key", redisKey),
		zap.Duration("ttl", ttl),
	)

	// SETNX returns true if the key was set (new outcome),
	// false if the key already existed (duplicate).
	wasSet, err := s.redisClient.SetNX(ctx, redisKey, "", ttl).Result()
	if err != nil {
		s.logger.Error(ctx, "Redis SETNX failed", zap.Error(err), zap.String("key", redisKey))
		redisSpecificError := fmt.Errorf("redis SETNX for key '%s' failed: %w", redisKey, err)
		return false, domain.NewErrExternalService("Redis_dedup", redisSpecificError)
	}

	isDuplicate := !wasSet
	if isDuplicate {
		s.metricsSink.IncDedupCheck("hit")
		s.logger.Info(ctx, "Outcome determined to be a duplicate", zap.String("redis_key", redisKey))
	} else {
		s.metricsSink.IncDedupCheck("miss")
		s.logger.Debug(ctx, "Outcome determined to be new", zap.String("redis_key", redisKey))
	}
	return isDuplicate, nil
}
