package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"gitlab.com/timkado/api/daisi-billing-testkit/internal/domain"
	"go.uber.org/zap"
)

const (
	accountKeyPrefix = "account:" // account:{account_id} -> hash of fixture fields

	fieldRecordID      = "record_id"
	fieldTimeZone      = "time_zone"
	fieldReferenceTime = "reference_time"
)

// AccountDirectory implements the domain.AccountDirectory interface using
// Redis hashes. The test-database helper seeds one hash per account; the
// call-context factory resolves accounts against it.
type AccountDirectory struct {
	logger      domain.Logger
	redisClient *redis.Client
}

// NewAccountDirectory creates a directory over an existing shared Redis client.
func NewAccountDirectory(log domain.Logger, client *redis.Client) (*AccountDirectory, error) {
	logger := log.With(zap.String("component", "redis_account_directory"))

	if client == nil {
		logger.Error(context.Background(), "Redis client is nil for account directory")
		return nil, fmt.Errorf("redis client is nil for account directory")
	}

	return &AccountDirectory{
		logger:      logger,
		redisClient: client,
	}, nil
}

// Lookup resolves an account fixture. A missing hash means the account was
// never seeded and surfaces domain.ErrAccountNotResolved; the refresher
// propagates that to the failing test uncaught.
func (d *AccountDirectory) Lookup(ctx context.Context, accountID uuid.UUID) (*domain.AccountRecord, error) {
	redisKey := accountKeyPrefix + accountID.String()
	d.logger.Debug(ctx, "Resolving account fixture in Redis", zap.String("redis_key", redisKey))

	fields, err := d.redisClient.HGetAll(ctx, redisKey).Result()
	if err != nil {
		d.logger.Error(ctx, "Redis HGETALL failed", zap.Error(err), zap.String("key", redisKey))
		redisSpecificError := fmt.Errorf("redis HGETALL for key '%s' failed: %w", redisKey, err)
		return nil, domain.NewErrExternalService("Redis_account_directory", redisSpecificError)
	}
	if len(fields) == 0 {
		d.logger.Error(ctx, "Account fixture not found", zap.String("account_id", accountID.String()))
		return nil, fmt.Errorf("account %s: %w", accountID, domain.ErrAccountNotResolved)
	}

	recordID, err := strconv.ParseInt(fields[fieldRecordID], 10, 64)
	if err != nil {
		return nil, domain.NewErrDataProcessing("parse_account_record_id", "", fmt.Errorf("account %s: %w", accountID, err))
	}
	referenceTime, err := time.Parse(time.RFC3339, fields[fieldReferenceTime])
	if err != nil {
		return nil, domain.NewErrDataProcessing("parse_account_reference_time", "", fmt.Errorf("account %s: %w", accountID, err))
	}

	return &domain.AccountRecord{
		RecordID:      recordID,
		TimeZone:      fields[fieldTimeZone],
		ReferenceTime: referenceTime,
	}, nil
}

// SeedAccount writes an account fixture. Intended for the test-database
// helper that prepares the run's fixtures.
func (d *AccountDirectory) SeedAccount(ctx context.Context, accountID uuid.UUID, record domain.AccountRecord) error {
	redisKey := accountKeyPrefix + accountID.String()
	err := d.redisClient.HSet(ctx, redisKey,
		fieldRecordID, strconv.FormatInt(record.RecordID, 10),
		fieldTimeZone, record.TimeZone,
		fieldReferenceTime, record.ReferenceTime.UTC().Format(time.RFC3339),
	).Err()
	if err != nil {
		d.logger.Error(ctx, "Redis HSET failed while seeding account fixture", zap.Error(err), zap.String("key", redisKey))
		return domain.NewErrExternalService("Redis_account_directory", fmt.Errorf("redis HSET for key '%s' failed: %w", redisKey, err))
	}
	d.logger.Info(ctx, "Account fixture seeded", zap.String("account_id", accountID.String()), zap.Int64("record_id", record.RecordID))
	return nil
}
