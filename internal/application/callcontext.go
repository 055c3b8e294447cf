package application

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"gitlab.com/timkado/api/daisi-billing-testkit/internal/domain"
	"go.uber.org/zap"
)

// callContextFactory implements domain.CallContextFactory backed by the
// account directory seeded by the test-database helper.
type callContextFactory struct {
	logger    domain.Logger
	directory domain.AccountDirectory
}

// NewCallContextFactory creates the default call-context factory.
func NewCallContextFactory(log domain.Logger, directory domain.AccountDirectory) domain.CallContextFactory {
	return &callContextFactory{
		logger:    log.With(zap.String("component", "callcontext_factory")),
		directory: directory,
	}
}

// CreateInternalTenantContext resolves the account fixture and derives the
// account-scoped triple from it. Resolution failures are returned as-is:
// an unknown account during test setup is a defect, not a retryable condition.
func (f *callContextFactory) CreateInternalTenantContext(ctx context.Context, accountID uuid.UUID, tenant domain.TenantContext) (*domain.InternalTenantContext, error) {
	record, err := f.directory.Lookup(ctx, accountID)
	if err != nil {
		f.logger.Error(ctx, "Failed to resolve account for internal tenant context",
			zap.Error(err),
			zap.String("account_id", accountID.String()),
			zap.String("tenant_id", tenant.TenantID.String()),
		)
		return nil, err
	}

	loc, err := parseFixedOffset(record.TimeZone)
	if err != nil {
		return nil, domain.NewErrDataProcessing("parse_account_timezone", "", fmt.Errorf("account %s: %w", accountID, err))
	}

	return &domain.InternalTenantContext{
		AccountRecordID:     record.RecordID,
		FixedOffsetTimeZone: loc,
		ReferenceLocalTime:  record.ReferenceTime.In(loc),
	}, nil
}

// parseFixedOffset turns a fixture timezone name ("UTC", "+07:00", "-05:30")
// into a fixed-offset *time.Location.
func parseFixedOffset(name string) (*time.Location, error) {
	if name == "" || name == "UTC" {
		return time.UTC, nil
	}
	if len(name) == 6 && (name[0] == '+' || name[0] == '-') && name[3] == ':' {
		hours, errH := strconv.Atoi(name[1:3])
		minutes, errM := strconv.Atoi(name[4:6])
		if errH == nil && errM == nil {
			offset := hours*3600 + minutes*60
			if name[0] == '-' {
				offset = -offset
			}
			return time.FixedZone(name, offset), nil
		}
	}
	return nil, fmt.Errorf("unrecognized fixed-offset timezone %q", name)
}

// RefreshCallContext derives the account-scoped fields via the factory and
// overwrites them on the target context, stamping CreatedDate and UpdatedDate
// from two separate clock reads. Callers must tolerate a potential
// sub-instant skew between the two stamps when the clock is volatile.
//
// A factory resolution failure propagates to the caller uncaught; it is a
// test-setup fatal condition and is never retried.
func RefreshCallContext(
	ctx context.Context,
	accountID uuid.UUID,
	clk domain.Clock,
	factory domain.CallContextFactory,
	tenant domain.TenantContext,
	target *domain.MutableInternalCallContext,
) error {
	tmp, err := factory.CreateInternalTenantContext(ctx, accountID, tenant)
	if err != nil {
		return err
	}
	target.AccountRecordID = tmp.AccountRecordID
	target.FixedOffsetTimeZone = tmp.FixedOffsetTimeZone
	target.ReferenceLocalTime = tmp.ReferenceLocalTime
	target.CreatedDate = clk.Now()
	target.UpdatedDate = clk.Now()
	return nil
}
