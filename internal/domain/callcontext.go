package domain

import (
	"time"

	"github.com/google/uuid"
)

// TenantContext is the immutable caller-facing context snapshot supplied by
// the surrounding test fixture. It is read-only input to the call-context
// refresher; nothing in this module ever mutates it.
type TenantContext struct {
	TenantID   uuid.UUID
	AccountID  uuid.UUID
	UserName   string
	CallOrigin string
	Comments   string
}

// InternalTenantContext is the account-scoped triple derived by a
// CallContextFactory: the account's record id, its fixed-offset timezone and
// its reference local time.
type InternalTenantContext struct {
	AccountRecordID     int64
	FixedOffsetTimeZone *time.Location
	ReferenceLocalTime  time.Time
}

// MutableInternalCallContext is the per-test execution context. It is owned
// exclusively by the currently running test, reset to its default state
// before each test and mutated only by the refresher.
type MutableInternalCallContext struct {
	AccountRecordID     int64
	FixedOffsetTimeZone *time.Location
	ReferenceLocalTime  time.Time
	CreatedDate         time.Time
	UpdatedDate         time.Time
}

// Reset restores the context to its default empty state, clearing any fields
// left behind by a previous test.
func (c *MutableInternalCallContext) Reset() {
	c.AccountRecordID = 0
	c.FixedOffsetTimeZone = time.UTC
	c.ReferenceLocalTime = time.Time{}
	c.CreatedDate = time.Time{}
	c.UpdatedDate = time.Time{}
}

// AccountRecord is the fixture row stored for an account in the account
// directory. TimeZone holds a fixed-offset name such as "-07:00" or "UTC".
type AccountRecord struct {
	RecordID      int64
	TimeZone      string
	ReferenceTime time.Time
}
