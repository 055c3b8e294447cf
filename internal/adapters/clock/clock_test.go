package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWallClock_ReturnsUTC(t *testing.T) {
	c := NewWallClock()
	now := c.Now()
	assert.Equal(t, time.UTC, now.Location())
	assert.WithinDuration(t, time.Now().UTC(), now, time.Second)
}

func TestMockClock_TracksWallUntilPinned(t *testing.T) {
	c := NewMockClock()
	assert.WithinDuration(t, time.Now().UTC(), c.Now(), time.Second)
}

func TestMockClock_SetTimePins(t *testing.T) {
	c := NewMockClock()
	pinned := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)

	c.SetTime(pinned)
	assert.Equal(t, pinned, c.Now())
	assert.Equal(t, pinned, c.Now(), "a pinned clock never drifts")
}

func TestMockClock_SetTimeClearsDelta(t *testing.T) {
	c := NewMockClock()
	c.AddDelta(3 * time.Hour)

	pinned := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	c.SetTime(pinned)
	assert.Equal(t, pinned, c.Now())
}

func TestMockClock_AddDeltaWhilePinned(t *testing.T) {
	c := NewMockClock()
	pinned := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	c.SetTime(pinned)

	c.AddDelta(90 * time.Minute)
	assert.Equal(t, pinned.Add(90*time.Minute), c.Now())

	c.AddDelta(30 * time.Minute)
	assert.Equal(t, pinned.Add(2*time.Hour), c.Now(), "deltas accumulate")
}

func TestMockClock_AddDays(t *testing.T) {
	c := NewMockClock()
	pinned := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	c.SetTime(pinned)

	c.AddDays(31)
	assert.Equal(t, time.Date(2026, 5, 2, 0, 0, 0, 0, time.UTC), c.Now())
}

func TestMockClock_AddDeltaWhileLive(t *testing.T) {
	c := NewMockClock()
	c.AddDelta(24 * time.Hour)
	assert.WithinDuration(t, time.Now().UTC().Add(24*time.Hour), c.Now(), time.Second)
}

func TestMockClock_ResetReturnsToWall(t *testing.T) {
	c := NewMockClock()
	c.SetTime(time.Date(1999, 1, 1, 0, 0, 0, 0, time.UTC))
	c.AddDelta(time.Hour)

	c.Reset()
	assert.WithinDuration(t, time.Now().UTC(), c.Now(), time.Second)
}

func TestMockClock_AlwaysUTC(t *testing.T) {
	c := NewMockClock()
	nyc := time.FixedZone("-05:00", -5*3600)
	c.SetTime(time.Date(2026, 4, 1, 12, 0, 0, 0, nyc))
	assert.Equal(t, time.UTC, c.Now().Location())
}
