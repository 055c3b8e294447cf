package clock

import (
	"sync"
	"time"
)

// WallClock implements domain.Clock against the real system time.
// The reporter service uses it; tests use MockClock.
type WallClock struct{}

// NewWallClock creates a real time source.
func NewWallClock() *WallClock {
	return &WallClock{}
}

// Now returns the current wall time as a UTC instant.
func (c *WallClock) Now() time.Time {
	return time.Now().UTC()
}

// MockClock is a settable time source shared by every test in a run.
// Until a test pins or shifts it, it tracks the wall clock. Its lifetime
// spans the whole run; its value is test-controlled.
//
// The run model assumes sequential test execution; the mutex only protects
// against torn reads when helper goroutines (e.g. the report dispatcher)
// observe the clock.
type MockClock struct {
	mu     sync.Mutex
	pinned bool
	now    time.Time
	delta  time.Duration
}

// NewMockClock creates a mock clock tracking the wall clock with no offset.
func NewMockClock() *MockClock {
	return &MockClock{}
}

// Now returns the current mock instant in UTC.
func (c *MockClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pinned {
		return c.now.Add(c.delta).UTC()
	}
	return time.Now().Add(c.delta).UTC()
}

// SetTime pins the clock to the given instant and clears any accumulated delta.
func (c *MockClock) SetTime(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pinned = true
	c.now = t.UTC()
	c.delta = 0
}

// AddDelta advances the clock by d. It works both pinned and live.
func (c *MockClock) AddDelta(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.delta += d
}

// AddDays advances the clock by the given number of 24h days.
func (c *MockClock) AddDays(days int) {
	c.AddDelta(time.Duration(days) * 24 * time.Hour)
}

// Reset unpins the clock and drops any delta, returning to wall time.
// Called at run start so no state leaks between runs.
func (c *MockClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pinned = false
	c.now = time.Time{}
	c.delta = 0
}
