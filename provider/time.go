package provider

import "time"

// Clock supplies the provider's notion of "now" in unix seconds.
// Mined block timestamps derive from it plus the session offset.
type Clock interface {
	Now() uint64
}

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() uint64 { return uint64(time.Now().Unix()) }

// MockClock is a settable clock for deterministic sessions and tests.
type MockClock struct {
	now uint64
}

// NewMockClock starts at the given unix time.
func NewMockClock(now uint64) *MockClock {
	return &MockClock{now: now}
}

func (c *MockClock) Now() uint64 { return c.now }

// Set jumps the clock to the given unix time.
func (c *MockClock) Set(now uint64) { c.now = now }

// Advance moves the clock forward.
func (c *MockClock) Advance(seconds uint64) { c.now += seconds }
