package core

import (
	"sync/atomic"
	"time"
)

// Clock is a monotonic nanosecond clock, seedable for deterministic tests.
// The default implementation wraps time.Now(); tests substitute a manual
// clock so scheduled timestamps are reproducible.
type Clock interface {
	NowNs() uint64
	Now() time.Time
}

// SystemClock reads the real wall clock.
type SystemClock struct{}

func (SystemClock) NowNs() uint64 { return uint64(time.Now().UnixNano()) }
func (SystemClock) Now() time.Time { return time.Now() }

// ManualClock is a fully deterministic clock for tests, advanced explicitly.
type ManualClock struct {
	ns atomic.Uint64
}

// NewManualClock returns a ManualClock starting at the given ns.
func NewManualClock(startNs uint64) *ManualClock {
	c := &ManualClock{}
	c.ns.Store(startNs)
	return c
}

func (c *ManualClock) NowNs() uint64 { return c.ns.Load() }
func (c *ManualClock) Now() time.Time { return time.Unix(0, int64(c.ns.Load())).UTC() }

// Advance moves the clock forward by d and returns the new timestamp.
func (c *ManualClock) Advance(d time.Duration) uint64 {
	return c.ns.Add(uint64(d.Nanoseconds()))
}

// IDGenerator hands out process-unique monotonically increasing IDs for
// parent orders, slices, and fills.
type IDGenerator struct {
	counter atomic.Uint64
}

// NewIDGenerator returns a generator whose first Next() is 1.
func NewIDGenerator() *IDGenerator {
	return &IDGenerator{}
}

// Next returns the next unique ID.
func (g *IDGenerator) Next() uint64 {
	return g.counter.Add(1)
}
