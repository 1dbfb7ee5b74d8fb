package rollcycle

import (
	"sync"
	"time"
)

// Clock supplies the current time in milliseconds. It is injected so tests
// and replay tooling can drive rolls deterministically.
type Clock interface {
	NowMillis() int64
}

// SystemClock reads the wall clock.
type SystemClock struct{}

// NowMillis implements Clock.
func (SystemClock) NowMillis() int64 { return time.Now().UnixMilli() }

// ManualClock is a Clock under test control.
type ManualClock struct {
	mu sync.Mutex
	ms int64
}

// NewManualClock starts a manual clock at the given instant.
func NewManualClock(ms int64) *ManualClock { return &ManualClock{ms: ms} }

// NowMillis implements Clock.
func (c *ManualClock) NowMillis() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ms
}

// Set moves the clock to an absolute instant.
func (c *ManualClock) Set(ms int64) {
	c.mu.Lock()
	c.ms = ms
	c.mu.Unlock()
}

// Advance moves the clock forward.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.ms += d.Milliseconds()
	c.mu.Unlock()
}

// CycleAt resolves which cycle an instant falls into for a policy and epoch.
// Appenders use it to decide whether to roll; tailers use it to decide
// whether a read past end-of-segment should probe for a newer segment.
func CycleAt(nowMillis, epochMillis int64, p Policy) int64 {
	d := nowMillis - epochMillis
	c := d / p.lengthMillis
	// Floor, not truncate: instants before the epoch land in negative
	// cycles instead of aliasing to cycle 0.
	if d%p.lengthMillis < 0 {
		c--
	}
	return c
}
