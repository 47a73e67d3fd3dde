package kernel

import "sync/atomic"

// Clock is the system's single source of simulated time: a monotonically
// increasing tick counter. It is also the source of LRU timestamps used by
// the memory manager's eviction policy.
type Clock struct {
	ticks uint64
}

// Now returns the current tick without advancing it.
func (c *Clock) Now() uint64 {
	return atomic.LoadUint64(&c.ticks)
}

// Advance increments the tick by exactly one and returns the new value.
// Only the scheduler may call this.
func (c *Clock) Advance() uint64 {
	return atomic.AddUint64(&c.ticks, 1)
}
