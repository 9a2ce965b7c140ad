package common

import "sync/atomic"

// LamportClock is a logical clock. It is incremented before every local event
// or message send, and fast-forwarded past the timestamp of every received
// message.
type LamportClock struct {
	value uint64
}

// NewLamportClock returns a clock starting at the given time.
func NewLamportClock(initial uint64) *LamportClock {
	return &LamportClock{value: initial}
}

// Increment advances the clock by one and returns the new value.
func (c *LamportClock) Increment() uint64 {
	return atomic.AddUint64(&c.value, 1)
}

// Update sets the clock to max(local, received)+1 and returns the new value.
func (c *LamportClock) Update(received uint64) uint64 {
	for {
		cur := atomic.LoadUint64(&c.value)
		next := cur
		if received > next {
			next = received
		}
		next++
		if atomic.CompareAndSwapUint64(&c.value, cur, next) {
			return next
		}
	}
}

// Value returns the current time without advancing it.
func (c *LamportClock) Value() uint64 {
	return atomic.LoadUint64(&c.value)
}
