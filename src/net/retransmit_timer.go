package net

import (
	"sync"
	"time"
)

type timerFactory func(time.Duration) <-chan time.Time

// RetransmitTimer drives the retransmissions of a Connection. It ticks at a
// fixed interval for as long as the tick function returns true, and goes idle
// otherwise until it is armed again.
type RetransmitTimer struct {
	timerFactory timerFactory
	interval     time.Duration
	tick         func() bool   //retransmits, reports whether anything remains unacked
	busy         func() bool   //reports whether messages are waiting for an ack
	resetCh      chan struct{} //receives instruction to arm the timer
	stopCh       chan struct{} //receives instruction to stop the timer
	shutdownCh   chan struct{} //receives instruction to exit Run loop
	shutdownOnce sync.Once
}

// NewRetransmitTimer ...
func NewRetransmitTimer(timerFactory timerFactory,
	interval time.Duration,
	tick func() bool,
	busy func() bool) *RetransmitTimer {

	return &RetransmitTimer{
		timerFactory: timerFactory,
		interval:     interval,
		tick:         tick,
		busy:         busy,
		resetCh:      make(chan struct{}, 1),
		stopCh:       make(chan struct{}, 1),
		shutdownCh:   make(chan struct{}),
	}
}

// Run ...
func (c *RetransmitTimer) Run() {
	var timer <-chan time.Time

	for {
		select {
		case <-timer:
			if c.tick() {
				timer = c.timerFactory(c.interval)
			} else {
				timer = nil
			}
		case <-c.resetCh:
			if timer == nil {
				timer = c.timerFactory(c.interval)
			}
		case <-c.stopCh:
			if !c.busy() {
				timer = nil
			}
		case <-c.shutdownCh:
			return
		}
	}
}

// Arm starts the timer if it is idle. It never blocks.
func (c *RetransmitTimer) Arm() {
	select {
	case c.resetCh <- struct{}{}:
	default:
	}
}

// Stop puts the timer to rest unless messages are still waiting for an ack.
// It never blocks.
func (c *RetransmitTimer) Stop() {
	select {
	case c.stopCh <- struct{}{}:
	default:
	}
}

// Shutdown ...
func (c *RetransmitTimer) Shutdown() {
	c.shutdownOnce.Do(func() {
		close(c.shutdownCh)
	})
}
