package net

import (
	"math/rand"
	"sync"
	"time"
)

// ChaosConfig describes how a ChaosChannel degrades the datagrams that go
// through it. Probabilities are in [0..1].
type ChaosConfig struct {
	Loss      float64 // drop datagram
	Duplicate float64 // send a second copy
	Reorder   float64 // add extra delay to cause reordering

	BaseDelay time.Duration // fixed base latency
	Jitter    time.Duration // +/- jitter uniformly

	// Seed of the random source. If 0, uses time.Now().UnixNano()
	Seed int64
}

// ChaosChannel wraps a Channel and applies loss, duplication and reordering to
// outbound datagrams.
type ChaosChannel struct {
	under Channel

	cfgMu sync.RWMutex
	cfg   ChaosConfig

	rngMu sync.Mutex
	rng   *rand.Rand

	timersMu sync.Mutex
	timers   map[*time.Timer]struct{}
	closed   bool
}

// NewChaosChannel wraps under in a ChaosChannel.
func NewChaosChannel(under Channel, cfg ChaosConfig) *ChaosChannel {
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}
	cfg.Loss = clamp01(cfg.Loss)
	cfg.Duplicate = clamp01(cfg.Duplicate)
	cfg.Reorder = clamp01(cfg.Reorder)

	return &ChaosChannel{
		under:  under,
		cfg:    cfg,
		rng:    rand.New(rand.NewSource(cfg.Seed)),
		timers: make(map[*time.Timer]struct{}),
	}
}

// Consumer implements the Channel interface.
func (c *ChaosChannel) Consumer() <-chan []byte {
	return c.under.Consumer()
}

// LocalAddr implements the Channel interface.
func (c *ChaosChannel) LocalAddr() string {
	return c.under.LocalAddr()
}

// Send implements the Channel interface.
func (c *ChaosChannel) Send(target string, data []byte) error {
	c.timersMu.Lock()
	closed := c.closed
	c.timersMu.Unlock()
	if closed {
		return ErrChannelShutdown
	}

	cfg := c.GetConfig()

	if c.roll() < cfg.Loss {
		return nil
	}

	extra := time.Duration(0)
	if c.roll() < cfg.Reorder {
		extra = c.delayWithJitter(cfg) + cfg.BaseDelay + time.Millisecond
	}

	c.deliver(target, clone(data), c.delayWithJitter(cfg)+extra)

	if c.roll() < cfg.Duplicate {
		c.deliver(target, clone(data), c.delayWithJitter(cfg))
	}

	return nil
}

func (c *ChaosChannel) deliver(target string, data []byte, delay time.Duration) {
	if delay <= 0 {
		c.under.Send(target, data)
		return
	}

	c.timersMu.Lock()
	defer c.timersMu.Unlock()

	if c.closed {
		return
	}

	var t *time.Timer
	t = time.AfterFunc(delay, func() {
		c.timersMu.Lock()
		delete(c.timers, t)
		closed := c.closed
		c.timersMu.Unlock()

		if !closed {
			c.under.Send(target, data)
		}
	})
	c.timers[t] = struct{}{}
}

// Close stops pending delayed deliveries and closes the underlying channel.
func (c *ChaosChannel) Close() error {
	c.timersMu.Lock()
	c.closed = true
	for t := range c.timers {
		t.Stop()
	}
	c.timers = make(map[*time.Timer]struct{})
	c.timersMu.Unlock()

	return c.under.Close()
}

// SetLoss changes the loss probability.
func (c *ChaosChannel) SetLoss(p float64) {
	c.cfgMu.Lock()
	c.cfg.Loss = clamp01(p)
	c.cfgMu.Unlock()
}

// SetDuplicate changes the duplication probability.
func (c *ChaosChannel) SetDuplicate(p float64) {
	c.cfgMu.Lock()
	c.cfg.Duplicate = clamp01(p)
	c.cfgMu.Unlock()
}

// SetReorder changes the reordering probability.
func (c *ChaosChannel) SetReorder(p float64) {
	c.cfgMu.Lock()
	c.cfg.Reorder = clamp01(p)
	c.cfgMu.Unlock()
}

// SetBaseDelay changes the fixed latency.
func (c *ChaosChannel) SetBaseDelay(d time.Duration) {
	c.cfgMu.Lock()
	c.cfg.BaseDelay = d
	c.cfgMu.Unlock()
}

// SetJitter changes the latency jitter.
func (c *ChaosChannel) SetJitter(d time.Duration) {
	c.cfgMu.Lock()
	c.cfg.Jitter = d
	c.cfgMu.Unlock()
}

// GetConfig returns a copy of the current configuration.
func (c *ChaosChannel) GetConfig() ChaosConfig {
	c.cfgMu.RLock()
	defer c.cfgMu.RUnlock()
	return c.cfg
}

func (c *ChaosChannel) delayWithJitter(cfg ChaosConfig) time.Duration {
	if cfg.Jitter <= 0 {
		return cfg.BaseDelay
	}
	c.rngMu.Lock()
	defer c.rngMu.Unlock()
	// Uniform in [-Jitter, +Jitter]
	j := time.Duration(c.rng.Int63n(int64(cfg.Jitter)*2)) - cfg.Jitter
	return cfg.BaseDelay + j
}

func (c *ChaosChannel) roll() float64 {
	c.rngMu.Lock()
	x := c.rng.Float64()
	c.rngMu.Unlock()
	return x
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

func clone(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
