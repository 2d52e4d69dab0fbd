package engine

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/stemsi/exam-engine/internal/clockwork"
)

// SessionClock is the single source of truth for time remaining in one
// attempt. It ticks on a fixed one-second period while the session is active
// and signals expiry exactly once when it reaches zero.
//
// Only one ticking loop may be live at a time: Start while running is a no-op.
type SessionClock struct {
	clock clockwork.Clock
	log   zerolog.Logger

	mu        sync.Mutex
	running   bool
	remaining int
	stopCh    chan struct{}

	onTick   func(remaining int)
	onExpire func()
}

// NewSessionClock creates a stopped clock. onTick fires after every decrement
// with the new remaining value; onExpire fires once when the clock hits zero.
func NewSessionClock(clock clockwork.Clock, log zerolog.Logger, onTick func(remaining int), onExpire func()) *SessionClock {
	return &SessionClock{
		clock:    clock,
		log:      log.With().Str("component", "session_clock").Logger(),
		onTick:   onTick,
		onExpire: onExpire,
	}
}

// Start begins ticking from initialSeconds. Starting an already running clock
// does nothing; the re-entrancy guard keeps a single live timer instance.
// An initial value of zero or less triggers expiry immediately.
func (c *SessionClock) Start(initialSeconds int) {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		c.log.Debug().Msg("Start ignored: clock already running")
		return
	}
	c.remaining = initialSeconds
	if initialSeconds <= 0 {
		c.remaining = 0
		c.mu.Unlock()
		c.onExpire()
		return
	}
	c.running = true
	c.stopCh = make(chan struct{})
	stopCh := c.stopCh
	c.mu.Unlock()

	c.log.Info().Int("initial_seconds", initialSeconds).Msg("Clock started")
	// The ticker must register with the clock before Start returns so that a
	// caller advancing a fake clock immediately afterwards cannot outrun it.
	ticker := c.clock.NewTicker(time.Second)
	go c.run(ticker, stopCh)
}

// Stop halts the ticking loop. Safe to call when already stopped.
func (c *SessionClock) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.running = false
	close(c.stopCh)
	c.mu.Unlock()
	c.log.Info().Msg("Clock stopped")
}

// Remaining returns the current seconds left.
func (c *SessionClock) Remaining() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remaining
}

// Running reports whether a ticking loop is live.
func (c *SessionClock) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

func (c *SessionClock) run(ticker clockwork.Ticker, stopCh chan struct{}) {
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.Chan():
			c.mu.Lock()
			if !c.running {
				c.mu.Unlock()
				return
			}
			c.remaining--
			r := c.remaining
			if r <= 0 {
				c.remaining = 0
				c.running = false
			}
			c.mu.Unlock()

			// Callbacks run outside the clock lock: they take the session
			// lock and the session may call back into Stop.
			c.onTick(r)
			if r <= 0 {
				c.onExpire()
				return
			}
		}
	}
}
