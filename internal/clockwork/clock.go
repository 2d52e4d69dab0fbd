// Package clockwork abstracts wall-clock time so session timing can run on a
// real ticker in production and a hand-stepped fake in tests.
package clockwork

import "time"

// Ticker delivers periodic ticks until stopped.
type Ticker interface {
	Chan() <-chan time.Time
	Stop()
}

// Clock is the time source injected into every timing-sensitive component.
type Clock interface {
	Now() time.Time
	NewTicker(d time.Duration) Ticker
	// Sleep blocks for d or until done is closed, whichever comes first.
	// Returns false if interrupted.
	Sleep(d time.Duration, done <-chan struct{}) bool
}

// Real is the production Clock backed by the time package.
type Real struct{}

// NewReal returns the wall-clock implementation.
func NewReal() *Real { return &Real{} }

func (*Real) Now() time.Time { return time.Now() }

func (*Real) NewTicker(d time.Duration) Ticker {
	return &realTicker{t: time.NewTicker(d)}
}

func (*Real) Sleep(d time.Duration, done <-chan struct{}) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-done:
		return false
	}
}

type realTicker struct {
	t *time.Ticker
}

func (rt *realTicker) Chan() <-chan time.Time { return rt.t.C }
func (rt *realTicker) Stop()                  { rt.t.Stop() }
