package clockwork

import (
	"runtime"
	"sync"
	"time"
)

// Fake is a deterministic Clock for tests. Time only moves when Advance is
// called; tickers fire synchronously during Advance.
type Fake struct {
	mu      sync.Mutex
	now     time.Time
	tickers []*fakeTicker
}

// NewFake returns a fake clock starting at the given instant.
func NewFake(start time.Time) *Fake {
	return &Fake{now: start}
}

func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *Fake) NewTicker(d time.Duration) Ticker {
	f.mu.Lock()
	defer f.mu.Unlock()
	ft := &fakeTicker{
		clock:  f,
		period: d,
		next:   f.now.Add(d),
		ch:     make(chan time.Time, 64),
	}
	f.tickers = append(f.tickers, ft)
	return ft
}

// Sleep on the fake clock never blocks; the inter-step delay is a no-op so
// tests run instantly. Interruption is still honored.
func (f *Fake) Sleep(d time.Duration, done <-chan struct{}) bool {
	select {
	case <-done:
		return false
	default:
	}
	f.Advance(d)
	return true
}

// Advance moves the clock forward, firing due tickers in order.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	target := f.now.Add(d)
	for {
		var earliest *fakeTicker
		for _, t := range f.tickers {
			if t.stopped {
				continue
			}
			if !t.next.After(target) && (earliest == nil || t.next.Before(earliest.next)) {
				earliest = t
			}
		}
		if earliest == nil {
			break
		}
		f.now = earliest.next
		earliest.next = earliest.next.Add(earliest.period)
		ch := earliest.ch
		at := f.now
		f.mu.Unlock()
		// Unlocked send so tick consumers may call back into the clock. The
		// send must not block forever: a consumer may exit with ticks still
		// owed, and its Stop only becomes visible after it returns. Retry
		// until the tick is delivered or the ticker is stopped.
		for delivered := false; !delivered; {
			select {
			case ch <- at:
				delivered = true
			default:
				f.mu.Lock()
				stopped := earliest.stopped
				f.mu.Unlock()
				if stopped {
					delivered = true // Drop the tick; nobody is listening.
				} else {
					runtime.Gosched()
				}
			}
		}
		f.mu.Lock()
	}
	f.now = target
	f.mu.Unlock()
}

type fakeTicker struct {
	clock   *Fake
	period  time.Duration
	next    time.Time
	ch      chan time.Time
	stopped bool
}

func (t *fakeTicker) Chan() <-chan time.Time { return t.ch }

func (t *fakeTicker) Stop() {
	t.clock.mu.Lock()
	t.stopped = true
	t.clock.mu.Unlock()
}
