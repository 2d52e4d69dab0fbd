package judge

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/stemsi/exam-engine/internal/clockwork"
	"github.com/stemsi/exam-engine/internal/engine"
	"github.com/stemsi/exam-engine/internal/model"
)

// Options tunes the orchestrator's polling and retry behavior.
type Options struct {
	MaxPollAttempts int
	PollInterval    time.Duration
	RetryBackoff    time.Duration
}

// Orchestrator drives one execution from submission to terminal result.
//
// It is stateless except for the rate-limit latch: after the judge reports
// backpressure once, Submit fails fast with a RateLimited error instead of
// issuing further network calls, until Reset is called. The latch is scoped
// to one orchestrator instance, one per session, never process-wide.
type Orchestrator struct {
	client Client
	clock  clockwork.Clock
	opts   Options
	log    zerolog.Logger

	mu          sync.Mutex
	rateLimited bool
}

// NewOrchestrator creates an orchestrator over the given judge client.
func NewOrchestrator(client Client, clock clockwork.Clock, opts Options, log zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		client: client,
		clock:  clock,
		opts:   opts,
		log:    log.With().Str("component", "execution_orchestrator").Logger(),
	}
}

// RateLimited reports whether the latch is set.
func (o *Orchestrator) RateLimited() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.rateLimited
}

// Reset clears the rate-limit latch.
func (o *Orchestrator) Reset() {
	o.mu.Lock()
	o.rateLimited = false
	o.mu.Unlock()
}

// Submit forwards to the judge unless the latch is set, in which case it
// fails fast without a network call.
func (o *Orchestrator) Submit(ctx context.Context, req model.ExecutionRequest) (string, error) {
	if o.RateLimited() {
		return "", engine.NewError(engine.KindRateLimited, "judge rate limited, not submitting")
	}
	token, err := o.client.Submit(ctx, req)
	if err != nil {
		o.latchIfRateLimited(err)
		return "", err
	}
	return token, nil
}

// Poll forwards to the judge.
func (o *Orchestrator) Poll(ctx context.Context, token string) (*model.ExecutionResult, error) {
	result, err := o.client.Poll(ctx, token)
	if err != nil {
		o.latchIfRateLimited(err)
		return nil, err
	}
	return result, nil
}

// Run submits the request and polls until the judge reports a terminal
// status or the poll budget is exhausted, which surfaces a Timeout error.
//
// One automatic retry with a fixed backoff is permitted after a rate-limit
// failure; a second failure goes to the caller rather than retrying forever.
func (o *Orchestrator) Run(ctx context.Context, req model.ExecutionRequest) (*model.ExecutionResult, error) {
	result, err := o.runOnce(ctx, req)
	if err == nil || !engine.IsRateLimited(err) {
		return result, err
	}

	o.log.Warn().Dur("backoff", o.opts.RetryBackoff).Msg("Rate limited, retrying once after backoff")
	if !o.clock.Sleep(o.opts.RetryBackoff, ctx.Done()) {
		return nil, engine.WrapError(engine.KindRateLimited, "canceled during rate-limit backoff", ctx.Err())
	}
	o.Reset()
	return o.runOnce(ctx, req)
}

func (o *Orchestrator) runOnce(ctx context.Context, req model.ExecutionRequest) (*model.ExecutionResult, error) {
	token, err := o.Submit(ctx, req)
	if err != nil {
		return nil, err
	}

	for attempt := 0; attempt < o.opts.MaxPollAttempts; attempt++ {
		if !o.clock.Sleep(o.opts.PollInterval, ctx.Done()) {
			return nil, engine.WrapError(engine.KindTimeout, "canceled while polling judge", ctx.Err())
		}
		result, err := o.Poll(ctx, token)
		if err != nil {
			return nil, err
		}
		if result.Terminal() {
			return result, nil
		}
	}
	return nil, engine.NewError(engine.KindTimeout, "judge never reached terminal status")
}

func (o *Orchestrator) latchIfRateLimited(err error) {
	if engine.IsRateLimited(err) {
		o.mu.Lock()
		if !o.rateLimited {
			o.rateLimited = true
			o.log.Warn().Msg("Rate limit latched, failing fast until reset")
		}
		o.mu.Unlock()
	}
}
