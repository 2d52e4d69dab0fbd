package judge

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stemsi/exam-engine/internal/clockwork"
	"github.com/stemsi/exam-engine/internal/engine"
	"github.com/stemsi/exam-engine/internal/model"
)

var orchStart = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

// fakeClient scripts submit and poll responses in call order.
type fakeClient struct {
	mu          sync.Mutex
	submitErrs  []error
	pollResults []pollStep
	submits     int
	polls       int
}

type pollStep struct {
	result *model.ExecutionResult
	err    error
}

func (f *fakeClient) Submit(_ context.Context, _ model.ExecutionRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submits++
	if len(f.submitErrs) > 0 {
		err := f.submitErrs[0]
		f.submitErrs = f.submitErrs[1:]
		if err != nil {
			return "", err
		}
	}
	return "token-1", nil
}

func (f *fakeClient) Poll(_ context.Context, _ string) (*model.ExecutionResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.polls++
	if len(f.pollResults) == 0 {
		return &model.ExecutionResult{StatusID: 2}, nil // Still processing.
	}
	step := f.pollResults[0]
	f.pollResults = f.pollResults[1:]
	return step.result, step.err
}

func newOrchestrator(client *fakeClient) *Orchestrator {
	return NewOrchestrator(client, clockwork.NewFake(orchStart), Options{
		MaxPollAttempts: 10,
		PollInterval:    500 * time.Millisecond,
		RetryBackoff:    5 * time.Second,
	}, zerolog.Nop())
}

func TestRunPollsToTerminalStatus(t *testing.T) {
	client := &fakeClient{
		pollResults: []pollStep{
			{result: &model.ExecutionResult{StatusID: 1}},
			{result: &model.ExecutionResult{StatusID: 2}},
			{result: &model.ExecutionResult{StatusID: 3, Stdout: "42"}},
		},
	}
	orch := newOrchestrator(client)

	result, err := orch.Run(context.Background(), model.ExecutionRequest{SourceCode: "src"})
	require.NoError(t, err)
	assert.Equal(t, 3, result.StatusID)
	assert.Equal(t, "42", result.Stdout)
	assert.Equal(t, 1, client.submits)
	assert.Equal(t, 3, client.polls)
}

func TestRunTimesOutAfterPollBudget(t *testing.T) {
	client := &fakeClient{} // Every poll reports "processing".
	orch := newOrchestrator(client)

	result, err := orch.Run(context.Background(), model.ExecutionRequest{SourceCode: "src"})
	require.Error(t, err)
	assert.Nil(t, result)
	assert.True(t, engine.IsTimeout(err))
	assert.Equal(t, 10, client.polls)
}

func TestRunRetriesOnceAfterRateLimit(t *testing.T) {
	client := &fakeClient{
		submitErrs: []error{engine.NewError(engine.KindRateLimited, "judge rate limit hit"), nil},
		pollResults: []pollStep{
			{result: &model.ExecutionResult{StatusID: 3, Stdout: "ok"}},
		},
	}
	orch := newOrchestrator(client)

	result, err := orch.Run(context.Background(), model.ExecutionRequest{SourceCode: "src"})
	require.NoError(t, err)
	assert.Equal(t, "ok", result.Stdout)
	assert.Equal(t, 2, client.submits)
	assert.False(t, orch.RateLimited(), "latch cleared before the retry")
}

func TestRunSecondRateLimitSurfaces(t *testing.T) {
	client := &fakeClient{
		submitErrs: []error{
			engine.NewError(engine.KindRateLimited, "judge rate limit hit"),
			engine.NewError(engine.KindRateLimited, "judge rate limit hit"),
		},
	}
	orch := newOrchestrator(client)

	_, err := orch.Run(context.Background(), model.ExecutionRequest{SourceCode: "src"})
	require.Error(t, err)
	assert.True(t, engine.IsRateLimited(err))
	assert.Equal(t, 2, client.submits, "exactly one automatic retry")
	assert.True(t, orch.RateLimited())
}

func TestLatchFailsFastWithoutNetworkCall(t *testing.T) {
	client := &fakeClient{
		submitErrs: []error{engine.NewError(engine.KindRateLimited, "judge rate limit hit")},
	}
	orch := newOrchestrator(client)

	_, err := orch.Submit(context.Background(), model.ExecutionRequest{})
	require.Error(t, err)
	require.True(t, orch.RateLimited())

	_, err = orch.Submit(context.Background(), model.ExecutionRequest{})
	require.Error(t, err)
	assert.True(t, engine.IsRateLimited(err))
	assert.Equal(t, 1, client.submits, "latched submit never reaches the judge")

	orch.Reset()
	_, err = orch.Submit(context.Background(), model.ExecutionRequest{})
	assert.NoError(t, err)
	assert.Equal(t, 2, client.submits)
}

func TestPollRateLimitSetsLatch(t *testing.T) {
	client := &fakeClient{
		pollResults: []pollStep{
			{err: engine.NewError(engine.KindRateLimited, "judge rate limit hit")},
		},
	}
	orch := newOrchestrator(client)

	_, err := orch.Poll(context.Background(), "token-1")
	require.Error(t, err)
	assert.True(t, orch.RateLimited())
}
