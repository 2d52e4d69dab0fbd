package engine

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/stemsi/exam-engine/internal/model"
)

var testStart = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

func nopLog() zerolog.Logger {
	return zerolog.Nop()
}

// fakeExecutor scripts terminal results per stdin, in call order.
type fakeExecutor struct {
	mu       sync.Mutex
	results  []fakeRun
	requests []model.ExecutionRequest
}

type fakeRun struct {
	result *model.ExecutionResult
	err    error
}

func (f *fakeExecutor) enqueue(result *model.ExecutionResult, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results = append(f.results, fakeRun{result: result, err: err})
}

func (f *fakeExecutor) Run(_ context.Context, req model.ExecutionRequest) (*model.ExecutionResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if len(f.results) == 0 {
		return &model.ExecutionResult{StatusID: 3, Stdout: ""}, nil
	}
	next := f.results[0]
	f.results = f.results[1:]
	return next.result, next.err
}

func (f *fakeExecutor) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

// fakeSink records persisted submissions and can be scripted to fail.
type fakeSink struct {
	mu      sync.Mutex
	records []*model.SubmissionRecord
	err     error
}

func (f *fakeSink) Persist(_ context.Context, record *model.SubmissionRecord) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.records = append(f.records, record)
	return uuid.NewString(), nil
}

func (f *fakeSink) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.records)
}

func (f *fakeSink) last() *model.SubmissionRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.records) == 0 {
		return nil
	}
	return f.records[len(f.records)-1]
}

func (f *fakeSink) fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func mcqQuestion(points int, correct ...string) model.Question {
	q := model.Question{
		ID:     uuid.New(),
		Kind:   model.QuestionKindMCQ,
		Points: points,
		Options: []model.Option{
			{ID: "opt-a", Text: "A"},
			{ID: "opt-b", Text: "B"},
			{ID: "opt-c", Text: "C"},
		},
		CorrectAnswer: correct,
	}
	return q
}

func codingQuestion(points int, cases ...model.TestCase) model.Question {
	return model.Question{
		ID:        uuid.New(),
		Kind:      model.QuestionKindCoding,
		Points:    points,
		TestCases: cases,
	}
}

func definition(durationMinutes int, questions ...model.Question) *model.AssessmentDefinition {
	return &model.AssessmentDefinition{
		ID:              uuid.New(),
		Title:           "Sample Assessment",
		Questions:       questions,
		DurationMinutes: durationMinutes,
	}
}
