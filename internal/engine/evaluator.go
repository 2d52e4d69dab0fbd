package engine

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/stemsi/exam-engine/internal/clockwork"
	"github.com/stemsi/exam-engine/internal/model"
)

// Executor runs one piece of code to a terminal judge result. Implemented by
// the judge orchestrator; faked in tests.
type Executor interface {
	Run(ctx context.Context, req model.ExecutionRequest) (*model.ExecutionResult, error)
}

// TestCaseEvaluator grades a coding question by running its full test-case
// suite, strictly in order and sequentially, through the executor.
//
// Cases are separated by a fixed delay to respect judge rate limits. If a run
// fails with a RateLimited error the evaluator stops early and marks the
// remaining cases as not-run instead of amplifying the condition.
type TestCaseEvaluator struct {
	executor Executor
	clock    clockwork.Clock
	delay    time.Duration
	log      zerolog.Logger
}

// NewTestCaseEvaluator creates an evaluator with the given inter-case delay.
func NewTestCaseEvaluator(executor Executor, clock clockwork.Clock, delay time.Duration, log zerolog.Logger) *TestCaseEvaluator {
	return &TestCaseEvaluator{
		executor: executor,
		clock:    clock,
		delay:    delay,
		log:      log.With().Str("component", "testcase_evaluator").Logger(),
	}
}

// Evaluate runs every test case of the question against the given source.
// A question with zero test cases is vacuously successful.
func (e *TestCaseEvaluator) Evaluate(ctx context.Context, q *model.Question, source string, languageID int) *model.ExecutionOutcome {
	outcome := &model.ExecutionOutcome{Success: true}

	for i, tc := range q.TestCases {
		if i > 0 {
			if !e.clock.Sleep(e.delay, ctx.Done()) {
				e.markRemainingNotRun(outcome, q.TestCases[i:])
				outcome.Success = false
				return outcome
			}
		}

		result, err := e.executor.Run(ctx, model.ExecutionRequest{
			SourceCode: source,
			LanguageID: languageID,
			Stdin:      tc.Input,
		})
		if err != nil {
			if IsRateLimited(err) {
				e.log.Warn().Int("case", i).Msg("Rate limited mid-suite, skipping remaining cases")
				e.markRemainingNotRun(outcome, q.TestCases[i:])
				outcome.Success = false
				return outcome
			}
			// Other failures count against this case only; the candidate can
			// keep working the rest of the question.
			outcome.Success = false
			outcome.TestResults = append(outcome.TestResults, model.TestResult{
				Passed:         false,
				Ran:            true,
				Input:          tc.Input,
				ExpectedOutput: tc.ExpectedOutput,
				ActualOutput:   err.Error(),
			})
			continue
		}

		actual := firstNonEmpty(result.Stdout, result.Stderr, result.CompileOutput)
		passed := outputsMatch(tc.ExpectedOutput, result.Stdout)
		if !passed {
			outcome.Success = false
		}
		outcome.TestResults = append(outcome.TestResults, model.TestResult{
			Passed:         passed,
			Ran:            true,
			Input:          tc.Input,
			ExpectedOutput: tc.ExpectedOutput,
			ActualOutput:   actual,
		})
	}
	return outcome
}

// outputsMatch compares expected and actual output after trimming trailing
// whitespace on each side. No other normalization.
func outputsMatch(expected, actual string) bool {
	return trimTrailing(expected) == trimTrailing(actual)
}

func trimTrailing(s string) string {
	return strings.TrimRight(s, " \t\r\n")
}

func (e *TestCaseEvaluator) markRemainingNotRun(outcome *model.ExecutionOutcome, remaining []model.TestCase) {
	for _, tc := range remaining {
		outcome.TestResults = append(outcome.TestResults, model.TestResult{
			Passed:         false,
			Ran:            false,
			Input:          tc.Input,
			ExpectedOutput: tc.ExpectedOutput,
		})
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
