package engine

import (
	"context"
	"math"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/stemsi/exam-engine/internal/clockwork"
	"github.com/stemsi/exam-engine/internal/model"
	"github.com/stemsi/exam-engine/internal/timerstore"
)

// ResultSink receives the finished SubmissionRecord. Implemented by the
// persistence collaborator adapters; the coordinator calls it at most once
// per successful submission.
type ResultSink interface {
	Persist(ctx context.Context, record *model.SubmissionRecord) (string, error)
}

// CoordinatorState is the coordinator's terminal-once state machine.
type CoordinatorState string

const (
	CoordinatorIdle       CoordinatorState = "IDLE"
	CoordinatorSubmitting CoordinatorState = "SUBMITTING"
	CoordinatorSubmitted  CoordinatorState = "SUBMITTED"
)

// SubmissionCoordinator finalizes an attempt exactly once. Manual clicks,
// timer expiry, and schedule end all funnel through the same guarded entry
// point; the guard is the sole exactly-once enforcement.
type SubmissionCoordinator struct {
	def       *model.AssessmentDefinition
	ledger    *AnswerLedger
	clock     *SessionClock
	store     timerstore.Store
	sink      ResultSink
	wallclock clockwork.Clock
	log       zerolog.Logger

	// onSubmitted runs after a confirmed successful persist, before the
	// coordinator releases its state lock.
	onSubmitted func(record *model.SubmissionRecord)

	mu    sync.Mutex
	state CoordinatorState
}

// NewSubmissionCoordinator wires the finalization path for one attempt.
func NewSubmissionCoordinator(
	def *model.AssessmentDefinition,
	ledger *AnswerLedger,
	clock *SessionClock,
	store timerstore.Store,
	sink ResultSink,
	wallclock clockwork.Clock,
	log zerolog.Logger,
	onSubmitted func(record *model.SubmissionRecord),
) *SubmissionCoordinator {
	return &SubmissionCoordinator{
		def:         def,
		ledger:      ledger,
		clock:       clock,
		store:       store,
		sink:        sink,
		wallclock:   wallclock,
		log:         log.With().Str("component", "submission_coordinator").Logger(),
		onSubmitted: onSubmitted,
		state:       CoordinatorIdle,
	}
}

// State returns the coordinator state.
func (c *SubmissionCoordinator) State() CoordinatorState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Submit finalizes the attempt. If a submission is already in flight or done,
// it returns (nil, nil) without side effects, so racing triggers collapse into
// a single SubmissionRecord. On persistence failure the coordinator drops
// back to Idle so the same guarded entry can be retried.
func (c *SubmissionCoordinator) Submit(ctx context.Context, trigger model.SubmitTrigger) (*model.SubmissionRecord, error) {
	c.mu.Lock()
	if c.state != CoordinatorIdle {
		c.mu.Unlock()
		c.log.Debug().Str("trigger", string(trigger)).Str("state", string(c.state)).Msg("Submit ignored by guard")
		return nil, nil
	}
	c.state = CoordinatorSubmitting
	c.mu.Unlock()

	record, err := c.submit(ctx, trigger)
	c.mu.Lock()
	if err != nil {
		c.state = CoordinatorIdle
	} else {
		c.state = CoordinatorSubmitted
		if c.onSubmitted != nil {
			c.onSubmitted(record)
		}
	}
	c.mu.Unlock()
	return record, err
}

func (c *SubmissionCoordinator) submit(ctx context.Context, trigger model.SubmitTrigger) (*model.SubmissionRecord, error) {
	if c.def == nil || c.def.ID == uuid.Nil {
		return nil, NewError(KindValidation, "no assessment definition for submission")
	}

	// Freeze the ledger and stop the clock before scoring.
	timeLeft := c.clock.Remaining()
	c.clock.Stop()
	snapshot := c.ledger.Snapshot()

	record := c.score(snapshot, timeLeft)
	record.Trigger = trigger
	c.log.Info().
		Str("trigger", string(trigger)).
		Int("score", record.Score).
		Int("max_score", record.MaxScore).
		Msg("Submitting attempt")

	if _, err := c.sink.Persist(ctx, record); err != nil {
		c.log.Error().Err(err).Msg("Persist failed, submission retryable")
		return nil, WrapError(KindNetwork, "persist submission", err)
	}

	// Clear is the single deletion path for timer state and only runs after
	// a confirmed successful persist.
	if err := c.store.Clear(ctx, record.AssessmentID, record.CandidateID); err != nil {
		// Staleness on next load is the backstop; do not fail the submission.
		c.log.Warn().Err(err).Msg("Failed to clear timer state after submit")
	}
	return record, nil
}

// score builds the SubmissionRecord from a frozen snapshot.
func (c *SubmissionCoordinator) score(snapshot *model.SessionState, timeLeft int) *model.SubmissionRecord {
	record := &model.SubmissionRecord{
		AssessmentID: c.def.ID,
		CandidateID:  snapshot.CandidateID,
		SubmittedAt:  c.wallclock.Now(),
	}

	for i := range c.def.Questions {
		q := &c.def.Questions[i]
		points := q.PointsOrDefault()
		record.MaxScore += points

		qr := model.QuestionResult{QuestionID: q.ID, Points: points}

		switch {
		case q.IsMCQ():
			if !snapshot.Attempted(q) {
				record.NumUnattempted++
				record.Questions = append(record.Questions, qr)
				continue
			}
			optionID := q.OptionIDAt(snapshot.MCQAnswers[q.ID])
			qr.Selected = optionID
			qr.IsCorrect = q.IsCorrectOption(optionID)

		case q.IsCoding():
			if lang, selected := snapshot.SelectedLang[q.ID]; selected {
				qr.Selected = strconv.Itoa(lang)
			}
			if !snapshot.Attempted(q) {
				record.NumUnattempted++
				record.Questions = append(record.Questions, qr)
				continue
			}
			// Correct iff the last full test-case run passed. Partial credit
			// is a scoring-policy decision layered on TestResults, not here.
			outcome := snapshot.Outcomes[q.ID]
			qr.IsCorrect = outcome != nil && outcome.Success
		}

		if qr.IsCorrect {
			qr.Awarded = points
			record.Score += points
			record.NumCorrect++
		} else {
			record.NumIncorrect++
		}
		record.Questions = append(record.Questions, qr)
	}

	total := len(c.def.Questions)
	if record.MaxScore > 0 {
		record.Percentage = int(math.Round(100 * float64(record.Score) / float64(record.MaxScore)))
	}
	if total > 0 {
		record.Accuracy = int(math.Round(100 * float64(record.NumCorrect) / float64(total)))
	}
	record.TimeSpentSeconds = c.def.DurationMinutes*60 - timeLeft
	if record.TimeSpentSeconds < 0 {
		record.TimeSpentSeconds = 0
	}
	return record
}
