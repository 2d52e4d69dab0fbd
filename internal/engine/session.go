package engine

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/stemsi/exam-engine/internal/clockwork"
	"github.com/stemsi/exam-engine/internal/model"
	"github.com/stemsi/exam-engine/internal/timerstore"
)

// Policy carries the tolerance and pacing constants observed in production.
// They are configuration, not physics.
type Policy struct {
	StartTolerance          time.Duration
	FallbackDurationSeconds int
	SubmitUnlockAfter       time.Duration
	InterCaseDelay          time.Duration
}

// TickEvent is pushed to subscribers on every clock tick and phase change.
type TickEvent struct {
	Phase           model.Phase `json:"phase"`
	TimeLeftSeconds int         `json:"time_left_seconds"`
}

// View is the read-only state slice returned to transport layers.
type View struct {
	Phase           model.Phase                           `json:"phase"`
	TimeLeftSeconds int                                   `json:"time_left_seconds"`
	CanSubmit       bool                                  `json:"can_submit"`
	MCQAnswers      map[uuid.UUID]int                     `json:"mcq_answers"`
	Code            map[uuid.UUID]map[int]string          `json:"code"`
	Outcomes        map[uuid.UUID]*model.ExecutionOutcome `json:"outcomes"`
}

// Session owns the mutable SessionState for one attempt and is the only
// mutator of it. All candidate actions and timer events route through here.
type Session struct {
	def    *model.AssessmentDefinition
	policy Policy
	log    zerolog.Logger

	gate        *SchedulingGate
	clock       *SessionClock
	ledger      *AnswerLedger
	evaluator   *TestCaseEvaluator
	coordinator *SubmissionCoordinator
	executor    Executor
	store       timerstore.Store
	wallclock   clockwork.Clock

	mu       sync.Mutex
	state    *model.SessionState
	inflight map[uuid.UUID]bool // Per-question execution lock.

	subMu  sync.Mutex
	subSeq int
	subs   map[int]chan TickEvent
}

// NewSession builds the full component graph for one attempt. The session is
// inert until Open is called.
func NewSession(
	def *model.AssessmentDefinition,
	candidateID int,
	executor Executor,
	store timerstore.Store,
	sink ResultSink,
	wallclock clockwork.Clock,
	policy Policy,
	log zerolog.Logger,
) *Session {
	s := &Session{
		def:       def,
		policy:    policy,
		executor:  executor,
		store:     store,
		wallclock: wallclock,
		gate:      NewSchedulingGate(policy.StartTolerance),
		state:     model.NewSessionState(def.ID, candidateID),
		inflight:  make(map[uuid.UUID]bool),
		subs:      make(map[int]chan TickEvent),
		log: log.With().
			Str("component", "session").
			Str("assessment_id", def.ID.String()).
			Int("candidate_id", candidateID).
			Logger(),
	}
	s.ledger = NewAnswerLedger(s.state)
	s.evaluator = NewTestCaseEvaluator(executor, wallclock, policy.InterCaseDelay, log)
	s.clock = NewSessionClock(wallclock, log, s.onTick, s.onExpire)
	s.coordinator = NewSubmissionCoordinator(def, s.ledger, s.clock, store, sink, wallclock, log, s.onSubmitted)
	return s
}

// Open resolves the initial remaining time and, if the scheduling gate
// allows, moves the session to Active and starts the clock. Reopening an
// already active session is a no-op resume.
func (s *Session) Open(ctx context.Context) (*View, error) {
	now := s.wallclock.Now()
	status := s.gate.Evaluate(now, s.def.Scheduling)

	s.mu.Lock()
	switch s.state.Phase {
	case model.PhaseSubmitted:
		s.mu.Unlock()
		return s.StateView(), nil
	case model.PhaseActive:
		// Clock re-entrancy guard makes the restart below harmless, but we
		// still refresh phase if the window closed while disconnected.
		if status != GateEnded {
			s.mu.Unlock()
			return s.StateView(), nil
		}
	}

	switch status {
	case GateNotStarted:
		s.state.Phase = model.PhaseNotStarted
		s.mu.Unlock()
		return s.StateView(), nil
	case GateEnded:
		s.state.Phase = model.PhaseEnded
		s.mu.Unlock()
		// The gate never submits by itself; it signals the coordinator.
		if _, err := s.coordinator.Submit(ctx, model.TriggerScheduleEnd); err != nil {
			return s.StateView(), err
		}
		return s.StateView(), nil
	}

	initial, err := s.resolveInitialSeconds(ctx, now)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	s.state.Phase = model.PhaseActive
	s.state.TimeLeftSeconds = initial
	s.mu.Unlock()

	s.log.Info().Int("initial_seconds", initial).Msg("Session opened")
	s.clock.Start(initial)
	return s.StateView(), nil
}

// resolveInitialSeconds applies the priority order: persisted value adjusted
// for elapsed time, then configured duration, then the hard fallback. The
// result is capped so the clock can never outlive the scheduling window.
// Callers hold s.mu.
func (s *Session) resolveInitialSeconds(ctx context.Context, now time.Time) (int, error) {
	var initial int

	entry, err := s.store.Load(ctx, s.def.ID, s.state.CandidateID)
	if err != nil {
		s.log.Warn().Err(err).Msg("Timer state load failed, falling back to duration")
	}
	switch {
	case entry != nil:
		initial = entry.AdjustedTimeLeft(now)
	case s.def.DurationMinutes > 0:
		initial = s.def.DurationMinutes * 60
	default:
		initial = s.policy.FallbackDurationSeconds
	}

	if s.def.Scheduling != nil {
		untilEnd := int(s.def.Scheduling.EndAt.Sub(now).Seconds())
		if untilEnd < initial {
			initial = untilEnd
		}
	}
	if initial < 0 {
		initial = 0
	}
	return initial, nil
}

// RecordMCQ stores an MCQ selection. Rejected outside the Active phase.
func (s *Session) RecordMCQ(questionID uuid.UUID, optionIndex int) error {
	q := s.def.QuestionByID(questionID)
	if q == nil || !q.IsMCQ() {
		return NewError(KindValidation, "unknown MCQ question")
	}
	if optionIndex < 0 || optionIndex >= len(q.Options) {
		return NewError(KindValidation, "option index out of range")
	}
	if err := s.requireActive(); err != nil {
		return err
	}
	s.ledger.RecordMCQ(questionID, optionIndex)
	return nil
}

// RecordCode stores coding-question source. Rejected outside Active.
func (s *Session) RecordCode(questionID uuid.UUID, languageID int, source string) error {
	q := s.def.QuestionByID(questionID)
	if q == nil || !q.IsCoding() {
		return NewError(KindValidation, "unknown coding question")
	}
	if err := s.requireActive(); err != nil {
		return err
	}
	s.ledger.RecordCode(questionID, languageID, source)
	return nil
}

// RunSample executes code against a custom stdin without grading. The result
// never touches executionOutcome.
func (s *Session) RunSample(ctx context.Context, questionID uuid.UUID, req model.ExecutionRequest) (*model.ExecutionResult, error) {
	q := s.def.QuestionByID(questionID)
	if q == nil || !q.IsCoding() {
		return nil, NewError(KindValidation, "unknown coding question")
	}
	if err := s.requireActive(); err != nil {
		return nil, err
	}
	if err := s.acquireQuestion(questionID); err != nil {
		return nil, err
	}
	defer s.releaseQuestion(questionID)

	return s.executor.Run(ctx, req)
}

// EvaluateQuestion runs the question's full test-case suite and records the
// aggregate outcome in the ledger.
func (s *Session) EvaluateQuestion(ctx context.Context, questionID uuid.UUID, languageID int, source string) (*model.ExecutionOutcome, error) {
	q := s.def.QuestionByID(questionID)
	if q == nil || !q.IsCoding() {
		return nil, NewError(KindValidation, "unknown coding question")
	}
	if err := s.requireActive(); err != nil {
		return nil, err
	}
	if err := s.acquireQuestion(questionID); err != nil {
		return nil, err
	}
	defer s.releaseQuestion(questionID)

	s.ledger.RecordCode(questionID, languageID, source)
	outcome := s.evaluator.Evaluate(ctx, q, source, languageID)
	s.ledger.RecordExecutionOutcome(questionID, outcome)
	return outcome, nil
}

// Submit finalizes the attempt through the coordinator's guarded entry.
// A nil record with nil error means another trigger already won the race.
func (s *Session) Submit(ctx context.Context, trigger model.SubmitTrigger) (*model.SubmissionRecord, error) {
	return s.coordinator.Submit(ctx, trigger)
}

// StateView returns a deep-copied view for transport layers.
func (s *Session) StateView() *View {
	snap := s.ledger.Snapshot()
	s.mu.Lock()
	phase := s.state.Phase
	timeLeft := s.state.TimeLeftSeconds
	s.mu.Unlock()

	return &View{
		Phase:           phase,
		TimeLeftSeconds: timeLeft,
		CanSubmit:       s.canSubmit(phase, timeLeft),
		MCQAnswers:      snap.MCQAnswers,
		Code:            snap.Code,
		Outcomes:        snap.Outcomes,
	}
}

// Subscribe registers a tick listener. Slow consumers drop events rather
// than stall the clock.
func (s *Session) Subscribe() (int, <-chan TickEvent) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	s.subSeq++
	id := s.subSeq
	ch := make(chan TickEvent, 8)
	s.subs[id] = ch
	return id, ch
}

// Unsubscribe removes a tick listener.
func (s *Session) Unsubscribe(id int) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	if ch, ok := s.subs[id]; ok {
		delete(s.subs, id)
		close(ch)
	}
}

// Close stops the clock without submitting; the persisted timer state lets
// the attempt resume later.
func (s *Session) Close() {
	s.clock.Stop()
}

// Phase returns the current lifecycle phase.
func (s *Session) Phase() model.Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Phase
}

// ─── Internal event handlers ────────────────────────────────────────

// onTick runs once per second while the clock is live. It is the single
// writer of TimeLeftSeconds and re-evaluates the scheduling gate so a closed
// window force-ends the session even if the duration has time left.
func (s *Session) onTick(remaining int) {
	now := s.wallclock.Now()

	s.mu.Lock()
	s.state.TimeLeftSeconds = remaining
	phase := s.state.Phase
	s.mu.Unlock()

	// Timer state is written on every tick, at most once per second.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	if err := s.store.Save(ctx, s.def.ID, s.state.CandidateID, remaining); err != nil {
		s.log.Warn().Err(err).Msg("Timer state save failed")
	}
	cancel()

	if s.gate.Evaluate(now, s.def.Scheduling) == GateEnded && phase == model.PhaseActive {
		s.mu.Lock()
		s.state.Phase = model.PhaseEnded
		s.mu.Unlock()
		s.clock.Stop()
		s.broadcast()
		if _, err := s.coordinator.Submit(context.Background(), model.TriggerScheduleEnd); err != nil {
			s.log.Error().Err(err).Msg("Schedule-end auto-submit failed")
		}
		return
	}

	s.broadcast()
}

// onExpire fires exactly once when the clock reaches zero.
func (s *Session) onExpire() {
	s.log.Info().Msg("Clock expired, auto-submitting")
	if _, err := s.coordinator.Submit(context.Background(), model.TriggerTimerExpiry); err != nil {
		s.log.Error().Err(err).Msg("Timer-expiry auto-submit failed")
	}
}

// onSubmitted runs after a confirmed successful persist.
func (s *Session) onSubmitted(record *model.SubmissionRecord) {
	s.mu.Lock()
	s.state.Phase = model.PhaseSubmitted
	s.mu.Unlock()
	s.clock.Stop()
	s.broadcast()
	s.log.Info().Int("score", record.Score).Msg("Attempt submitted")
}

func (s *Session) broadcast() {
	s.mu.Lock()
	ev := TickEvent{Phase: s.state.Phase, TimeLeftSeconds: s.state.TimeLeftSeconds}
	s.mu.Unlock()

	s.subMu.Lock()
	for _, ch := range s.subs {
		select {
		case ch <- ev:
		default:
		}
	}
	s.subMu.Unlock()
}

func (s *Session) requireActive() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Phase != model.PhaseActive {
		return NewError(KindValidation, "session is not active")
	}
	return nil
}

func (s *Session) canSubmit(phase model.Phase, timeLeft int) bool {
	if phase != model.PhaseActive {
		return false
	}
	elapsed := time.Duration(s.def.DurationMinutes*60-timeLeft) * time.Second
	return elapsed >= s.policy.SubmitUnlockAfter
}

func (s *Session) acquireQuestion(questionID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inflight[questionID] {
		return NewError(KindConflict, "an execution is already in flight for this question")
	}
	s.inflight[questionID] = true
	return nil
}

func (s *Session) releaseQuestion(questionID uuid.UUID) {
	s.mu.Lock()
	delete(s.inflight, questionID)
	s.mu.Unlock()
}
