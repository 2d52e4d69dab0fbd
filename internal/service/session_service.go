package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/stemsi/exam-engine/internal/authoring"
	"github.com/stemsi/exam-engine/internal/clockwork"
	"github.com/stemsi/exam-engine/internal/config"
	"github.com/stemsi/exam-engine/internal/engine"
	"github.com/stemsi/exam-engine/internal/judge"
	"github.com/stemsi/exam-engine/internal/model"
	"github.com/stemsi/exam-engine/internal/resultstore"
	"github.com/stemsi/exam-engine/internal/timerstore"
)

// Common session-service errors.
var (
	ErrAttemptLimitReached = fmt.Errorf("attempt limit reached")
	ErrNoOpenSession       = fmt.Errorf("no open session")
)

// JudgeFactory builds one executor per session so the rate-limit latch stays
// session-scoped even when many candidates share the process.
type JudgeFactory func() engine.Executor

// SessionService owns the live session registry: one engine.Session per
// (assessment, candidate) pair for the lifetime of an attempt.
type SessionService struct {
	provider  authoring.Provider
	store     timerstore.Store
	sink      engine.ResultSink
	attempts  resultstore.AttemptCounter // Nil when the sink cannot count.
	judges    JudgeFactory
	wallclock clockwork.Clock
	cfg       *config.Config
	log       zerolog.Logger

	mu       sync.Mutex
	sessions map[string]*engine.Session
}

// NewSessionService creates the registry. attempts may be nil when the
// configured sink has no attempt history (HTTP collaborator mode); the
// MaxAttempts check is then skipped and left to the collaborator.
func NewSessionService(
	provider authoring.Provider,
	store timerstore.Store,
	sink engine.ResultSink,
	attempts resultstore.AttemptCounter,
	judges JudgeFactory,
	wallclock clockwork.Clock,
	cfg *config.Config,
	log zerolog.Logger,
) *SessionService {
	return &SessionService{
		provider:  provider,
		store:     store,
		sink:      sink,
		attempts:  attempts,
		judges:    judges,
		wallclock: wallclock,
		cfg:       cfg,
		log:       log.With().Str("component", "session_service").Logger(),
		sessions:  make(map[string]*engine.Session),
	}
}

func sessionKey(assessmentID uuid.UUID, candidateID int) string {
	return fmt.Sprintf("%s/%d", assessmentID, candidateID)
}

// Open fetches the assessment definition, enforces the attempt limit, and
// creates or resumes the candidate's session. Idempotent: reopening an
// existing attempt resumes it with the persisted clock state.
func (s *SessionService) Open(ctx context.Context, assessmentID uuid.UUID, candidateID int) (*engine.View, error) {
	key := sessionKey(assessmentID, candidateID)

	s.mu.Lock()
	sess, ok := s.sessions[key]
	s.mu.Unlock()
	if ok {
		view, err := sess.Open(ctx)
		if err == nil && sess.Phase() == model.PhaseSubmitted {
			s.remove(key) // Finished attempt; next open starts a fresh one.
		}
		return view, err
	}

	def, err := s.provider.AssessmentWithQuestions(ctx, assessmentID)
	if err != nil {
		return nil, fmt.Errorf("fetch assessment: %w", err)
	}

	if s.attempts != nil && def.MaxAttempts > 0 {
		used, err := s.attempts.CountSubmitted(ctx, assessmentID, candidateID)
		if err != nil {
			return nil, fmt.Errorf("count attempts: %w", err)
		}
		if used >= def.MaxAttempts {
			return nil, ErrAttemptLimitReached
		}
	}

	policy := engine.Policy{
		StartTolerance:          s.cfg.StartTolerance,
		FallbackDurationSeconds: s.cfg.FallbackDurationS,
		SubmitUnlockAfter:       s.cfg.SubmitUnlockAfter,
		InterCaseDelay:          s.cfg.InterCaseDelay,
	}

	s.mu.Lock()
	// Re-check under the lock: a concurrent open may have won.
	if existing, ok := s.sessions[key]; ok {
		s.mu.Unlock()
		return existing.Open(ctx)
	}
	sess = engine.NewSession(def, candidateID, s.judges(), s.store, s.sink, s.wallclock, policy, s.log)
	s.sessions[key] = sess
	s.mu.Unlock()

	view, err := sess.Open(ctx)
	if err != nil {
		return nil, err
	}
	// A session that went straight to Submitted (schedule end) has no
	// further use; drop it so a retry re-checks the attempt budget.
	if sess.Phase() == model.PhaseSubmitted {
		s.remove(key)
	}
	return view, nil
}

// Get returns the open session or ErrNoOpenSession.
func (s *SessionService) Get(assessmentID uuid.UUID, candidateID int) (*engine.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionKey(assessmentID, candidateID)]
	if !ok {
		return nil, ErrNoOpenSession
	}
	return sess, nil
}

// Submit finalizes the attempt and, on success, retires the session from the
// registry.
func (s *SessionService) Submit(ctx context.Context, assessmentID uuid.UUID, candidateID int) (*model.SubmissionRecord, error) {
	sess, err := s.Get(assessmentID, candidateID)
	if err != nil {
		return nil, err
	}
	record, err := sess.Submit(ctx, model.TriggerManual)
	if err != nil {
		return nil, err
	}
	if sess.Phase() == model.PhaseSubmitted {
		s.remove(sessionKey(assessmentID, candidateID))
	}
	return record, nil
}

// Shutdown stops every live clock so timer state persists for resume.
func (s *SessionService) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sess := range s.sessions {
		sess.Close()
	}
	s.log.Info().Int("sessions", len(s.sessions)).Msg("Session registry shut down")
}

func (s *SessionService) remove(key string) {
	s.mu.Lock()
	delete(s.sessions, key)
	s.mu.Unlock()
}

// NewJudgeFactory returns the production JudgeFactory over the configured
// judge endpoint.
func NewJudgeFactory(cfg *config.Config, wallclock clockwork.Clock, log zerolog.Logger) JudgeFactory {
	client := judge.NewHTTPClient(cfg.JudgeBaseURL, cfg.JudgeAPIKey, cfg.HTTPTimeout, log)
	opts := judge.Options{
		MaxPollAttempts: cfg.JudgeMaxPollAttempts,
		PollInterval:    cfg.JudgePollInterval,
		RetryBackoff:    cfg.JudgeRetryBackoff,
	}
	return func() engine.Executor {
		return judge.NewOrchestrator(client, wallclock, opts, log)
	}
}
