package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/stemsi/exam-engine/internal/engine"
	"github.com/stemsi/exam-engine/internal/middleware"
	"github.com/stemsi/exam-engine/internal/model"
	"github.com/stemsi/exam-engine/internal/response"
	"github.com/stemsi/exam-engine/internal/service"
	"github.com/stemsi/exam-engine/internal/validator"
)

// SessionHandler exposes the attempt lifecycle: open, answer, run, submit.
type SessionHandler struct {
	sessions *service.SessionService
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(sessions *service.SessionService) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

// OpenAttempt godoc
// POST /api/v1/attempts/:assessment_id/open
// Fetches the definition, enforces the attempt limit, and creates or resumes
// the candidate's session.
func (h *SessionHandler) OpenAttempt(c *gin.Context) {
	claims, assessmentID, ok := h.identify(c)
	if !ok {
		return
	}

	view, err := h.sessions.Open(c.Request.Context(), assessmentID, claims.CandidateID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrAttemptLimitReached):
			response.Fail(c, http.StatusForbidden, response.ErrAttemptLimitReached)
		case engine.KindOf(err) == engine.KindValidation:
			response.Fail(c, http.StatusNotFound, response.ErrAssessmentNotFound)
		default:
			response.Fail(c, http.StatusBadGateway, response.ErrInternal)
		}
		return
	}

	response.Success(c, http.StatusOK, view)
}

// GetState godoc
// GET /api/v1/attempts/:assessment_id/state
// Returns phase, remaining time, recorded answers and outcomes. Covers page
// reloads: the client re-derives its whole screen from this.
func (h *SessionHandler) GetState(c *gin.Context) {
	claims, assessmentID, ok := h.identify(c)
	if !ok {
		return
	}

	sess, err := h.sessions.Get(assessmentID, claims.CandidateID)
	if err != nil {
		response.Fail(c, http.StatusNotFound, response.ErrSessionNotActive)
		return
	}
	response.Success(c, http.StatusOK, sess.StateView())
}

// RecordMCQ godoc
// PUT /api/v1/attempts/:assessment_id/answers/mcq
func (h *SessionHandler) RecordMCQ(c *gin.Context) {
	claims, assessmentID, ok := h.identify(c)
	if !ok {
		return
	}

	var req model.RecordMCQRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	sess, err := h.sessions.Get(assessmentID, claims.CandidateID)
	if err != nil {
		response.Fail(c, http.StatusNotFound, response.ErrSessionNotActive)
		return
	}

	if err := sess.RecordMCQ(req.QuestionID, *req.OptionIndex); err != nil {
		h.failFromEngine(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"recorded": true})
}

// RecordCode godoc
// PUT /api/v1/attempts/:assessment_id/answers/code
func (h *SessionHandler) RecordCode(c *gin.Context) {
	claims, assessmentID, ok := h.identify(c)
	if !ok {
		return
	}

	var req model.RecordCodeRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	sess, err := h.sessions.Get(assessmentID, claims.CandidateID)
	if err != nil {
		response.Fail(c, http.StatusNotFound, response.ErrSessionNotActive)
		return
	}

	if err := sess.RecordCode(req.QuestionID, req.LanguageID, req.Source); err != nil {
		h.failFromEngine(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"recorded": true})
}

// RunSample godoc
// POST /api/v1/attempts/:assessment_id/questions/:question_id/run
// Executes code against a custom stdin. Never graded, never recorded.
func (h *SessionHandler) RunSample(c *gin.Context) {
	claims, assessmentID, ok := h.identify(c)
	if !ok {
		return
	}
	questionID, err := uuid.Parse(c.Param("question_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.SampleRunRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	sess, err := h.sessions.Get(assessmentID, claims.CandidateID)
	if err != nil {
		response.Fail(c, http.StatusNotFound, response.ErrSessionNotActive)
		return
	}

	result, err := sess.RunSample(c.Request.Context(), questionID, model.ExecutionRequest{
		SourceCode: req.Source,
		LanguageID: req.LanguageID,
		Stdin:      req.Stdin,
	})
	if err != nil {
		h.failFromEngine(c, err)
		return
	}
	response.Success(c, http.StatusOK, result)
}

// Evaluate godoc
// POST /api/v1/attempts/:assessment_id/questions/:question_id/evaluate
// Runs the question's full test-case suite and records the outcome.
func (h *SessionHandler) Evaluate(c *gin.Context) {
	claims, assessmentID, ok := h.identify(c)
	if !ok {
		return
	}
	questionID, err := uuid.Parse(c.Param("question_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.EvaluateRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	sess, err := h.sessions.Get(assessmentID, claims.CandidateID)
	if err != nil {
		response.Fail(c, http.StatusNotFound, response.ErrSessionNotActive)
		return
	}

	outcome, err := sess.EvaluateQuestion(c.Request.Context(), questionID, req.LanguageID, req.Source)
	if err != nil {
		h.failFromEngine(c, err)
		return
	}
	response.Success(c, http.StatusOK, outcome)
}

// Submit godoc
// POST /api/v1/attempts/:assessment_id/submit
// The manual submission trigger. Races against timer expiry and schedule end
// safely: all three funnel through the same guarded entry.
func (h *SessionHandler) Submit(c *gin.Context) {
	claims, assessmentID, ok := h.identify(c)
	if !ok {
		return
	}

	record, err := h.sessions.Submit(c.Request.Context(), assessmentID, claims.CandidateID)
	if err != nil {
		if errors.Is(err, service.ErrNoOpenSession) {
			response.Fail(c, http.StatusNotFound, response.ErrSessionNotActive)
			return
		}
		// Submission errors are blocking for the candidate: their work is
		// otherwise unsaved, so the client must show a retryable failure.
		response.Fail(c, http.StatusBadGateway, response.ErrSubmissionFailed)
		return
	}
	if record == nil {
		// Another trigger won the race; the attempt is already finalized.
		response.Success(c, http.StatusOK, gin.H{"already_submitted": true})
		return
	}
	response.Success(c, http.StatusOK, record)
}

// ─── Internal helpers ───────────────────────────────────────────────

func (h *SessionHandler) identify(c *gin.Context) (*service.Claims, uuid.UUID, bool) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return nil, uuid.Nil, false
	}
	assessmentID, err := uuid.Parse(c.Param("assessment_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return nil, uuid.Nil, false
	}
	return claims, assessmentID, true
}

func (h *SessionHandler) failFromEngine(c *gin.Context, err error) {
	switch engine.KindOf(err) {
	case engine.KindRateLimited:
		response.Fail(c, http.StatusTooManyRequests, response.ErrJudgeRateLimited)
	case engine.KindTimeout:
		response.Fail(c, http.StatusGatewayTimeout, response.ErrJudgeTimeout)
	case engine.KindNetwork:
		response.Fail(c, http.StatusBadGateway, response.ErrJudgeUnavailable)
	case engine.KindConflict:
		response.Fail(c, http.StatusConflict, response.ErrExecutionInFlight)
	case engine.KindValidation:
		response.Fail(c, http.StatusBadRequest, response.ErrValidation)
	default:
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}
