package model

import (
	"github.com/google/uuid"
)

// Phase enumerates the forward-only session lifecycle.
type Phase string

const (
	PhaseNotStarted Phase = "NOT_STARTED"
	PhaseActive     Phase = "ACTIVE"
	PhaseEnded      Phase = "ENDED"
	PhaseSubmitted  Phase = "SUBMITTED"
)

// TestResult is the outcome of one test case run.
type TestResult struct {
	Passed         bool   `json:"passed"`
	Ran            bool   `json:"ran"` // False when skipped after a rate-limit stop.
	Input          string `json:"input"`
	ExpectedOutput string `json:"expected_output"`
	ActualOutput   string `json:"actual_output"`
}

// ExecutionOutcome is the aggregate result of the last full test-case run
// for one coding question. Sample runs never produce one.
type ExecutionOutcome struct {
	Success     bool         `json:"success"`
	TestResults []TestResult `json:"test_results"`
}

// SessionState is the mutable root owned by the session engine for the
// lifetime of one attempt. It is created when the candidate opens the
// assessment and cleared from persistence on successful submission.
type SessionState struct {
	AssessmentID    uuid.UUID                       `json:"assessment_id"`
	CandidateID     int                             `json:"candidate_id"`
	Phase           Phase                           `json:"phase"`
	TimeLeftSeconds int                             `json:"time_left_seconds"`
	MCQAnswers      map[uuid.UUID]int               `json:"mcq_answers"`
	Code            map[uuid.UUID]map[int]string    `json:"code"` // questionID → languageID → source
	Outcomes        map[uuid.UUID]*ExecutionOutcome `json:"outcomes"`
	SelectedLang    map[uuid.UUID]int               `json:"selected_language"`
}

// NewSessionState returns an empty state in the NotStarted phase.
func NewSessionState(assessmentID uuid.UUID, candidateID int) *SessionState {
	return &SessionState{
		AssessmentID: assessmentID,
		CandidateID:  candidateID,
		Phase:        PhaseNotStarted,
		MCQAnswers:   make(map[uuid.UUID]int),
		Code:         make(map[uuid.UUID]map[int]string),
		Outcomes:     make(map[uuid.UUID]*ExecutionOutcome),
		SelectedLang: make(map[uuid.UUID]int),
	}
}

// CodeFor returns the stored source for a question in the given language.
func (s *SessionState) CodeFor(questionID uuid.UUID, languageID int) string {
	byLang, ok := s.Code[questionID]
	if !ok {
		return ""
	}
	return byLang[languageID]
}

// Attempted reports whether the question counts as attempted: an MCQ with a
// recorded selection, or a coding question with non-empty source for its
// currently selected language.
func (s *SessionState) Attempted(q *Question) bool {
	if q.IsMCQ() {
		_, ok := s.MCQAnswers[q.ID]
		return ok
	}
	lang, ok := s.SelectedLang[q.ID]
	if !ok {
		return false
	}
	return s.CodeFor(q.ID, lang) != ""
}
