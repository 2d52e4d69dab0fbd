package model

import (
	"time"

	"github.com/google/uuid"
)

// QuestionResult is the per-question entry of a SubmissionRecord.
type QuestionResult struct {
	QuestionID uuid.UUID `json:"question_id"`
	Selected   string    `json:"selected"` // Option ID for MCQ, language ID string for coding.
	IsCorrect  bool      `json:"is_correct"`
	Points     int       `json:"points"`
	Awarded    int       `json:"awarded"`
}

// SubmissionRecord is the submission-time-only artifact derived from the
// session state. It is built once and sent once per attempt.
type SubmissionRecord struct {
	AssessmentID     uuid.UUID        `json:"assessment_id"`
	CandidateID      int              `json:"candidate_id"`
	Questions        []QuestionResult `json:"questions"`
	Score            int              `json:"score"`
	MaxScore         int              `json:"max_score"`
	Percentage       int              `json:"percentage"`
	Accuracy         int              `json:"accuracy"`
	NumCorrect       int              `json:"num_correct"`
	NumIncorrect     int              `json:"num_incorrect"`
	NumUnattempted   int              `json:"num_unattempted"`
	TimeSpentSeconds int              `json:"time_spent_seconds"`
	Trigger          SubmitTrigger    `json:"trigger"`
	SubmittedAt      time.Time        `json:"submitted_at"`
}

// SubmitTrigger identifies what forced the submission.
type SubmitTrigger string

const (
	TriggerManual      SubmitTrigger = "MANUAL"
	TriggerTimerExpiry SubmitTrigger = "TIMER_EXPIRY"
	TriggerScheduleEnd SubmitTrigger = "SCHEDULE_END"
)

// ─── Request payloads ───────────────────────────────────────────────

// RecordMCQRequest is the payload for recording an MCQ selection.
type RecordMCQRequest struct {
	QuestionID  uuid.UUID `json:"question_id" binding:"required"`
	OptionIndex *int      `json:"option_index" binding:"required,min=0"`
}

// RecordCodeRequest is the payload for recording coding-question source.
type RecordCodeRequest struct {
	QuestionID uuid.UUID `json:"question_id" binding:"required"`
	LanguageID int       `json:"language_id" binding:"required,min=1"`
	Source     string    `json:"source"`
}

// SampleRunRequest is the payload for a non-grading "try it" execution.
type SampleRunRequest struct {
	LanguageID int    `json:"language_id" binding:"required,min=1"`
	Source     string `json:"source" binding:"required"`
	Stdin      string `json:"stdin"`
}

// EvaluateRequest is the payload for a full test-case evaluation.
type EvaluateRequest struct {
	LanguageID int    `json:"language_id" binding:"required,min=1"`
	Source     string `json:"source" binding:"required"`
}
