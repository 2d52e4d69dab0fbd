package model

import (
	"time"

	"github.com/google/uuid"
)

// QuestionKind discriminates the question union.
type QuestionKind string

const (
	QuestionKindMCQ    QuestionKind = "MCQ"
	QuestionKindCoding QuestionKind = "CODING"
)

// Scheduling is the authored availability window for an assessment.
// A nil Scheduling on the definition means the assessment is always open
// and only the configured duration applies.
type Scheduling struct {
	StartAt  time.Time `json:"start_at"`
	EndAt    time.Time `json:"end_at"`
	Timezone string    `json:"timezone"`
}

// Option is a single MCQ choice.
type Option struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// TestCase is one input/expected-output pair for a coding question.
// Expected output is compared after trimming trailing whitespace only.
type TestCase struct {
	Input          string `json:"input"`
	ExpectedOutput string `json:"expected_output"`
}

// Question is a tagged union over MCQ and coding questions. The Kind field
// decides which subset of fields is meaningful.
type Question struct {
	ID     uuid.UUID    `json:"id"`
	Kind   QuestionKind `json:"kind"`
	Text   string       `json:"text"`
	Points int          `json:"points"`

	// MCQ only.
	Options       []Option `json:"options,omitempty"`
	CorrectAnswer []string `json:"correct_answer,omitempty"` // Set of option IDs.

	// Coding only.
	StarterCode map[int]string `json:"starter_code,omitempty"` // Keyed by language ID.
	TestCases   []TestCase     `json:"test_cases,omitempty"`
}

// PointsOrDefault returns the question's point value, defaulting to 1 when
// the authoring side left it unset or invalid.
func (q *Question) PointsOrDefault() int {
	if q.Points <= 0 {
		return 1
	}
	return q.Points
}

// IsMCQ reports whether the question is multiple choice.
func (q *Question) IsMCQ() bool { return q.Kind == QuestionKindMCQ }

// IsCoding reports whether the question is a coding question.
func (q *Question) IsCoding() bool { return q.Kind == QuestionKindCoding }

// OptionIDAt maps a selected option index to its option ID.
// Returns "" when the index is out of range.
func (q *Question) OptionIDAt(index int) string {
	if index < 0 || index >= len(q.Options) {
		return ""
	}
	return q.Options[index].ID
}

// IsCorrectOption reports set membership of the option ID in the answer key.
// Membership, not positional identity: the authoring side may reorder options.
func (q *Question) IsCorrectOption(optionID string) bool {
	if optionID == "" {
		return false
	}
	for _, id := range q.CorrectAnswer {
		if id == optionID {
			return true
		}
	}
	return false
}

// AssessmentDefinition is the immutable assessment blueprint fetched from the
// authoring collaborator once at session start. The engine never mutates it.
type AssessmentDefinition struct {
	ID              uuid.UUID   `json:"id"`
	Title           string      `json:"title"`
	Questions       []Question  `json:"questions"`
	DurationMinutes int         `json:"duration_minutes"`
	Scheduling      *Scheduling `json:"scheduling,omitempty"`
	MaxAttempts     int         `json:"max_attempts"`
}

// QuestionByID returns the question with the given ID, or nil.
func (a *AssessmentDefinition) QuestionByID(id uuid.UUID) *Question {
	for i := range a.Questions {
		if a.Questions[i].ID == id {
			return &a.Questions[i]
		}
	}
	return nil
}
