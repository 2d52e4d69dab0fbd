package engine

import (
	"sync"

	"github.com/google/uuid"

	"github.com/stemsi/exam-engine/internal/model"
)

// AnswerLedger accumulates MCQ selections and coding outcomes into the
// session state. Pure bookkeeping, last-write-wins per question.
type AnswerLedger struct {
	mu    sync.Mutex
	state *model.SessionState
}

// NewAnswerLedger wraps the given state. The ledger is the only writer of the
// answer maps for the lifetime of the attempt.
func NewAnswerLedger(state *model.SessionState) *AnswerLedger {
	return &AnswerLedger{state: state}
}

// RecordMCQ stores the selected option index for a question.
func (l *AnswerLedger) RecordMCQ(questionID uuid.UUID, optionIndex int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.state.MCQAnswers[questionID] = optionIndex
}

// RecordCode stores source for a question in a language and marks that
// language as the question's selected one.
func (l *AnswerLedger) RecordCode(questionID uuid.UUID, languageID int, source string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	byLang, ok := l.state.Code[questionID]
	if !ok {
		byLang = make(map[int]string)
		l.state.Code[questionID] = byLang
	}
	byLang[languageID] = source
	l.state.SelectedLang[questionID] = languageID
}

// RecordExecutionOutcome stores the aggregate result of a full test-case run.
// Only full runs land here; sample runs never touch the outcome map.
func (l *AnswerLedger) RecordExecutionOutcome(questionID uuid.UUID, outcome *model.ExecutionOutcome) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.state.Outcomes[questionID] = outcome
}

// Attempted reports whether the question counts as attempted, per
// SessionState.Attempted, against the live state.
func (l *AnswerLedger) Attempted(q *model.Question) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state.Attempted(q)
}

// Snapshot returns a deep copy of the answer-bearing slice of the state,
// frozen for scoring.
func (l *AnswerLedger) Snapshot() *model.SessionState {
	l.mu.Lock()
	defer l.mu.Unlock()

	snap := model.NewSessionState(l.state.AssessmentID, l.state.CandidateID)
	snap.Phase = l.state.Phase
	snap.TimeLeftSeconds = l.state.TimeLeftSeconds
	for qid, idx := range l.state.MCQAnswers {
		snap.MCQAnswers[qid] = idx
	}
	for qid, byLang := range l.state.Code {
		cp := make(map[int]string, len(byLang))
		for lang, src := range byLang {
			cp[lang] = src
		}
		snap.Code[qid] = cp
	}
	for qid, outcome := range l.state.Outcomes {
		oc := &model.ExecutionOutcome{Success: outcome.Success}
		oc.TestResults = append(oc.TestResults, outcome.TestResults...)
		snap.Outcomes[qid] = oc
	}
	for qid, lang := range l.state.SelectedLang {
		snap.SelectedLang[qid] = lang
	}
	return snap
}
