// Package resultstore persists finished SubmissionRecords. Two adapters
// implement the same sink: a PostgreSQL store for deployments that own their
// results, and an HTTP client for the external persistence collaborator.
package resultstore

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stemsi/exam-engine/internal/model"
)

// AttemptCounter reports how many attempts a candidate has already submitted
// for an assessment. Used to enforce MaxAttempts at session open.
type AttemptCounter interface {
	CountSubmitted(ctx context.Context, assessmentID uuid.UUID, candidateID int) (int, error)
}

// PostgresStore writes submission records to the submission_results table.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a PostgreSQL-backed result sink.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Persist inserts the record and returns the generated row ID. The engine
// calls this at most once per successful submission, so no upsert or
// dedup clause is needed here.
func (s *PostgresStore) Persist(ctx context.Context, record *model.SubmissionRecord) (string, error) {
	questions, err := json.Marshal(record.Questions)
	if err != nil {
		return "", fmt.Errorf("marshal question results: %w", err)
	}

	var id uuid.UUID
	err = s.pool.QueryRow(ctx,
		`INSERT INTO submission_results
		   (assessment_id, candidate_id, questions, score, max_score, percentage,
		    accuracy, num_correct, num_incorrect, num_unattempted,
		    time_spent_seconds, trigger, submitted_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		 RETURNING id`,
		record.AssessmentID, record.CandidateID, questions,
		record.Score, record.MaxScore, record.Percentage, record.Accuracy,
		record.NumCorrect, record.NumIncorrect, record.NumUnattempted,
		record.TimeSpentSeconds, string(record.Trigger), record.SubmittedAt,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("insert submission result: %w", err)
	}
	return id.String(), nil
}

// CountSubmitted returns the number of prior submitted attempts.
func (s *PostgresStore) CountSubmitted(ctx context.Context, assessmentID uuid.UUID, candidateID int) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM submission_results
		 WHERE assessment_id = $1 AND candidate_id = $2`,
		assessmentID, candidateID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count submitted attempts: %w", err)
	}
	return n, nil
}
