// Package timerstore persists session clock state so an attempt survives
// reloads and reconnects without gaining or losing time.
package timerstore

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Entry is one persisted clock snapshot.
type Entry struct {
	TimeLeftSeconds int   `json:"time_left_seconds"`
	SavedAtEpochMs  int64 `json:"saved_at_epoch_ms"`
}

// AdjustedTimeLeft returns the stored remaining time minus the wall-clock
// seconds elapsed since the snapshot was taken, floored at zero.
func (e Entry) AdjustedTimeLeft(now time.Time) int {
	elapsed := int((now.UnixMilli() - e.SavedAtEpochMs) / 1000)
	left := e.TimeLeftSeconds - elapsed
	if left < 0 {
		return 0
	}
	return left
}

// Store is the TimerPersistence port. Load returns (nil, nil) when no entry
// exists or the stored entry is older than the staleness window.
//
// Clear is called exactly once, after a confirmed successful submission, and
// is the only deletion path; the staleness window is the backstop when that
// call never happens.
type Store interface {
	Save(ctx context.Context, assessmentID uuid.UUID, candidateID int, timeLeftSeconds int) error
	Load(ctx context.Context, assessmentID uuid.UUID, candidateID int) (*Entry, error)
	Clear(ctx context.Context, assessmentID uuid.UUID, candidateID int) error
}
