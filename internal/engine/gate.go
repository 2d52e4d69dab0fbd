package engine

import (
	"time"

	"github.com/stemsi/exam-engine/internal/model"
)

// GateStatus is the scheduling gate's verdict for a point in time.
type GateStatus string

const (
	GateNotStarted GateStatus = "NOT_STARTED"
	GateActive     GateStatus = "ACTIVE"
	GateEnded      GateStatus = "ENDED"
)

// SchedulingGate decides, from a server-confirmed instant and the authored
// scheduling window, whether a session may run.
//
// The start boundary carries a small tolerance so clock-sync jitter cannot
// flip an already-open session back to "not started". The end boundary is
// strict: a session must never extend beyond the authored window.
type SchedulingGate struct {
	startTolerance time.Duration
}

// NewSchedulingGate creates a gate with the given start-boundary tolerance.
func NewSchedulingGate(startTolerance time.Duration) *SchedulingGate {
	return &SchedulingGate{startTolerance: startTolerance}
}

// Evaluate returns the gate status for now against the scheduling window.
// A nil scheduling means no window was authored: the session is immediately
// active and only the configured duration limits it.
func (g *SchedulingGate) Evaluate(now time.Time, sched *model.Scheduling) GateStatus {
	if sched == nil {
		return GateActive
	}
	if now.Before(sched.StartAt.Add(-g.startTolerance)) {
		return GateNotStarted
	}
	if !now.Before(sched.EndAt) {
		return GateEnded
	}
	return GateActive
}
