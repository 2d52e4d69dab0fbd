package timerstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/stemsi/exam-engine/internal/clockwork"
)

// MemoryStore is an in-memory Store for tests and single-process setups.
type MemoryStore struct {
	mu        sync.Mutex
	entries   map[string]Entry
	clock     clockwork.Clock
	staleness time.Duration
}

// NewMemoryStore creates an in-memory Store.
func NewMemoryStore(clock clockwork.Clock, staleness time.Duration) *MemoryStore {
	return &MemoryStore{
		entries:   make(map[string]Entry),
		clock:     clock,
		staleness: staleness,
	}
}

func memKey(assessmentID uuid.UUID, candidateID int) string {
	return fmt.Sprintf("%s/%d", assessmentID, candidateID)
}

func (s *MemoryStore) Save(_ context.Context, assessmentID uuid.UUID, candidateID int, timeLeftSeconds int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[memKey(assessmentID, candidateID)] = Entry{
		TimeLeftSeconds: timeLeftSeconds,
		SavedAtEpochMs:  s.clock.Now().UnixMilli(),
	}
	return nil
}

func (s *MemoryStore) Load(_ context.Context, assessmentID uuid.UUID, candidateID int) (*Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[memKey(assessmentID, candidateID)]
	if !ok {
		return nil, nil
	}
	if s.clock.Now().UnixMilli()-entry.SavedAtEpochMs > s.staleness.Milliseconds() {
		return nil, nil
	}
	return &entry, nil
}

func (s *MemoryStore) Clear(_ context.Context, assessmentID uuid.UUID, candidateID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, memKey(assessmentID, candidateID))
	return nil
}
