package timerstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/stemsi/exam-engine/internal/clockwork"
	"github.com/stemsi/exam-engine/internal/config"
)

// RedisStore is the production TimerPersistence adapter. Entries expire
// server-side at the staleness window, and Load re-checks the saved-at
// timestamp so a loosely configured Redis cannot hand back stale state.
type RedisStore struct {
	rdb       *redis.Client
	clock     clockwork.Clock
	staleness time.Duration
}

// NewRedisStore creates a Redis-backed Store.
func NewRedisStore(rdb *redis.Client, clock clockwork.Clock, staleness time.Duration) *RedisStore {
	return &RedisStore{rdb: rdb, clock: clock, staleness: staleness}
}

func (s *RedisStore) Save(ctx context.Context, assessmentID uuid.UUID, candidateID int, timeLeftSeconds int) error {
	entry := Entry{
		TimeLeftSeconds: timeLeftSeconds,
		SavedAtEpochMs:  s.clock.Now().UnixMilli(),
	}
	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal timer entry: %w", err)
	}
	key := config.CacheKey.SessionTimerKey(assessmentID.String(), candidateID)
	if err := s.rdb.Set(ctx, key, raw, s.staleness).Err(); err != nil {
		return fmt.Errorf("save timer entry: %w", err)
	}
	return nil
}

func (s *RedisStore) Load(ctx context.Context, assessmentID uuid.UUID, candidateID int) (*Entry, error) {
	key := config.CacheKey.SessionTimerKey(assessmentID.String(), candidateID)
	raw, err := s.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load timer entry: %w", err)
	}

	var entry Entry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		return nil, fmt.Errorf("decode timer entry: %w", err)
	}

	age := s.clock.Now().UnixMilli() - entry.SavedAtEpochMs
	if age > s.staleness.Milliseconds() {
		return nil, nil // Stale entries are discarded, not resumed.
	}
	return &entry, nil
}

func (s *RedisStore) Clear(ctx context.Context, assessmentID uuid.UUID, candidateID int) error {
	key := config.CacheKey.SessionTimerKey(assessmentID.String(), candidateID)
	if err := s.rdb.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("clear timer entry: %w", err)
	}
	return nil
}
