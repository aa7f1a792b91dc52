package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"creatorfeed/internal/domain"
	"creatorfeed/pkg/logger"
	"creatorfeed/pkg/redis"
)

// RedisRunState keeps the full-run lock and the last summary in Redis
type RedisRunState struct {
	client  *redis.Client
	lockTTL time.Duration
	logger  *logger.Logger
}

// NewRedisRunState creates a Redis backed RunState. lockTTL bounds how long a
// crashed run can block the next one.
func NewRedisRunState(client *redis.Client, lockTTL time.Duration, log *logger.Logger) *RedisRunState {
	if lockTTL <= 0 {
		lockTTL = redis.TTLRunLock
	}
	return &RedisRunState{client: client, lockTTL: lockTTL, logger: log.Named("run_state")}
}

// Acquire takes the lock for scope with a random token
func (s *RedisRunState) Acquire(ctx context.Context, scope string) (func(), bool, error) {
	key := s.client.KeyBuilder.KeyRunLock(scope)
	token := uuid.NewString()

	ok, err := s.client.SetNX(ctx, key, token, s.lockTTL)
	if err != nil {
		return nil, false, fmt.Errorf("failed to acquire run lock: %w", err)
	}
	if !ok {
		return nil, false, nil
	}

	release := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		released, err := s.client.ReleaseLock(ctx, key, token)
		if err != nil {
			s.logger.WithError(err).WithField("scope", scope).Warn("Failed to release run lock")
			return
		}
		if !released {
			s.logger.WithField("scope", scope).Warn("Run lock expired before release")
		}
	}
	return release, true, nil
}

// SaveLast stores summary as the most recent run
func (s *RedisRunState) SaveLast(ctx context.Context, summary *domain.IngestionSummary) error {
	data, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("failed to marshal run summary: %w", err)
	}
	return s.client.Set(ctx, s.client.KeyBuilder.KeyLastRun(), data, redis.TTLLastRun)
}

// Last returns the most recent run, or nil when none is stored
func (s *RedisRunState) Last(ctx context.Context) (*domain.IngestionSummary, error) {
	raw, err := s.client.Get(ctx, s.client.KeyBuilder.KeyLastRun())
	if redis.IsNil(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read run summary: %w", err)
	}

	var summary domain.IngestionSummary
	if err := json.Unmarshal([]byte(raw), &summary); err != nil {
		return nil, fmt.Errorf("failed to decode run summary: %w", err)
	}
	if summary.RunID == uuid.Nil {
		return nil, nil
	}
	return &summary, nil
}
