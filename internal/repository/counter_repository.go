package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// CounterRepository gates the daily notification cap with
// dailycount:{userId}:{date} keys. Increments are atomic INCR+EXPIRE so
// concurrent evaluations never lose an update.
type CounterRepository struct {
	rdb *redis.Client
}

func NewCounterRepository(rdb *redis.Client) *CounterRepository {
	return &CounterRepository{rdb: rdb}
}

func counterKey(userID uuid.UUID, day time.Time) string {
	return "dailycount:" + userID.String() + ":" + day.UTC().Format("2006-01-02")
}

// Get returns the current count for the user's day without incrementing.
// A missing key counts as zero.
func (r *CounterRepository) Get(ctx context.Context, userID uuid.UUID, day time.Time) (int, error) {
	raw, err := r.rdb.Get(ctx, counterKey(userID, day)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("getting daily count for user %s: %w", userID, err)
	}

	count, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("decoding daily count for user %s: %w", userID, err)
	}
	return count, nil
}

// Increment bumps the counter and sets the TTL on first increment.
func (r *CounterRepository) Increment(ctx context.Context, userID uuid.UUID, day time.Time) (int64, error) {
	key := counterKey(userID, day)

	count, err := r.rdb.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("incrementing daily count for user %s: %w", userID, err)
	}

	// First increment establishes the window.
	if count == 1 {
		_ = r.rdb.Expire(ctx, key, CounterTTL).Err()
	}

	return count, nil
}
