package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// HistoryRepository tracks recently-notified deal ids per user under
// history:{userId}: a capped list (newest first, oldest evicted past
// HistoryCap) with a rolling TTL. Used by the policy engine for dedupe.
type HistoryRepository struct {
	rdb *redis.Client
}

func NewHistoryRepository(rdb *redis.Client) *HistoryRepository {
	return &HistoryRepository{rdb: rdb}
}

func historyKey(userID uuid.UUID) string {
	return "history:" + userID.String()
}

// Contains reports whether the deal id is in the user's retention window.
func (r *HistoryRepository) Contains(ctx context.Context, userID uuid.UUID, dealID string) (bool, error) {
	_, err := r.rdb.LPos(ctx, historyKey(userID), dealID, redis.LPosArgs{}).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking history for user %s: %w", userID, err)
	}
	return true, nil
}

// Append records a notified deal id, trims to the cap, and refreshes the
// TTL. The three commands run in one pipeline so concurrent appends
// interleave without losing writes.
func (r *HistoryRepository) Append(ctx context.Context, userID uuid.UUID, dealID string) error {
	key := historyKey(userID)
	_, err := r.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, key, dealID)
		pipe.LTrim(ctx, key, 0, HistoryCap-1)
		pipe.Expire(ctx, key, HistoryTTL)
		return nil
	})
	if err != nil {
		return fmt.Errorf("appending history for user %s: %w", userID, err)
	}
	return nil
}

// List returns the retained deal ids, newest first.
func (r *HistoryRepository) List(ctx context.Context, userID uuid.UUID) ([]string, error) {
	ids, err := r.rdb.LRange(ctx, historyKey(userID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("listing history for user %s: %w", userID, err)
	}
	return ids, nil
}
