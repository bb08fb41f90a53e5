package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/tripradar/backend/internal/logger"
	"github.com/tripradar/backend/internal/model"
)

// QueueRepository holds pending notifications for non-immediate users under
// queue:{userId}:{frequency}, drained by the digest compiler. A companion
// set digestusers:{frequency} records which users currently have queued
// items so the scheduler can flush everyone.
type QueueRepository struct {
	rdb *redis.Client
}

func NewQueueRepository(rdb *redis.Client) *QueueRepository {
	return &QueueRepository{rdb: rdb}
}

func queueKey(userID uuid.UUID, freq model.NotificationFrequency) string {
	return "queue:" + userID.String() + ":" + string(freq)
}

func digestUsersKey(freq model.NotificationFrequency) string {
	return "digestusers:" + string(freq)
}

// Append enqueues a notification and refreshes the queue TTL. The append,
// expiry, and user-set registration run in one pipeline so a concurrent
// append is never lost.
func (r *QueueRepository) Append(ctx context.Context, userID uuid.UUID, freq model.NotificationFrequency, n model.DealNotification) error {
	raw, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("encoding queued notification %s: %w", n.ID, err)
	}

	key := queueKey(userID, freq)
	_, err = r.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, key, raw)
		pipe.Expire(ctx, key, QueueTTL)
		pipe.SAdd(ctx, digestUsersKey(freq), userID.String())
		pipe.Expire(ctx, digestUsersKey(freq), QueueTTL)
		return nil
	})
	if err != nil {
		return fmt.Errorf("appending to queue for user %s: %w", userID, err)
	}
	return nil
}

// Drain atomically reads and clears the user's queue. The read and delete
// run in one transaction, so every queued notification is handed to exactly
// one caller. Entries that fail to decode are dropped with a warning rather
// than failing the whole drain.
func (r *QueueRepository) Drain(ctx context.Context, userID uuid.UUID, freq model.NotificationFrequency) ([]model.DealNotification, error) {
	key := queueKey(userID, freq)

	var rangeCmd *redis.StringSliceCmd
	_, err := r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		rangeCmd = pipe.LRange(ctx, key, 0, -1)
		pipe.Del(ctx, key)
		pipe.SRem(ctx, digestUsersKey(freq), userID.String())
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("draining queue for user %s: %w", userID, err)
	}

	raws := rangeCmd.Val()
	notifications := make([]model.DealNotification, 0, len(raws))
	for _, raw := range raws {
		var n model.DealNotification
		if err := json.Unmarshal([]byte(raw), &n); err != nil {
			logger.FromContext(ctx).Warn("dropping undecodable queued notification",
				"user_id", userID.String(),
				"frequency", string(freq),
				"error", err.Error(),
			)
			continue
		}
		notifications = append(notifications, n)
	}
	return notifications, nil
}

// Users lists every user with queued notifications for the frequency.
func (r *QueueRepository) Users(ctx context.Context, freq model.NotificationFrequency) ([]uuid.UUID, error) {
	raw, err := r.rdb.SMembers(ctx, digestUsersKey(freq)).Result()
	if err != nil {
		return nil, fmt.Errorf("listing digest users for %s: %w", freq, err)
	}

	users := make([]uuid.UUID, 0, len(raw))
	for _, s := range raw {
		id, err := uuid.Parse(s)
		if err != nil {
			continue
		}
		users = append(users, id)
	}
	return users, nil
}
