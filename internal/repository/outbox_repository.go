package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/tripradar/backend/internal/model"
)

// OutboxRepository is the shipped delivery sink: accepted notifications are
// handed off to outbox:{userId} for the external transport collaborator
// (push, email, socket) to consume. The engine's contract ends at this
// handoff; device-level delivery is not its concern.
type OutboxRepository struct {
	rdb *redis.Client
}

func NewOutboxRepository(rdb *redis.Client) *OutboxRepository {
	return &OutboxRepository{rdb: rdb}
}

func outboxKey(userID uuid.UUID) string {
	return "outbox:" + userID.String()
}

// Deliver appends the notification to the user's outbox and refreshes its
// TTL.
func (r *OutboxRepository) Deliver(ctx context.Context, n model.DealNotification) error {
	raw, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("encoding notification %s: %w", n.ID, err)
	}

	key := outboxKey(n.UserID)
	_, err = r.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, key, raw)
		pipe.Expire(ctx, key, OutboxTTL)
		return nil
	})
	if err != nil {
		return fmt.Errorf("delivering notification %s to outbox: %w", n.ID, err)
	}
	return nil
}

// Pending returns undelivered notifications without consuming them.
func (r *OutboxRepository) Pending(ctx context.Context, userID uuid.UUID) ([]model.DealNotification, error) {
	raws, err := r.rdb.LRange(ctx, outboxKey(userID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("listing outbox for user %s: %w", userID, err)
	}

	notifications := make([]model.DealNotification, 0, len(raws))
	for _, raw := range raws {
		var n model.DealNotification
		if err := json.Unmarshal([]byte(raw), &n); err != nil {
			continue
		}
		notifications = append(notifications, n)
	}
	return notifications, nil
}
