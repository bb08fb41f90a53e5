package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/tripradar/backend/internal/model"
)

// ContextTTL bounds how long a traveler context stays fresh before the
// itinerary/budget subsystem must republish it.
const ContextTTL = 24 * time.Hour

// ContextRepository reads the traveler context published to userctx:{userId}
// by the itinerary/budget subsystem. A missing context is not an error; the
// scorer falls back to neutral defaults.
type ContextRepository struct {
	rdb *redis.Client
}

func NewContextRepository(rdb *redis.Client) *ContextRepository {
	return &ContextRepository{rdb: rdb}
}

func contextKey(userID uuid.UUID) string {
	return "userctx:" + userID.String()
}

func (r *ContextRepository) Get(ctx context.Context, userID uuid.UUID) (*model.UserContext, error) {
	raw, err := r.rdb.Get(ctx, contextKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting user context for %s: %w", userID, err)
	}

	var userCtx model.UserContext
	if err := json.Unmarshal([]byte(raw), &userCtx); err != nil {
		return nil, fmt.Errorf("decoding user context for %s: %w", userID, err)
	}
	return &userCtx, nil
}

// Set publishes a context document. Used by the itinerary collaborator and
// by tests.
func (r *ContextRepository) Set(ctx context.Context, userCtx *model.UserContext) error {
	raw, err := json.Marshal(userCtx)
	if err != nil {
		return fmt.Errorf("encoding user context for %s: %w", userCtx.UserID, err)
	}
	if err := r.rdb.Set(ctx, contextKey(userCtx.UserID), raw, ContextTTL).Err(); err != nil {
		return fmt.Errorf("setting user context for %s: %w", userCtx.UserID, err)
	}
	return nil
}
