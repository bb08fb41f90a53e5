package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/tripradar/backend/internal/model"
)

// PreferenceRepository stores notification preferences as JSON documents
// under pref:{userId}. Preferences never expire and are never deleted.
type PreferenceRepository struct {
	rdb *redis.Client
}

func NewPreferenceRepository(rdb *redis.Client) *PreferenceRepository {
	return &PreferenceRepository{rdb: rdb}
}

func prefKey(userID uuid.UUID) string {
	return "pref:" + userID.String()
}

// Get returns the stored preferences, or ErrPreferencesNotFound when the
// user has never configured any.
func (r *PreferenceRepository) Get(ctx context.Context, userID uuid.UUID) (*model.NotificationPreferences, error) {
	raw, err := r.rdb.Get(ctx, prefKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrPreferencesNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting preferences for user %s: %w", userID, err)
	}

	var prefs model.NotificationPreferences
	if err := json.Unmarshal([]byte(raw), &prefs); err != nil {
		return nil, fmt.Errorf("decoding preferences for user %s: %w", userID, err)
	}
	return &prefs, nil
}

// Set persists the full preference document.
func (r *PreferenceRepository) Set(ctx context.Context, prefs *model.NotificationPreferences) error {
	raw, err := json.Marshal(prefs)
	if err != nil {
		return fmt.Errorf("encoding preferences for user %s: %w", prefs.UserID, err)
	}

	if err := r.rdb.Set(ctx, prefKey(prefs.UserID), raw, 0).Err(); err != nil {
		return fmt.Errorf("setting preferences for user %s: %w", prefs.UserID, err)
	}
	return nil
}
