package handler

import (
	"context"

	"github.com/google/uuid"

	"github.com/tripradar/backend/internal/model"
	"github.com/tripradar/backend/internal/service"
)

// NotificationServiceInterface for handler testing
type NotificationServiceInterface interface {
	NotifyMatchingDeals(ctx context.Context, userID uuid.UUID, deals []model.Deal, trigger model.TriggerContext) ([]model.DealNotification, error)
	GetPreferences(ctx context.Context, userID uuid.UUID) (*model.NotificationPreferences, error)
	UpdatePreferences(ctx context.Context, userID uuid.UUID, input service.UpdatePreferencesInput) (*model.NotificationPreferences, error)
}

// ScoringServiceInterface for handler testing
type ScoringServiceInterface interface {
	ScoreAll(deals []model.Deal, userCtx model.UserContext) []model.ScoredDeal
}

// ClusterServiceInterface for handler testing
type ClusterServiceInterface interface {
	Cluster(deals []model.ScoredDeal) []model.Cluster
}

// DigestServiceInterface for handler testing
type DigestServiceInterface interface {
	ProcessQueuedNotifications(ctx context.Context, userID uuid.UUID, freq model.NotificationFrequency) (*model.DealNotification, error)
}
