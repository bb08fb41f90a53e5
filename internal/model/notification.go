package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type NotificationType string

const (
	NotificationTypeNewDeal        NotificationType = "new_deal"
	NotificationTypeExpiringSoon   NotificationType = "expiring_soon"
	NotificationTypeBudgetMatch    NotificationType = "budget_match"
	NotificationTypeFlashDeal      NotificationType = "flash_deal"
	NotificationTypeRecommendation NotificationType = "personalized_recommendation"
)

type NotificationPriority string

const (
	PriorityLow    NotificationPriority = "low"
	PriorityMedium NotificationPriority = "medium"
	PriorityHigh   NotificationPriority = "high"
	PriorityUrgent NotificationPriority = "urgent"
)

type NotificationFrequency string

const (
	FrequencyImmediate NotificationFrequency = "immediate"
	FrequencyDaily     NotificationFrequency = "daily"
	FrequencyWeekly    NotificationFrequency = "weekly"
)

func (f NotificationFrequency) Valid() bool {
	switch f {
	case FrequencyImmediate, FrequencyDaily, FrequencyWeekly:
		return true
	}
	return false
}

// TriggerContext identifies what caused a notification evaluation.
type TriggerContext string

const (
	TriggerLocationChange TriggerContext = "location_change"
	TriggerBudgetUpdate   TriggerContext = "budget_update"
	TriggerScheduledCheck TriggerContext = "scheduled_check"
	TriggerManual         TriggerContext = "manual"
)

func (t TriggerContext) Valid() bool {
	switch t {
	case TriggerLocationChange, TriggerBudgetUpdate, TriggerScheduledCheck, TriggerManual:
		return true
	}
	return false
}

// QuietHours is a user-configured time-of-day window during which no
// notifications are sent. Start and End are "HH:MM" in the user's clock.
// Overnight windows (Start > End, e.g. 22:00-08:00) wrap past midnight.
type QuietHours struct {
	Enabled bool   `json:"enabled"`
	Start   string `json:"start"`
	End     string `json:"end"`
}

// Contains reports whether t falls inside the quiet window. A window with
// unparseable bounds is treated as disabled rather than blocking delivery.
func (q QuietHours) Contains(t time.Time) bool {
	if !q.Enabled {
		return false
	}
	start, err := parseMinuteOfDay(q.Start)
	if err != nil {
		return false
	}
	end, err := parseMinuteOfDay(q.End)
	if err != nil {
		return false
	}
	now := t.Hour()*60 + t.Minute()
	if start > end {
		// Overnight wrap: in window when now >= start OR now <= end.
		return now >= start || now <= end
	}
	return now >= start && now <= end
}

func parseMinuteOfDay(s string) (int, error) {
	tm, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("parsing time of day %q: %w", s, err)
	}
	return tm.Hour()*60 + tm.Minute(), nil
}

// NotificationPreferences is a user's delivery policy. Created with defaults
// on first read, mutated only through explicit updates, never deleted.
type NotificationPreferences struct {
	UserID                uuid.UUID             `json:"userId"`
	Enabled               bool                  `json:"enabled"`
	NewDealEnabled        bool                  `json:"newDealEnabled"`
	ExpiringSoonEnabled   bool                  `json:"expiringSoonEnabled"`
	BudgetMatchEnabled    bool                  `json:"budgetMatchEnabled"`
	FlashDealEnabled      bool                  `json:"flashDealEnabled"`
	RecommendationEnabled bool                  `json:"recommendationEnabled"`
	Frequency             NotificationFrequency `json:"frequency"`
	QuietHours            QuietHours            `json:"quietHours"`
	MaxDailyNotifications int                   `json:"maxDailyNotifications"`
	UpdatedAt             time.Time             `json:"updatedAt"`
}

// DefaultPreferences returns the preferences assigned to a user who has
// never configured any.
func DefaultPreferences(userID uuid.UUID) *NotificationPreferences {
	return &NotificationPreferences{
		UserID:                userID,
		Enabled:               true,
		NewDealEnabled:        true,
		ExpiringSoonEnabled:   true,
		BudgetMatchEnabled:    true,
		FlashDealEnabled:      true,
		RecommendationEnabled: true,
		Frequency:             FrequencyImmediate,
		QuietHours:            QuietHours{Enabled: false, Start: "22:00", End: "08:00"},
		MaxDailyNotifications: 5,
	}
}

// TypeEnabled reports whether the given notification type is switched on.
func (p *NotificationPreferences) TypeEnabled(t NotificationType) bool {
	switch t {
	case NotificationTypeNewDeal:
		return p.NewDealEnabled
	case NotificationTypeExpiringSoon:
		return p.ExpiringSoonEnabled
	case NotificationTypeBudgetMatch:
		return p.BudgetMatchEnabled
	case NotificationTypeFlashDeal:
		return p.FlashDealEnabled
	case NotificationTypeRecommendation:
		return p.RecommendationEnabled
	}
	return false
}

// NotificationMetadata is the summary block attached to every notification.
type NotificationMetadata struct {
	RelevanceScore   float64         `json:"relevanceScore"`
	PotentialSavings decimal.Decimal `json:"potentialSavings"`
	Category         DealCategory    `json:"category,omitempty"`
	MerchantName     string          `json:"merchantName,omitempty"`
}

// DealNotification is a delivery-ready notification produced by the policy
// engine. Deal is nil for digest notifications, which summarize several
// queued members.
type DealNotification struct {
	ID        uuid.UUID            `json:"id"`
	UserID    uuid.UUID            `json:"userId"`
	DealID    string               `json:"dealId,omitempty"`
	Type      NotificationType     `json:"type"`
	Title     string               `json:"title"`
	Message   string               `json:"message"`
	Deal      *ScoredDeal          `json:"deal,omitempty"`
	Priority  NotificationPriority `json:"priority"`
	CreatedAt time.Time            `json:"createdAt"`
	ExpiresAt time.Time            `json:"expiresAt"`
	ActionRef string               `json:"actionRef,omitempty"`
	Metadata  NotificationMetadata `json:"metadata"`
}
