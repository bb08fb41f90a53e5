package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/tripradar/backend/internal/apperror"
	"github.com/tripradar/backend/internal/logger"
	"github.com/tripradar/backend/internal/model"
	"github.com/tripradar/backend/internal/repository"
)

// Notification expiry by priority, independent of the deal's own validUntil.
var priorityExpiry = map[model.NotificationPriority]time.Duration{
	model.PriorityUrgent: 2 * time.Hour,
	model.PriorityHigh:   6 * time.Hour,
	model.PriorityMedium: 24 * time.Hour,
	model.PriorityLow:    72 * time.Hour,
}

// PreferenceRepositoryInterface defines the contract for preference storage.
type PreferenceRepositoryInterface interface {
	Get(ctx context.Context, userID uuid.UUID) (*model.NotificationPreferences, error)
	Set(ctx context.Context, prefs *model.NotificationPreferences) error
}

// HistoryRepositoryInterface tracks recently-notified deal ids for dedupe.
type HistoryRepositoryInterface interface {
	Contains(ctx context.Context, userID uuid.UUID, dealID string) (bool, error)
	Append(ctx context.Context, userID uuid.UUID, dealID string) error
}

// CounterRepositoryInterface gates the daily notification cap.
type CounterRepositoryInterface interface {
	Get(ctx context.Context, userID uuid.UUID, day time.Time) (int, error)
	Increment(ctx context.Context, userID uuid.UUID, day time.Time) (int64, error)
}

// QueueRepositoryInterface holds notifications pending digest compilation.
type QueueRepositoryInterface interface {
	Append(ctx context.Context, userID uuid.UUID, freq model.NotificationFrequency, n model.DealNotification) error
	Drain(ctx context.Context, userID uuid.UUID, freq model.NotificationFrequency) ([]model.DealNotification, error)
	Users(ctx context.Context, freq model.NotificationFrequency) ([]uuid.UUID, error)
}

// UserContextSource supplies the traveler context maintained by the
// itinerary/budget subsystem.
type UserContextSource interface {
	Get(ctx context.Context, userID uuid.UUID) (*model.UserContext, error)
}

// DeliverySink accepts notifications for transport. The engine guarantees
// exactly-once handoff to the sink, not device-level delivery.
type DeliverySink interface {
	Deliver(ctx context.Context, n model.DealNotification) error
}

// NotificationService is the stateful policy layer deciding whether, when,
// and how a user is notified about matching deals.
type NotificationService struct {
	scorer   *ScoringService
	prefs    PreferenceRepositoryInterface
	history  HistoryRepositoryInterface
	counters CounterRepositoryInterface
	queue    QueueRepositoryInterface
	contexts UserContextSource
	sink     DeliverySink
	now      func() time.Time
}

func NewNotificationService(
	scorer *ScoringService,
	prefs PreferenceRepositoryInterface,
	history HistoryRepositoryInterface,
	counters CounterRepositoryInterface,
	queue QueueRepositoryInterface,
	contexts UserContextSource,
	sink DeliverySink,
) *NotificationService {
	return &NotificationService{
		scorer:   scorer,
		prefs:    prefs,
		history:  history,
		counters: counters,
		queue:    queue,
		contexts: contexts,
		sink:     sink,
		now:      time.Now,
	}
}

// SetClock overrides the engine's clock. Tests only.
func (s *NotificationService) SetClock(now func() time.Time) {
	s.now = now
}

// NotifyMatchingDeals scores the candidates, applies the delivery policy,
// and routes accepted notifications by the user's frequency preference.
// Store unavailability degrades to an empty result with a warning; only a
// missing userID is a hard error.
func (s *NotificationService) NotifyMatchingDeals(ctx context.Context, userID uuid.UUID, deals []model.Deal, trigger model.TriggerContext) ([]model.DealNotification, error) {
	if userID == uuid.Nil {
		return nil, apperror.BadRequest("user id is required")
	}

	log := logger.FromContext(ctx).With("user_id", userID.String(), "trigger", string(trigger))
	now := s.now()

	prefs, err := s.loadPreferences(ctx, userID)
	if err != nil {
		log.Warn("preference store unavailable, producing no notifications", "error", err.Error())
		return []model.DealNotification{}, nil
	}
	if !prefs.Enabled {
		return []model.DealNotification{}, nil
	}
	if prefs.QuietHours.Contains(now) {
		log.Debug("inside quiet hours, suppressing all candidates")
		return []model.DealNotification{}, nil
	}

	dailyCount, err := s.counters.Get(ctx, userID, now)
	if err != nil {
		log.Warn("counter store unavailable, producing no notifications", "error", err.Error())
		return []model.DealNotification{}, nil
	}
	if dailyCount >= prefs.MaxDailyNotifications {
		log.Debug("daily cap reached", "count", dailyCount, "cap", prefs.MaxDailyNotifications)
		return []model.DealNotification{}, nil
	}

	userCtx := s.loadUserContext(ctx, userID, log)
	scored := s.scoreValid(deals, userCtx, log)

	// Highest-value deals are processed first so they are the ones retained
	// when the daily cap is near.
	sortByRelevance(scored)

	accepted := make([]model.DealNotification, 0, len(scored))
	for _, deal := range scored {
		if dailyCount+len(accepted) >= prefs.MaxDailyNotifications {
			break
		}

		notifType := deriveType(deal, trigger, now)
		if !prefs.TypeEnabled(notifType) {
			continue
		}

		seen, err := s.history.Contains(ctx, userID, deal.ID)
		if err != nil {
			log.Warn("history store unavailable, stopping evaluation", "error", err.Error())
			break
		}
		if seen {
			continue
		}

		n := s.buildNotification(userID, deal, notifType, now)

		if prefs.Frequency == model.FrequencyImmediate {
			if err := s.deliverImmediate(ctx, userID, n, now); err != nil {
				log.Warn("immediate delivery failed", "deal_id", deal.ID, "error", err.Error())
				continue
			}
		} else {
			if err := s.queue.Append(ctx, userID, prefs.Frequency, n); err != nil {
				log.Warn("queue append failed", "deal_id", deal.ID, "error", err.Error())
				continue
			}
		}
		accepted = append(accepted, n)
	}

	return accepted, nil
}

// deliverImmediate records history, counts against the daily cap, and hands
// the notification to the sink.
func (s *NotificationService) deliverImmediate(ctx context.Context, userID uuid.UUID, n model.DealNotification, now time.Time) error {
	if err := s.history.Append(ctx, userID, n.DealID); err != nil {
		return fmt.Errorf("recording history: %w", err)
	}
	if _, err := s.counters.Increment(ctx, userID, now); err != nil {
		return fmt.Errorf("incrementing daily count: %w", err)
	}
	if err := s.sink.Deliver(ctx, n); err != nil {
		return fmt.Errorf("handing off to sink: %w", err)
	}
	return nil
}

// loadPreferences returns stored preferences, default-constructing (and
// best-effort persisting) them on first read.
func (s *NotificationService) loadPreferences(ctx context.Context, userID uuid.UUID) (*model.NotificationPreferences, error) {
	prefs, err := s.prefs.Get(ctx, userID)
	if err == nil {
		return prefs, nil
	}
	if errors.Is(err, repository.ErrPreferencesNotFound) {
		defaults := model.DefaultPreferences(userID)
		if setErr := s.prefs.Set(ctx, defaults); setErr != nil {
			logger.FromContext(ctx).Warn("could not persist default preferences",
				"user_id", userID.String(), "error", setErr.Error())
		}
		return defaults, nil
	}
	return nil, err
}

func (s *NotificationService) loadUserContext(ctx context.Context, userID uuid.UUID, log warnLogger) model.UserContext {
	if s.contexts == nil {
		return model.UserContext{UserID: userID}
	}
	userCtx, err := s.contexts.Get(ctx, userID)
	if err != nil {
		log.Warn("user context unavailable, scoring with neutral defaults", "error", err.Error())
		return model.UserContext{UserID: userID}
	}
	if userCtx == nil {
		return model.UserContext{UserID: userID}
	}
	return *userCtx
}

type warnLogger interface {
	Warn(msg string, args ...any)
}

// scoreValid validates candidates individually and scores the well-formed
// ones. Malformed records are dropped one by one, never failing the batch.
func (s *NotificationService) scoreValid(deals []model.Deal, userCtx model.UserContext, log warnLogger) []model.ScoredDeal {
	scored := make([]model.ScoredDeal, 0, len(deals))
	for _, d := range deals {
		if err := d.Validate(); err != nil {
			log.Warn("skipping malformed deal", "deal_id", d.ID, "error", err.Error())
			continue
		}
		scored = append(scored, s.scorer.Score(d, userCtx))
	}
	return scored
}

// sortByRelevance orders candidates descending by relevance; ties break to
// larger potential savings, then earlier expiry, then id for determinism.
func sortByRelevance(scored []model.ScoredDeal) {
	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].RelevanceScore != scored[j].RelevanceScore {
			return scored[i].RelevanceScore > scored[j].RelevanceScore
		}
		si, sj := scored[i].Savings(), scored[j].Savings()
		if !si.Equal(sj) {
			return si.GreaterThan(sj)
		}
		if !scored[i].ValidUntil.Equal(scored[j].ValidUntil) {
			return scored[i].ValidUntil.Before(scored[j].ValidUntil)
		}
		return scored[i].ID < scored[j].ID
	})
}

// deriveType picks the notification type for a candidate. Flash tags win,
// then expiry proximity, then the budget-update trigger, then a very high
// relevance score.
func deriveType(deal model.ScoredDeal, trigger model.TriggerContext, now time.Time) model.NotificationType {
	if isFlash(deal) {
		return model.NotificationTypeFlashDeal
	}
	if daysUntil(deal.ValidUntil, now) <= 3 {
		return model.NotificationTypeExpiringSoon
	}
	if trigger == model.TriggerBudgetUpdate {
		return model.NotificationTypeBudgetMatch
	}
	if deal.RelevanceScore >= 90 {
		return model.NotificationTypeRecommendation
	}
	return model.NotificationTypeNewDeal
}

// derivePriority ranks urgency: flash deals are urgent, strong scores or
// deep discounts are high, near expiry is medium, everything else low.
func derivePriority(deal model.ScoredDeal, now time.Time) model.NotificationPriority {
	if isFlash(deal) {
		return model.PriorityUrgent
	}
	if deal.RelevanceScore >= 90 || effectiveDiscount(deal.Deal) >= 30 {
		return model.PriorityHigh
	}
	if daysUntil(deal.ValidUntil, now) <= 7 {
		return model.PriorityMedium
	}
	return model.PriorityLow
}

func isFlash(deal model.ScoredDeal) bool {
	return deal.HasTag("flash") || deal.HasTag("limited-time") || deal.HasTag("limited_time")
}

func daysUntil(t, now time.Time) float64 {
	return t.Sub(now).Hours() / 24
}

// effectiveDiscount prefers the provider-supplied percentage, falling back
// to the price pair.
func effectiveDiscount(deal model.Deal) float64 {
	if deal.DiscountPercentage > 0 {
		return deal.DiscountPercentage
	}
	return deal.DiscountPercent()
}

func (s *NotificationService) buildNotification(userID uuid.UUID, deal model.ScoredDeal, notifType model.NotificationType, now time.Time) model.DealNotification {
	priority := derivePriority(deal, now)
	title, message := notificationText(deal, notifType, now)

	d := deal
	return model.DealNotification{
		ID:        uuid.New(),
		UserID:    userID,
		DealID:    deal.ID,
		Type:      notifType,
		Title:     title,
		Message:   message,
		Deal:      &d,
		Priority:  priority,
		CreatedAt: now,
		ExpiresAt: now.Add(priorityExpiry[priority]),
		ActionRef: "/deals/" + deal.ID,
		Metadata: model.NotificationMetadata{
			RelevanceScore:   deal.RelevanceScore,
			PotentialSavings: deal.Savings(),
			Category:         deal.Category,
			MerchantName:     deal.MerchantName,
		},
	}
}

// notificationText produces the templated title and message per type.
func notificationText(deal model.ScoredDeal, notifType model.NotificationType, now time.Time) (string, string) {
	discount := int(effectiveDiscount(deal.Deal))
	savings := deal.Savings().StringFixed(2)

	switch notifType {
	case model.NotificationTypeFlashDeal:
		return fmt.Sprintf("⚡ Flash deal at %s", deal.MerchantName),
			fmt.Sprintf("%d%% off at %s. Save %s before it's gone.", discount, deal.MerchantName, savings)
	case model.NotificationTypeExpiringSoon:
		days := int(daysUntil(deal.ValidUntil, now))
		if days < 1 {
			return fmt.Sprintf("Last chance: %s", deal.MerchantName),
				fmt.Sprintf("%d%% off at %s ends today.", discount, deal.MerchantName)
		}
		return fmt.Sprintf("Ending soon: %s", deal.MerchantName),
			fmt.Sprintf("%d day(s) left to grab %d%% off at %s.", days, discount, deal.MerchantName)
	case model.NotificationTypeBudgetMatch:
		return "A deal that fits your budget",
			fmt.Sprintf("%s fits your %s budget: %s after %d%% off.",
				deal.MerchantName, deal.Category, deal.DiscountedPrice.StringFixed(2), discount)
	case model.NotificationTypeRecommendation:
		msg := fmt.Sprintf("Scored %.0f/100 for your trip.", deal.RelevanceScore)
		if len(deal.Reasoning) > 0 {
			msg = fmt.Sprintf("Scored %.0f/100 for your trip: %s.", deal.RelevanceScore, deal.Reasoning[0])
		}
		return fmt.Sprintf("Picked for you: %s", deal.MerchantName), msg
	default:
		return fmt.Sprintf("New deal: %s", deal.MerchantName),
			fmt.Sprintf("%d%% off at %s. Save %s.", discount, deal.MerchantName, savings)
	}
}

// GetPreferences returns the user's preferences, creating defaults on first
// read. A store outage degrades to the defaults rather than an error, so a
// read never fails user-visibly.
func (s *NotificationService) GetPreferences(ctx context.Context, userID uuid.UUID) (*model.NotificationPreferences, error) {
	if userID == uuid.Nil {
		return nil, apperror.BadRequest("user id is required")
	}
	prefs, err := s.loadPreferences(ctx, userID)
	if err != nil {
		logger.FromContext(ctx).Warn("preference store unavailable, returning defaults",
			"user_id", userID.String(), "error", err.Error())
		return model.DefaultPreferences(userID), nil
	}
	return prefs, nil
}

// UpdatePreferencesInput is a partial update; nil fields keep their current
// value.
type UpdatePreferencesInput struct {
	Enabled               *bool                        `json:"enabled,omitempty"`
	NewDealEnabled        *bool                        `json:"newDealEnabled,omitempty"`
	ExpiringSoonEnabled   *bool                        `json:"expiringSoonEnabled,omitempty"`
	BudgetMatchEnabled    *bool                        `json:"budgetMatchEnabled,omitempty"`
	FlashDealEnabled      *bool                        `json:"flashDealEnabled,omitempty"`
	RecommendationEnabled *bool                        `json:"recommendationEnabled,omitempty"`
	Frequency             *model.NotificationFrequency `json:"frequency,omitempty"`
	QuietHours            *model.QuietHours            `json:"quietHours,omitempty"`
	MaxDailyNotifications *int                         `json:"maxDailyNotifications,omitempty"`
}

// UpdatePreferences applies a partial preference update and persists the
// result. Unlike reads, a failed write surfaces an error.
func (s *NotificationService) UpdatePreferences(ctx context.Context, userID uuid.UUID, input UpdatePreferencesInput) (*model.NotificationPreferences, error) {
	if userID == uuid.Nil {
		return nil, apperror.BadRequest("user id is required")
	}
	if input.Frequency != nil && !input.Frequency.Valid() {
		return nil, apperror.ValidationError("frequency", "must be immediate, daily, or weekly")
	}
	if input.MaxDailyNotifications != nil && *input.MaxDailyNotifications < 1 {
		return nil, apperror.ValidationError("maxDailyNotifications", "must be at least 1")
	}

	prefs, err := s.loadPreferences(ctx, userID)
	if err != nil {
		return nil, apperror.StoreUnavailable(err)
	}

	if input.Enabled != nil {
		prefs.Enabled = *input.Enabled
	}
	if input.NewDealEnabled != nil {
		prefs.NewDealEnabled = *input.NewDealEnabled
	}
	if input.ExpiringSoonEnabled != nil {
		prefs.ExpiringSoonEnabled = *input.ExpiringSoonEnabled
	}
	if input.BudgetMatchEnabled != nil {
		prefs.BudgetMatchEnabled = *input.BudgetMatchEnabled
	}
	if input.FlashDealEnabled != nil {
		prefs.FlashDealEnabled = *input.FlashDealEnabled
	}
	if input.RecommendationEnabled != nil {
		prefs.RecommendationEnabled = *input.RecommendationEnabled
	}
	if input.Frequency != nil {
		prefs.Frequency = *input.Frequency
	}
	if input.QuietHours != nil {
		prefs.QuietHours = *input.QuietHours
	}
	if input.MaxDailyNotifications != nil {
		prefs.MaxDailyNotifications = *input.MaxDailyNotifications
	}
	prefs.UserID = userID
	prefs.UpdatedAt = s.now()

	if err := s.prefs.Set(ctx, prefs); err != nil {
		return nil, apperror.StoreUnavailable(err)
	}
	return prefs, nil
}
