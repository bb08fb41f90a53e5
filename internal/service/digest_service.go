package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tripradar/backend/internal/apperror"
	"github.com/tripradar/backend/internal/logger"
	"github.com/tripradar/backend/internal/model"
)

// DigestService merges a user's queued notifications into one periodic
// summary and hands it to the delivery sink.
type DigestService struct {
	queue    QueueRepositoryInterface
	history  HistoryRepositoryInterface
	counters CounterRepositoryInterface
	sink     DeliverySink
	now      func() time.Time
}

func NewDigestService(
	queue QueueRepositoryInterface,
	history HistoryRepositoryInterface,
	counters CounterRepositoryInterface,
	sink DeliverySink,
) *DigestService {
	return &DigestService{
		queue:    queue,
		history:  history,
		counters: counters,
		sink:     sink,
		now:      time.Now,
	}
}

// SetClock overrides the compiler's clock. Tests only.
func (s *DigestService) SetClock(now func() time.Time) {
	s.now = now
}

// CompileDigest drains the user's queue for the given frequency and folds the
// members into a single summary notification. An empty queue yields nil.
// Draining is atomic, so a compiled digest always owns its members.
func (s *DigestService) CompileDigest(ctx context.Context, userID uuid.UUID, freq model.NotificationFrequency) (*model.DealNotification, error) {
	members, err := s.drain(ctx, userID, freq)
	if err != nil {
		return nil, err
	}
	if len(members) == 0 {
		return nil, nil
	}
	return s.compile(userID, freq, members), nil
}

// ProcessQueuedNotifications compiles and delivers one user's digest. The
// digest counts once against the daily cap, at delivery time. Returns nil
// when the queue was empty.
func (s *DigestService) ProcessQueuedNotifications(ctx context.Context, userID uuid.UUID, freq model.NotificationFrequency) (*model.DealNotification, error) {
	members, err := s.drain(ctx, userID, freq)
	if err != nil {
		return nil, err
	}
	if len(members) == 0 {
		return nil, nil
	}

	digest := s.compile(userID, freq, members)
	log := logger.FromContext(ctx).With("user_id", userID.String(), "frequency", string(freq))

	for _, m := range members {
		if err := s.history.Append(ctx, userID, m.DealID); err != nil {
			log.Warn("could not record digest member in history", "deal_id", m.DealID, "error", err.Error())
		}
	}
	if _, err := s.counters.Increment(ctx, userID, s.now()); err != nil {
		log.Warn("could not count digest against daily cap", "error", err.Error())
	}
	if err := s.sink.Deliver(ctx, *digest); err != nil {
		return nil, fmt.Errorf("handing off digest to sink: %w", err)
	}

	log.Info("digest delivered", "deals", len(members))
	return digest, nil
}

// ProcessAllQueued runs digest delivery for every user with a pending queue
// at the given frequency. One user's failure never blocks the rest. Returns
// the number of digests delivered.
func (s *DigestService) ProcessAllQueued(ctx context.Context, freq model.NotificationFrequency) (int, error) {
	users, err := s.queue.Users(ctx, freq)
	if err != nil {
		return 0, apperror.StoreUnavailable(err)
	}

	log := logger.FromContext(ctx).With("frequency", string(freq))
	delivered := 0
	for _, userID := range users {
		digest, err := s.ProcessQueuedNotifications(ctx, userID, freq)
		if err != nil {
			log.Warn("digest delivery failed", "user_id", userID.String(), "error", err.Error())
			continue
		}
		if digest != nil {
			delivered++
		}
	}
	return delivered, nil
}

func (s *DigestService) drain(ctx context.Context, userID uuid.UUID, freq model.NotificationFrequency) ([]model.DealNotification, error) {
	if userID == uuid.Nil {
		return nil, apperror.BadRequest("user id is required")
	}
	if freq != model.FrequencyDaily && freq != model.FrequencyWeekly {
		return nil, apperror.ValidationError("frequency", "digests are compiled for daily or weekly only")
	}

	members, err := s.queue.Drain(ctx, userID, freq)
	if err != nil {
		return nil, apperror.StoreUnavailable(err)
	}
	return members, nil
}

// compile folds queue members into a single summary. The metadata carries
// the best relevance score across members and their combined savings; the
// headline merchant is the highest-scoring member's.
func (s *DigestService) compile(userID uuid.UUID, freq model.NotificationFrequency, members []model.DealNotification) *model.DealNotification {
	now := s.now()

	total := decimal.Zero
	maxRelevance := 0.0
	top := members[0]
	categories := make(map[model.DealCategory]struct{})
	for _, m := range members {
		total = total.Add(m.Metadata.PotentialSavings)
		if m.Metadata.Category != "" {
			categories[m.Metadata.Category] = struct{}{}
		}
		if m.Metadata.RelevanceScore > maxRelevance {
			maxRelevance = m.Metadata.RelevanceScore
			top = m
		}
	}

	names := make([]string, 0, len(categories))
	for c := range categories {
		names = append(names, string(c))
	}
	sort.Strings(names)

	period := "daily"
	if freq == model.FrequencyWeekly {
		period = "weekly"
	}
	title := fmt.Sprintf("Your %s deal digest", period)
	message := fmt.Sprintf("%d deal(s) across %s. Combined savings up to %s.",
		len(members), strings.Join(names, ", "), total.StringFixed(2))
	if len(names) == 0 {
		message = fmt.Sprintf("%d deal(s) waiting for you. Combined savings up to %s.",
			len(members), total.StringFixed(2))
	}

	return &model.DealNotification{
		ID:        uuid.New(),
		UserID:    userID,
		Type:      model.NotificationTypeNewDeal,
		Title:     title,
		Message:   message,
		Priority:  model.PriorityMedium,
		CreatedAt: now,
		ExpiresAt: now.Add(priorityExpiry[model.PriorityMedium]),
		ActionRef: "/deals",
		Metadata: model.NotificationMetadata{
			RelevanceScore:   maxRelevance,
			PotentialSavings: total,
			Category:         top.Metadata.Category,
			MerchantName:     top.Metadata.MerchantName,
		},
	}
}
