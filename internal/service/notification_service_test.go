package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/tripradar/backend/internal/apperror"
	"github.com/tripradar/backend/internal/config"
	"github.com/tripradar/backend/internal/model"
	"github.com/tripradar/backend/internal/repository"
)

// MockPreferenceRepository implements PreferenceRepositoryInterface for testing
type MockPreferenceRepository struct {
	mock.Mock
}

func (m *MockPreferenceRepository) Get(ctx context.Context, userID uuid.UUID) (*model.NotificationPreferences, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.NotificationPreferences), args.Error(1)
}

func (m *MockPreferenceRepository) Set(ctx context.Context, prefs *model.NotificationPreferences) error {
	args := m.Called(ctx, prefs)
	return args.Error(0)
}

// MockHistoryRepository implements HistoryRepositoryInterface for testing
type MockHistoryRepository struct {
	mock.Mock
}

func (m *MockHistoryRepository) Contains(ctx context.Context, userID uuid.UUID, dealID string) (bool, error) {
	args := m.Called(ctx, userID, dealID)
	return args.Bool(0), args.Error(1)
}

func (m *MockHistoryRepository) Append(ctx context.Context, userID uuid.UUID, dealID string) error {
	args := m.Called(ctx, userID, dealID)
	return args.Error(0)
}

// MockCounterRepository implements CounterRepositoryInterface for testing
type MockCounterRepository struct {
	mock.Mock
}

func (m *MockCounterRepository) Get(ctx context.Context, userID uuid.UUID, day time.Time) (int, error) {
	args := m.Called(ctx, userID, day)
	return args.Int(0), args.Error(1)
}

func (m *MockCounterRepository) Increment(ctx context.Context, userID uuid.UUID, day time.Time) (int64, error) {
	args := m.Called(ctx, userID, day)
	return args.Get(0).(int64), args.Error(1)
}

// MockQueueRepository implements QueueRepositoryInterface for testing
type MockQueueRepository struct {
	mock.Mock
}

func (m *MockQueueRepository) Append(ctx context.Context, userID uuid.UUID, freq model.NotificationFrequency, n model.DealNotification) error {
	args := m.Called(ctx, userID, freq, n)
	return args.Error(0)
}

func (m *MockQueueRepository) Drain(ctx context.Context, userID uuid.UUID, freq model.NotificationFrequency) ([]model.DealNotification, error) {
	args := m.Called(ctx, userID, freq)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.DealNotification), args.Error(1)
}

func (m *MockQueueRepository) Users(ctx context.Context, freq model.NotificationFrequency) ([]uuid.UUID, error) {
	args := m.Called(ctx, freq)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]uuid.UUID), args.Error(1)
}

// MockDeliverySink implements DeliverySink for testing
type MockDeliverySink struct {
	mock.Mock
}

func (m *MockDeliverySink) Deliver(ctx context.Context, n model.DealNotification) error {
	args := m.Called(ctx, n)
	return args.Error(0)
}

type notificationMocks struct {
	prefs    *MockPreferenceRepository
	history  *MockHistoryRepository
	counters *MockCounterRepository
	queue    *MockQueueRepository
	sink     *MockDeliverySink
}

var notifNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func newTestNotificationService() (*NotificationService, *notificationMocks) {
	m := &notificationMocks{
		prefs:    new(MockPreferenceRepository),
		history:  new(MockHistoryRepository),
		counters: new(MockCounterRepository),
		queue:    new(MockQueueRepository),
		sink:     new(MockDeliverySink),
	}

	scorer := NewScoringService(config.DefaultScoreWeights())
	scorer.SetClock(func() time.Time { return notifNow })

	svc := NewNotificationService(scorer, m.prefs, m.history, m.counters, m.queue, nil, m.sink)
	svc.SetClock(func() time.Time { return notifNow })
	return svc, m
}

func notifDeal(id string, validUntil time.Time, tags ...string) model.Deal {
	return model.Deal{
		ID:              id,
		MerchantID:      "merchant-" + id,
		MerchantName:    "Merchant " + id,
		Category:        model.CategoryDining,
		OriginalPrice:   decimal.NewFromInt(100),
		DiscountedPrice: decimal.NewFromInt(90),
		ValidUntil:      validUntil,
		Tags:            tags,
	}
}

func TestNotifyMatchingDeals_MissingUserID(t *testing.T) {
	t.Parallel()

	svc, _ := newTestNotificationService()

	_, err := svc.NotifyMatchingDeals(context.Background(), uuid.Nil,
		[]model.Deal{notifDeal("a", notifNow.Add(48*time.Hour))}, model.TriggerManual)

	assert.Error(t, err)
	assert.Equal(t, 400, apperror.GetStatusCode(err))
}

func TestNotifyMatchingDeals_NotificationsDisabled(t *testing.T) {
	t.Parallel()

	svc, m := newTestNotificationService()
	userID := uuid.New()

	prefs := model.DefaultPreferences(userID)
	prefs.Enabled = false
	m.prefs.On("Get", mock.Anything, userID).Return(prefs, nil)

	result, err := svc.NotifyMatchingDeals(context.Background(), userID,
		[]model.Deal{notifDeal("a", notifNow.Add(48*time.Hour))}, model.TriggerManual)

	assert.NoError(t, err)
	assert.Empty(t, result)
	m.sink.AssertNotCalled(t, "Deliver", mock.Anything, mock.Anything)
}

func TestNotifyMatchingDeals_QuietHours(t *testing.T) {
	t.Parallel()

	svc, m := newTestNotificationService()
	svc.SetClock(func() time.Time {
		return time.Date(2025, 6, 15, 23, 0, 0, 0, time.UTC)
	})
	userID := uuid.New()

	prefs := model.DefaultPreferences(userID)
	prefs.QuietHours = model.QuietHours{Enabled: true, Start: "22:00", End: "08:00"}
	m.prefs.On("Get", mock.Anything, userID).Return(prefs, nil)

	result, err := svc.NotifyMatchingDeals(context.Background(), userID,
		[]model.Deal{notifDeal("a", notifNow.Add(48*time.Hour))}, model.TriggerManual)

	assert.NoError(t, err)
	assert.Empty(t, result)
	m.counters.AssertNotCalled(t, "Get", mock.Anything, mock.Anything, mock.Anything)
}

func TestNotifyMatchingDeals_DailyCapReached(t *testing.T) {
	t.Parallel()

	svc, m := newTestNotificationService()
	userID := uuid.New()

	m.prefs.On("Get", mock.Anything, userID).Return(model.DefaultPreferences(userID), nil)
	m.counters.On("Get", mock.Anything, userID, notifNow).Return(5, nil)

	result, err := svc.NotifyMatchingDeals(context.Background(), userID,
		[]model.Deal{notifDeal("a", notifNow.Add(48*time.Hour))}, model.TriggerManual)

	assert.NoError(t, err)
	assert.Empty(t, result)
	m.sink.AssertNotCalled(t, "Deliver", mock.Anything, mock.Anything)
}

func TestNotifyMatchingDeals_CapKeepsTopCandidates(t *testing.T) {
	t.Parallel()

	svc, m := newTestNotificationService()
	userID := uuid.New()

	prefs := model.DefaultPreferences(userID)
	prefs.MaxDailyNotifications = 3
	m.prefs.On("Get", mock.Anything, userID).Return(prefs, nil)
	m.counters.On("Get", mock.Anything, userID, notifNow).Return(0, nil)
	m.history.On("Contains", mock.Anything, userID, mock.Anything).Return(false, nil)
	m.history.On("Append", mock.Anything, userID, mock.Anything).Return(nil)
	m.counters.On("Increment", mock.Anything, userID, notifNow).Return(int64(1), nil)
	m.sink.On("Deliver", mock.Anything, mock.Anything).Return(nil)

	// Time relevance descends with expiry distance, so relevance order is
	// a > b > c > d > e with everything else neutral.
	deals := []model.Deal{
		notifDeal("d", notifNow.Add(10*24*time.Hour)),
		notifDeal("a", notifNow.Add(12*time.Hour)),
		notifDeal("e", notifNow.Add(20*24*time.Hour)),
		notifDeal("b", notifNow.Add(2*24*time.Hour)),
		notifDeal("c", notifNow.Add(5*24*time.Hour)),
	}

	result, err := svc.NotifyMatchingDeals(context.Background(), userID, deals, model.TriggerManual)

	assert.NoError(t, err)
	assert.Len(t, result, 3)
	assert.Equal(t, "a", result[0].DealID)
	assert.Equal(t, "b", result[1].DealID)
	assert.Equal(t, "c", result[2].DealID)
	m.sink.AssertNumberOfCalls(t, "Deliver", 3)
	m.history.AssertNumberOfCalls(t, "Append", 3)
	m.counters.AssertNumberOfCalls(t, "Increment", 3)
}

func TestNotifyMatchingDeals_DedupesAgainstHistory(t *testing.T) {
	t.Parallel()

	svc, m := newTestNotificationService()
	userID := uuid.New()

	m.prefs.On("Get", mock.Anything, userID).Return(model.DefaultPreferences(userID), nil)
	m.counters.On("Get", mock.Anything, userID, notifNow).Return(0, nil)
	m.history.On("Contains", mock.Anything, userID, "seen").Return(true, nil)
	m.history.On("Contains", mock.Anything, userID, "fresh").Return(false, nil)
	m.history.On("Append", mock.Anything, userID, "fresh").Return(nil)
	m.counters.On("Increment", mock.Anything, userID, notifNow).Return(int64(1), nil)
	m.sink.On("Deliver", mock.Anything, mock.Anything).Return(nil)

	deals := []model.Deal{
		notifDeal("seen", notifNow.Add(12*time.Hour)),
		notifDeal("fresh", notifNow.Add(5*24*time.Hour)),
	}

	result, err := svc.NotifyMatchingDeals(context.Background(), userID, deals, model.TriggerManual)

	assert.NoError(t, err)
	assert.Len(t, result, 1)
	assert.Equal(t, "fresh", result[0].DealID)
}

func TestNotifyMatchingDeals_PreferenceStoreDown(t *testing.T) {
	t.Parallel()

	svc, m := newTestNotificationService()
	userID := uuid.New()

	m.prefs.On("Get", mock.Anything, userID).Return(nil, assert.AnError)

	result, err := svc.NotifyMatchingDeals(context.Background(), userID,
		[]model.Deal{notifDeal("a", notifNow.Add(48*time.Hour))}, model.TriggerManual)

	assert.NoError(t, err)
	assert.NotNil(t, result)
	assert.Empty(t, result)
}

func TestNotifyMatchingDeals_DefaultsOnFirstRead(t *testing.T) {
	t.Parallel()

	svc, m := newTestNotificationService()
	userID := uuid.New()

	m.prefs.On("Get", mock.Anything, userID).Return(nil, repository.ErrPreferencesNotFound)
	m.prefs.On("Set", mock.Anything, mock.AnythingOfType("*model.NotificationPreferences")).Return(nil)
	m.counters.On("Get", mock.Anything, userID, notifNow).Return(0, nil)
	m.history.On("Contains", mock.Anything, userID, "a").Return(false, nil)
	m.history.On("Append", mock.Anything, userID, "a").Return(nil)
	m.counters.On("Increment", mock.Anything, userID, notifNow).Return(int64(1), nil)
	m.sink.On("Deliver", mock.Anything, mock.Anything).Return(nil)

	result, err := svc.NotifyMatchingDeals(context.Background(), userID,
		[]model.Deal{notifDeal("a", notifNow.Add(48*time.Hour))}, model.TriggerManual)

	assert.NoError(t, err)
	assert.Len(t, result, 1)
	m.prefs.AssertCalled(t, "Set", mock.Anything, mock.AnythingOfType("*model.NotificationPreferences"))
}

func TestNotifyMatchingDeals_TypeDisabledSuppresses(t *testing.T) {
	t.Parallel()

	svc, m := newTestNotificationService()
	userID := uuid.New()

	prefs := model.DefaultPreferences(userID)
	prefs.FlashDealEnabled = false
	m.prefs.On("Get", mock.Anything, userID).Return(prefs, nil)
	m.counters.On("Get", mock.Anything, userID, notifNow).Return(0, nil)

	result, err := svc.NotifyMatchingDeals(context.Background(), userID,
		[]model.Deal{notifDeal("a", notifNow.Add(48*time.Hour), "flash")}, model.TriggerManual)

	assert.NoError(t, err)
	assert.Empty(t, result)
	m.history.AssertNotCalled(t, "Contains", mock.Anything, mock.Anything, mock.Anything)
}

func TestNotifyMatchingDeals_QueuedForDigest(t *testing.T) {
	t.Parallel()

	svc, m := newTestNotificationService()
	userID := uuid.New()

	prefs := model.DefaultPreferences(userID)
	prefs.Frequency = model.FrequencyDaily
	m.prefs.On("Get", mock.Anything, userID).Return(prefs, nil)
	m.counters.On("Get", mock.Anything, userID, notifNow).Return(0, nil)
	m.history.On("Contains", mock.Anything, userID, "a").Return(false, nil)
	m.queue.On("Append", mock.Anything, userID, model.FrequencyDaily, mock.Anything).Return(nil)

	result, err := svc.NotifyMatchingDeals(context.Background(), userID,
		[]model.Deal{notifDeal("a", notifNow.Add(48*time.Hour))}, model.TriggerManual)

	assert.NoError(t, err)
	assert.Len(t, result, 1)
	m.queue.AssertNumberOfCalls(t, "Append", 1)
	m.sink.AssertNotCalled(t, "Deliver", mock.Anything, mock.Anything)
	m.history.AssertNotCalled(t, "Append", mock.Anything, mock.Anything, mock.Anything)
	m.counters.AssertNotCalled(t, "Increment", mock.Anything, mock.Anything, mock.Anything)
}

func TestNotifyMatchingDeals_FlashDeal(t *testing.T) {
	t.Parallel()

	svc, m := newTestNotificationService()
	userID := uuid.New()

	m.prefs.On("Get", mock.Anything, userID).Return(model.DefaultPreferences(userID), nil)
	m.counters.On("Get", mock.Anything, userID, notifNow).Return(0, nil)
	m.history.On("Contains", mock.Anything, userID, "a").Return(false, nil)
	m.history.On("Append", mock.Anything, userID, "a").Return(nil)
	m.counters.On("Increment", mock.Anything, userID, notifNow).Return(int64(1), nil)
	m.sink.On("Deliver", mock.Anything, mock.Anything).Return(nil)

	deal := notifDeal("a", notifNow.Add(6*time.Hour), "flash")
	deal.DiscountedPrice = decimal.NewFromInt(65)
	deal.DiscountPercentage = 35

	result, err := svc.NotifyMatchingDeals(context.Background(), userID,
		[]model.Deal{deal}, model.TriggerLocationChange)

	assert.NoError(t, err)
	assert.Len(t, result, 1)
	n := result[0]
	assert.Equal(t, model.NotificationTypeFlashDeal, n.Type)
	assert.Equal(t, model.PriorityUrgent, n.Priority)
	assert.Equal(t, notifNow.Add(2*time.Hour), n.ExpiresAt)
	assert.Contains(t, n.Title, "Flash deal")
	assert.Contains(t, n.Message, "35%")
	assert.True(t, n.Metadata.PotentialSavings.Equal(decimal.NewFromInt(35)))
}

func TestNotifyMatchingDeals_ExpiringSoon(t *testing.T) {
	t.Parallel()

	svc, m := newTestNotificationService()
	userID := uuid.New()

	m.prefs.On("Get", mock.Anything, userID).Return(model.DefaultPreferences(userID), nil)
	m.counters.On("Get", mock.Anything, userID, notifNow).Return(0, nil)
	m.history.On("Contains", mock.Anything, userID, "a").Return(false, nil)
	m.history.On("Append", mock.Anything, userID, "a").Return(nil)
	m.counters.On("Increment", mock.Anything, userID, notifNow).Return(int64(1), nil)
	m.sink.On("Deliver", mock.Anything, mock.Anything).Return(nil)

	deal := notifDeal("a", notifNow.Add(2*24*time.Hour))

	result, err := svc.NotifyMatchingDeals(context.Background(), userID,
		[]model.Deal{deal}, model.TriggerScheduledCheck)

	assert.NoError(t, err)
	assert.Len(t, result, 1)
	n := result[0]
	assert.Equal(t, model.NotificationTypeExpiringSoon, n.Type)
	// Ten percent off, two days out: medium urgency and a day-scoped expiry.
	assert.Equal(t, model.PriorityMedium, n.Priority)
	assert.Equal(t, notifNow.Add(24*time.Hour), n.ExpiresAt)
}

func TestNotifyMatchingDeals_SkipsMalformedDeals(t *testing.T) {
	t.Parallel()

	svc, m := newTestNotificationService()
	userID := uuid.New()

	m.prefs.On("Get", mock.Anything, userID).Return(model.DefaultPreferences(userID), nil)
	m.counters.On("Get", mock.Anything, userID, notifNow).Return(0, nil)
	m.history.On("Contains", mock.Anything, userID, "good").Return(false, nil)
	m.history.On("Append", mock.Anything, userID, "good").Return(nil)
	m.counters.On("Increment", mock.Anything, userID, notifNow).Return(int64(1), nil)
	m.sink.On("Deliver", mock.Anything, mock.Anything).Return(nil)

	malformed := model.Deal{ID: "bad"} // no merchant, category, expiry

	result, err := svc.NotifyMatchingDeals(context.Background(), userID,
		[]model.Deal{malformed, notifDeal("good", notifNow.Add(48*time.Hour))}, model.TriggerManual)

	assert.NoError(t, err)
	assert.Len(t, result, 1)
	assert.Equal(t, "good", result[0].DealID)
}

func TestNotifyMatchingDeals_SinkFailureSkipsCandidate(t *testing.T) {
	t.Parallel()

	svc, m := newTestNotificationService()
	userID := uuid.New()

	m.prefs.On("Get", mock.Anything, userID).Return(model.DefaultPreferences(userID), nil)
	m.counters.On("Get", mock.Anything, userID, notifNow).Return(0, nil)
	m.history.On("Contains", mock.Anything, userID, mock.Anything).Return(false, nil)
	m.history.On("Append", mock.Anything, userID, mock.Anything).Return(nil)
	m.counters.On("Increment", mock.Anything, userID, notifNow).Return(int64(1), nil)
	m.sink.On("Deliver", mock.Anything, mock.Anything).Return(assert.AnError)

	result, err := svc.NotifyMatchingDeals(context.Background(), userID,
		[]model.Deal{notifDeal("a", notifNow.Add(48*time.Hour))}, model.TriggerManual)

	assert.NoError(t, err)
	assert.Empty(t, result)
}

func TestGetPreferences_DegradesToDefaults(t *testing.T) {
	t.Parallel()

	svc, m := newTestNotificationService()
	userID := uuid.New()

	m.prefs.On("Get", mock.Anything, userID).Return(nil, assert.AnError)

	prefs, err := svc.GetPreferences(context.Background(), userID)

	assert.NoError(t, err)
	assert.Equal(t, model.DefaultPreferences(userID), prefs)
}

func TestUpdatePreferences(t *testing.T) {
	t.Parallel()

	t.Run("partial update keeps other fields", func(t *testing.T) {
		t.Parallel()

		svc, m := newTestNotificationService()
		userID := uuid.New()

		m.prefs.On("Get", mock.Anything, userID).Return(model.DefaultPreferences(userID), nil)
		m.prefs.On("Set", mock.Anything, mock.AnythingOfType("*model.NotificationPreferences")).Return(nil)

		freq := model.FrequencyWeekly
		maxDaily := 2
		updated, err := svc.UpdatePreferences(context.Background(), userID, UpdatePreferencesInput{
			Frequency:             &freq,
			MaxDailyNotifications: &maxDaily,
		})

		assert.NoError(t, err)
		assert.Equal(t, model.FrequencyWeekly, updated.Frequency)
		assert.Equal(t, 2, updated.MaxDailyNotifications)
		assert.True(t, updated.Enabled)
		assert.Equal(t, notifNow, updated.UpdatedAt)
	})

	t.Run("invalid frequency", func(t *testing.T) {
		t.Parallel()

		svc, _ := newTestNotificationService()
		badFreq := model.NotificationFrequency("hourly")

		_, err := svc.UpdatePreferences(context.Background(), uuid.New(), UpdatePreferencesInput{
			Frequency: &badFreq,
		})

		assert.Error(t, err)
		assert.Equal(t, 400, apperror.GetStatusCode(err))
	})

	t.Run("cap below one", func(t *testing.T) {
		t.Parallel()

		svc, _ := newTestNotificationService()
		zero := 0

		_, err := svc.UpdatePreferences(context.Background(), uuid.New(), UpdatePreferencesInput{
			MaxDailyNotifications: &zero,
		})

		assert.Error(t, err)
		assert.Equal(t, 400, apperror.GetStatusCode(err))
	})

	t.Run("store failure surfaces", func(t *testing.T) {
		t.Parallel()

		svc, m := newTestNotificationService()
		userID := uuid.New()

		m.prefs.On("Get", mock.Anything, userID).Return(model.DefaultPreferences(userID), nil)
		m.prefs.On("Set", mock.Anything, mock.Anything).Return(assert.AnError)

		enabled := false
		_, err := svc.UpdatePreferences(context.Background(), userID, UpdatePreferencesInput{
			Enabled: &enabled,
		})

		assert.Error(t, err)
		assert.True(t, apperror.IsStoreUnavailable(err))
	})
}
