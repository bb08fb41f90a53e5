package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/tripradar/backend/internal/apperror"
	"github.com/tripradar/backend/internal/model"
)

// MockDigestService implements DigestServiceInterface for testing
type MockDigestService struct {
	mock.Mock
}

func (m *MockDigestService) ProcessQueuedNotifications(ctx context.Context, userID uuid.UUID, freq model.NotificationFrequency) (*model.DealNotification, error) {
	args := m.Called(ctx, userID, freq)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.DealNotification), args.Error(1)
}

func TestNewNotificationHandler(t *testing.T) {
	handler := NewNotificationHandler(new(MockNotificationService), new(MockDigestService))
	assert.NotNil(t, handler)
}

func TestNotificationHandler_GetPreferences(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	mockService := new(MockNotificationService)
	mockService.On("GetPreferences", mock.Anything, userID).Return(model.DefaultPreferences(userID), nil)

	handler := NewNotificationHandler(mockService, new(MockDigestService))

	req := httptest.NewRequest(http.MethodGet, "/api/notifications/preferences", nil)
	req = req.WithContext(ctxWithUserID(userID))
	w := httptest.NewRecorder()

	handler.GetPreferences(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var prefs model.NotificationPreferences
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &prefs))
	assert.Equal(t, userID, prefs.UserID)
	assert.True(t, prefs.Enabled)
	assert.Equal(t, model.FrequencyImmediate, prefs.Frequency)
	assert.Equal(t, 5, prefs.MaxDailyNotifications)
	mockService.AssertExpectations(t)
}

func TestNotificationHandler_UpdatePreferences(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		body       interface{}
		setupMock  func(*MockNotificationService, uuid.UUID)
		wantStatus int
	}{
		{
			name: "success",
			body: map[string]interface{}{"frequency": "daily", "maxDailyNotifications": 3},
			setupMock: func(m *MockNotificationService, userID uuid.UUID) {
				updated := model.DefaultPreferences(userID)
				updated.Frequency = model.FrequencyDaily
				updated.MaxDailyNotifications = 3
				m.On("UpdatePreferences", mock.Anything, userID, mock.AnythingOfType("service.UpdatePreferencesInput")).
					Return(updated, nil)
			},
			wantStatus: http.StatusOK,
		},
		{
			name:       "invalid body",
			body:       "invalid json",
			setupMock:  func(m *MockNotificationService, userID uuid.UUID) {},
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "validation error",
			body: map[string]interface{}{"frequency": "hourly"},
			setupMock: func(m *MockNotificationService, userID uuid.UUID) {
				m.On("UpdatePreferences", mock.Anything, userID, mock.AnythingOfType("service.UpdatePreferencesInput")).
					Return(nil, apperror.ValidationError("frequency", "must be immediate, daily, or weekly"))
			},
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "store unavailable",
			body: map[string]interface{}{"enabled": false},
			setupMock: func(m *MockNotificationService, userID uuid.UUID) {
				m.On("UpdatePreferences", mock.Anything, userID, mock.AnythingOfType("service.UpdatePreferencesInput")).
					Return(nil, apperror.StoreUnavailable(assert.AnError))
			},
			wantStatus: http.StatusServiceUnavailable,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			userID := uuid.New()
			mockService := new(MockNotificationService)
			tt.setupMock(mockService, userID)

			handler := NewNotificationHandler(mockService, new(MockDigestService))

			var body []byte
			switch b := tt.body.(type) {
			case string:
				body = []byte(b)
			default:
				body, _ = json.Marshal(b)
			}

			req := httptest.NewRequest(http.MethodPut, "/api/notifications/preferences", bytes.NewReader(body))
			req = req.WithContext(ctxWithUserID(userID))
			w := httptest.NewRecorder()

			handler.UpdatePreferences(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			mockService.AssertExpectations(t)
		})
	}
}

func TestNotificationHandler_FlushDigest(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		frequency  string
		setupMock  func(*MockDigestService, uuid.UUID)
		wantStatus int
		wantDigest bool
	}{
		{
			name:      "delivers digest",
			frequency: "daily",
			setupMock: func(m *MockDigestService, userID uuid.UUID) {
				m.On("ProcessQueuedNotifications", mock.Anything, userID, model.FrequencyDaily).
					Return(&model.DealNotification{ID: uuid.New(), UserID: userID, Priority: model.PriorityMedium}, nil)
			},
			wantStatus: http.StatusOK,
			wantDigest: true,
		},
		{
			name:      "empty queue yields null digest",
			frequency: "weekly",
			setupMock: func(m *MockDigestService, userID uuid.UUID) {
				m.On("ProcessQueuedNotifications", mock.Anything, userID, model.FrequencyWeekly).
					Return(nil, nil)
			},
			wantStatus: http.StatusOK,
			wantDigest: false,
		},
		{
			name:       "immediate is not a digest frequency",
			frequency:  "immediate",
			setupMock:  func(m *MockDigestService, userID uuid.UUID) {},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:      "store unavailable",
			frequency: "daily",
			setupMock: func(m *MockDigestService, userID uuid.UUID) {
				m.On("ProcessQueuedNotifications", mock.Anything, userID, model.FrequencyDaily).
					Return(nil, apperror.StoreUnavailable(assert.AnError))
			},
			wantStatus: http.StatusServiceUnavailable,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			userID := uuid.New()
			mockDigests := new(MockDigestService)
			tt.setupMock(mockDigests, userID)

			handler := NewNotificationHandler(new(MockNotificationService), mockDigests)

			req := httptest.NewRequest(http.MethodPost, "/api/notifications/digest/"+tt.frequency, nil)
			rctx := chi.NewRouteContext()
			rctx.URLParams.Add("frequency", tt.frequency)
			req = req.WithContext(context.WithValue(ctxWithUserID(userID), chi.RouteCtxKey, rctx))
			w := httptest.NewRecorder()

			handler.FlushDigest(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantStatus == http.StatusOK {
				var resp FlushDigestResponse
				assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
				assert.Equal(t, tt.wantDigest, resp.Digest != nil)
			}
			mockDigests.AssertExpectations(t)
		})
	}
}
