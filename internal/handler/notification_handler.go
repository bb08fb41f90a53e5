package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tripradar/backend/internal/model"
	"github.com/tripradar/backend/internal/service"
)

type NotificationHandler struct {
	notifications NotificationServiceInterface
	digests       DigestServiceInterface
}

func NewNotificationHandler(notifications NotificationServiceInterface, digests DigestServiceInterface) *NotificationHandler {
	return &NotificationHandler{notifications: notifications, digests: digests}
}

// GetPreferences godoc
// @Summary Get notification preferences
// @Description Get the current user's notification preferences, creating defaults on first read
// @Tags notifications
// @Produce json
// @Security BearerAuth
// @Success 200 {object} model.NotificationPreferences
// @Failure 401 {object} ErrorResponse
// @Router /notifications/preferences [get]
func (h *NotificationHandler) GetPreferences(w http.ResponseWriter, r *http.Request) {
	userID := GetUserID(r.Context())

	prefs, err := h.notifications.GetPreferences(r.Context(), userID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, prefs)
}

// UpdatePreferences godoc
// @Summary Update notification preferences
// @Description Partially update the current user's notification preferences. Omitted fields keep their current value.
// @Tags notifications
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param input body service.UpdatePreferencesInput true "Fields to update"
// @Success 200 {object} model.NotificationPreferences
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 503 {object} ErrorResponse
// @Router /notifications/preferences [put]
func (h *NotificationHandler) UpdatePreferences(w http.ResponseWriter, r *http.Request) {
	userID := GetUserID(r.Context())

	var input service.UpdatePreferencesInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	prefs, err := h.notifications.UpdatePreferences(r.Context(), userID, input)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, prefs)
}

type FlushDigestResponse struct {
	Digest *model.DealNotification `json:"digest"`
}

// FlushDigest godoc
// @Summary Flush a queued digest
// @Description Compile and deliver the current user's queued notifications for the given frequency. Returns a null digest when the queue was empty.
// @Tags notifications
// @Produce json
// @Security BearerAuth
// @Param frequency path string true "daily or weekly"
// @Success 200 {object} FlushDigestResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 503 {object} ErrorResponse
// @Router /notifications/digest/{frequency} [post]
func (h *NotificationHandler) FlushDigest(w http.ResponseWriter, r *http.Request) {
	userID := GetUserID(r.Context())

	freq := model.NotificationFrequency(chi.URLParam(r, "frequency"))
	if freq != model.FrequencyDaily && freq != model.FrequencyWeekly {
		respondError(w, http.StatusBadRequest, "frequency must be daily or weekly")
		return
	}

	digest, err := h.digests.ProcessQueuedNotifications(r.Context(), userID, freq)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, FlushDigestResponse{Digest: digest})
}
