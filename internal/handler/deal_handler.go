package handler

import (
	"encoding/json"
	"net/http"

	"github.com/tripradar/backend/internal/model"
	"github.com/tripradar/backend/internal/service"
)

type DealHandler struct {
	notifications NotificationServiceInterface
	scorer        ScoringServiceInterface
	clusters      ClusterServiceInterface
	contexts      service.UserContextSource
}

func NewDealHandler(
	notifications NotificationServiceInterface,
	scorer ScoringServiceInterface,
	clusters ClusterServiceInterface,
	contexts service.UserContextSource,
) *DealHandler {
	return &DealHandler{
		notifications: notifications,
		scorer:        scorer,
		clusters:      clusters,
		contexts:      contexts,
	}
}

type NotifyDealsRequest struct {
	Deals   []model.Deal         `json:"deals"`
	Trigger model.TriggerContext `json:"trigger"`
}

type NotifyDealsResponse struct {
	Notifications []model.DealNotification `json:"notifications"`
	Count         int                      `json:"count"`
}

// Notify godoc
// @Summary Evaluate deals for notification
// @Description Score the submitted deals against the current user's context and deliver or queue notifications per their preferences
// @Tags deals
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param input body NotifyDealsRequest true "Candidate deals and trigger"
// @Success 200 {object} NotifyDealsResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Router /deals/notify [post]
func (h *DealHandler) Notify(w http.ResponseWriter, r *http.Request) {
	userID := GetUserID(r.Context())

	var input NotifyDealsRequest
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if input.Trigger == "" {
		input.Trigger = model.TriggerManual
	}
	if !input.Trigger.Valid() {
		respondError(w, http.StatusBadRequest, "invalid trigger")
		return
	}

	notifications, err := h.notifications.NotifyMatchingDeals(r.Context(), userID, input.Deals, input.Trigger)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, NotifyDealsResponse{
		Notifications: notifications,
		Count:         len(notifications),
	})
}

type ClusterDealsRequest struct {
	Deals []model.Deal `json:"deals"`
}

// DealError reports a malformed record by its position in the request batch.
type DealError struct {
	Index int    `json:"index"`
	Error string `json:"error"`
}

type ClusterDealsResponse struct {
	Clusters []model.Cluster `json:"clusters"`
	Rejected []DealError     `json:"rejected,omitempty"`
}

// Cluster godoc
// @Summary Cluster nearby deals
// @Description Score the submitted deals and group geographically nearby ones. Has no delivery side effects. Malformed deals are rejected individually.
// @Tags deals
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param input body ClusterDealsRequest true "Deals to cluster"
// @Success 200 {object} ClusterDealsResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Router /deals/cluster [post]
func (h *DealHandler) Cluster(w http.ResponseWriter, r *http.Request) {
	userID := GetUserID(r.Context())

	var input ClusterDealsRequest
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	valid := make([]model.Deal, 0, len(input.Deals))
	var rejected []DealError
	for i, d := range input.Deals {
		if err := d.Validate(); err != nil {
			rejected = append(rejected, DealError{Index: i, Error: err.Error()})
			continue
		}
		valid = append(valid, d)
	}

	userCtx := model.UserContext{UserID: userID}
	if h.contexts != nil {
		if stored, err := h.contexts.Get(r.Context(), userID); err == nil && stored != nil {
			userCtx = *stored
		}
	}

	scored := h.scorer.ScoreAll(valid, userCtx)
	respondJSON(w, http.StatusOK, ClusterDealsResponse{
		Clusters: h.clusters.Cluster(scored),
		Rejected: rejected,
	})
}
