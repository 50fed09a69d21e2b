package handlers

import (
	"context"
	"net/http"
	"time"

	"habitHeroAPI/services"
	"habitHeroAPI/utils"
)

type AnalyticsHandler struct {
	analyticsService *services.AnalyticsService
}

func NewAnalyticsHandler(analyticsService *services.AnalyticsService) *AnalyticsHandler {
	return &AnalyticsHandler{
		analyticsService: analyticsService,
	}
}

// GET /api/analytics/group/{groupId}
func (h *AnalyticsHandler) GroupStats(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	groupID, err := uuidVar(r, "groupId")
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	stats, err := h.analyticsService.GroupStats(ctx, userID, groupID)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, stats)
}

// GET /api/analytics/user/stats
func (h *AnalyticsHandler) UserStats(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	stats, err := h.analyticsService.UserStats(ctx, userID)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, stats)
}

// GET /api/analytics/group/{groupId}/activity?limit=50&offset=0
func (h *AnalyticsHandler) Activity(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	groupID, err := uuidVar(r, "groupId")
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	limit, offset := utils.ParsePagination(r.URL.Query())
	page, err := h.analyticsService.Activity(ctx, userID, groupID, limit, offset)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, page)
}

// GET /api/analytics/challenge/{challengeId}/progress
func (h *AnalyticsHandler) ChallengeProgress(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	challengeID, err := uuidVar(r, "challengeId")
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	progress, err := h.analyticsService.ChallengeProgress(ctx, userID, challengeID)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, progress)
}
