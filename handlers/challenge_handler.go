package handlers

import (
	"context"
	"net/http"
	"time"

	"habitHeroAPI/internal/types/challenge"
	"habitHeroAPI/services"
)

type ChallengeHandler struct {
	challengeService *services.ChallengeService
}

func NewChallengeHandler(challengeService *services.ChallengeService) *ChallengeHandler {
	return &ChallengeHandler{challengeService: challengeService}
}

// POST /api/challenges
func (h *ChallengeHandler) CreateChallenge(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req challenge.CreateChallengeRequest
	if err := decodeAndValidate(r, &req); err != nil {
		respondWithAppError(w, err)
		return
	}

	c, err := h.challengeService.CreateChallenge(ctx, userID, &req)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, c)
}

// GET /api/challenges/group/{groupId}
func (h *ChallengeHandler) ListByGroup(w http.ResponseWriter, r *http.Request) {
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

	challenges, err := h.challengeService.ListByGroup(ctx, userID, groupID)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, challenges)
}

// GET /api/challenges/{challengeId}
func (h *ChallengeHandler) GetChallenge(w http.ResponseWriter, r *http.Request) {
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

	c, err := h.challengeService.GetChallenge(ctx, userID, challengeID)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, c)
}

// PUT /api/challenges/{challengeId}
func (h *ChallengeHandler) UpdateChallenge(w http.ResponseWriter, r *http.Request) {
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

	var req challenge.UpdateChallengeRequest
	if err := decodeAndValidate(r, &req); err != nil {
		respondWithAppError(w, err)
		return
	}

	c, err := h.challengeService.UpdateChallenge(ctx, userID, challengeID, &req)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, c)
}

// DELETE /api/challenges/{challengeId}
func (h *ChallengeHandler) DeleteChallenge(w http.ResponseWriter, r *http.Request) {
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

	if err := h.challengeService.DeleteChallenge(ctx, userID, challengeID); err != nil {
		respondWithAppError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
