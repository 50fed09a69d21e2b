package handlers

import (
	"context"
	"net/http"
	"time"

	"habitHeroAPI/internal/types/group"
	"habitHeroAPI/services"
)

type GroupHandler struct {
	groupService *services.GroupService
}

func NewGroupHandler(groupService *services.GroupService) *GroupHandler {
	return &GroupHandler{groupService: groupService}
}

// POST /api/groups
func (h *GroupHandler) CreateGroup(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req group.CreateGroupRequest
	if err := decodeAndValidate(r, &req); err != nil {
		respondWithAppError(w, err)
		return
	}

	detail, err := h.groupService.CreateGroup(ctx, userID, &req)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, detail)
}

// GET /api/groups
func (h *GroupHandler) ListGroups(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	groups, err := h.groupService.ListGroups(ctx, userID)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, groups)
}

// GET /api/groups/{groupId}
func (h *GroupHandler) GetGroup(w http.ResponseWriter, r *http.Request) {
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

	detail, err := h.groupService.GetGroup(ctx, userID, groupID)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, detail)
}

// PUT /api/groups/{groupId}
func (h *GroupHandler) UpdateGroup(w http.ResponseWriter, r *http.Request) {
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

	var req group.UpdateGroupRequest
	if err := decodeAndValidate(r, &req); err != nil {
		respondWithAppError(w, err)
		return
	}

	g, err := h.groupService.UpdateGroup(ctx, userID, groupID, &req)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, g)
}

// POST /api/groups/{groupId}/members
func (h *GroupHandler) AddMember(w http.ResponseWriter, r *http.Request) {
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

	var req group.AddMemberRequest
	if err := decodeAndValidate(r, &req); err != nil {
		respondWithAppError(w, err)
		return
	}

	m, err := h.groupService.AddMember(ctx, userID, groupID, &req)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, m)
}

// GET /api/groups/{groupId}/members
func (h *GroupHandler) ListMembers(w http.ResponseWriter, r *http.Request) {
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

	members, err := h.groupService.ListMembers(ctx, userID, groupID)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, members)
}

// PUT /api/groups/{groupId}/members/me
func (h *GroupHandler) UpdateMyProfile(w http.ResponseWriter, r *http.Request) {
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

	var req group.UpdateMemberProfileRequest
	if err := decodeAndValidate(r, &req); err != nil {
		respondWithAppError(w, err)
		return
	}

	m, err := h.groupService.UpdateMyProfile(ctx, userID, groupID, &req)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, m)
}

// POST /api/groups/{groupId}/members/{memberId}/strikes
func (h *GroupHandler) AdjustStrikes(w http.ResponseWriter, r *http.Request) {
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
	memberID, err := uuidVar(r, "memberId")
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	var req group.StrikeRequest
	if err := decodeAndValidate(r, &req); err != nil {
		respondWithAppError(w, err)
		return
	}

	m, err := h.groupService.AdjustStrikes(ctx, userID, groupID, memberID, req.Delta)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, m)
}

// POST /api/groups/{groupId}/members/{memberId}/penalties/pay
func (h *GroupHandler) PayPenalty(w http.ResponseWriter, r *http.Request) {
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
	memberID, err := uuidVar(r, "memberId")
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	m, err := h.groupService.PayPenalty(ctx, userID, groupID, memberID)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, m)
}

// POST /api/groups/{groupId}/delete-vote
func (h *GroupHandler) VoteDelete(w http.ResponseWriter, r *http.Request) {
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

	res, err := h.groupService.VoteDelete(ctx, userID, groupID)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, res)
}
