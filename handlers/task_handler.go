package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"habitHeroAPI/internal/apperr"
	"habitHeroAPI/internal/storage"
	"habitHeroAPI/internal/types/task"
	"habitHeroAPI/services"
)

const maxProofBytes = 5 << 20

type TaskHandler struct {
	taskService *services.TaskService
	proofs      *storage.ProofStore
}

// NewTaskHandler wires the task endpoints. proofs may be nil when uploads are not configured.
func NewTaskHandler(taskService *services.TaskService, proofs *storage.ProofStore) *TaskHandler {
	return &TaskHandler{taskService: taskService, proofs: proofs}
}

// POST /api/tasks/complete
func (h *TaskHandler) Complete(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req task.CompleteRequest
	if err := decodeAndValidate(r, &req); err != nil {
		respondWithAppError(w, err)
		return
	}

	c, err := h.taskService.Complete(ctx, userID, &req)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, c)
}

// POST /api/tasks/toggle
func (h *TaskHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req task.ToggleRequest
	if err := decodeAndValidate(r, &req); err != nil {
		respondWithAppError(w, err)
		return
	}
	taskID, err := parseUUID(req.TaskID, "taskId")
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	res, err := h.taskService.Toggle(ctx, userID, taskID)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, res)
}

// DELETE /api/tasks/completions/{completionId}
func (h *TaskHandler) Undo(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	completionID, err := uuidVar(r, "completionId")
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	if err := h.taskService.Undo(ctx, userID, completionID); err != nil {
		respondWithAppError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// GET /api/tasks/challenge/{challengeId}/my-completions
func (h *TaskHandler) MyCompletions(w http.ResponseWriter, r *http.Request) {
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

	completions, err := h.taskService.MyCompletions(ctx, userID, challengeID)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, completions)
}

// GET /api/tasks/task/{taskId}/completions
func (h *TaskHandler) TaskCompletions(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	taskID, err := uuidVar(r, "taskId")
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	completions, err := h.taskService.TaskCompletions(ctx, userID, taskID)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, completions)
}

// POST /api/tasks/proof - multipart upload, field "file"
func (h *TaskHandler) UploadProof(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	if h.proofs == nil {
		respondWithAppError(w, apperr.Unavailable("Proof uploads are not configured"))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxProofBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		respondWithAppError(w, apperr.BadRequest("invalid_upload", "A file field with an image up to 5MB is required"))
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if _, ok := storage.ExtensionFor(contentType); !ok {
		respondWithAppError(w, apperr.BadRequest("unsupported_media", "Only JPEG, PNG, WebP and GIF images are accepted"))
		return
	}

	url, err := h.proofs.Upload(ctx, userID, contentType, file)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, map[string]string{"url": url})
}

func parseUUID(raw, field string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, apperr.BadRequest("invalid_id", field+" must be a valid UUID")
	}
	return id, nil
}
