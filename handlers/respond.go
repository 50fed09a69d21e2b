package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"habitHeroAPI/internal/apperr"
	"habitHeroAPI/internal/validation"
	"habitHeroAPI/middleware"
)

const maxBodyBytes = 1 << 20

var exposeInternalErrors bool

// SetDevelopment makes 500 responses carry the underlying error message.
func SetDevelopment(dev bool) {
	exposeInternalErrors = dev
}

type errorResponse struct {
	Error   string              `json:"error"`
	Code    string              `json:"code,omitempty"`
	Details []apperr.FieldError `json:"details,omitempty"`
	Message string              `json:"message,omitempty"`
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error": "Internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, errorResponse{Error: message})
}

// respondWithAppError writes the status and body for err. Errors that are not
// an *apperr.AppError become a 500 and are logged.
func respondWithAppError(w http.ResponseWriter, err error) {
	if appErr, ok := apperr.As(err); ok {
		respondWithJSON(w, appErr.Status, errorResponse{
			Error:   appErr.Message,
			Code:    appErr.Code,
			Details: appErr.Details,
		})
		return
	}

	slog.Error("Request failed", "error", err)
	body := errorResponse{Error: "Internal server error"}
	if exposeInternalErrors {
		body.Message = err.Error()
	}
	respondWithJSON(w, http.StatusInternalServerError, body)
}

// decodeAndValidate reads a JSON body into dst and runs its validate tags.
func decodeAndValidate(r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		return apperr.BadRequest("invalid_body", "Invalid request body")
	}
	return validation.Struct(dst)
}

func uuidVar(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(mux.Vars(r)[name])
	if err != nil {
		return uuid.Nil, apperr.BadRequest("invalid_id", name+" must be a valid UUID")
	}
	return id, nil
}

func currentUser(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
	}
	return userID, ok
}
