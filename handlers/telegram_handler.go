package handlers

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"habitHeroAPI/internal/logger"
	"habitHeroAPI/internal/telegram"
)

// UpdateHandler processes a single bot update.
type UpdateHandler interface {
	Handle(ctx context.Context, u *telegram.Update) error
}

type TelegramHandler struct {
	bot    UpdateHandler
	secret string
}

func NewTelegramHandler(bot UpdateHandler, secret string) *TelegramHandler {
	return &TelegramHandler{bot: bot, secret: secret}
}

// POST /api/telegram/webhook/{secret}
//
// Once the secret matches the update is always acknowledged with 200, so
// Telegram does not redeliver updates the bot failed on.
func (h *TelegramHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	given := mux.Vars(r)["secret"]
	if h.secret == "" || subtle.ConstantTimeCompare([]byte(given), []byte(h.secret)) != 1 {
		respondWithError(w, http.StatusNotFound, "Not found")
		return
	}

	var update telegram.Update
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&update); err != nil {
		logger.LogError("Unreadable telegram update", err)
		respondWithJSON(w, http.StatusOK, map[string]bool{"ok": true})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	if err := h.bot.Handle(ctx, &update); err != nil {
		logger.LogError("Telegram update failed", err, "update_id", update.UpdateID)
	}

	respondWithJSON(w, http.StatusOK, map[string]bool{"ok": true})
}
