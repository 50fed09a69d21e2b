package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"habitHeroAPI/internal/telegram"
	"habitHeroAPI/internal/types/user"
	"habitHeroAPI/middleware"
	"habitHeroAPI/services"
)

const flowSecret = "flow-secret"

func flowRouter(auth *AuthHandler) *mux.Router {
	r := mux.NewRouter()
	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/auth/verify-code", auth.VerifyCode).Methods("POST")

	protected := api.PathPrefix("").Subrouter()
	protected.Use(middleware.JWTAuthMiddleware(flowSecret))
	protected.HandleFunc("/auth/me", auth.Me).Methods("GET")
	return r
}

// TestLoginFlow walks a user from a login code to an authenticated profile read.
func TestLoginFlow(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	authService := services.NewAuthService(mock, telegram.LogMessenger{}, flowSecret, 5*time.Minute, "")
	router := flowRouter(NewAuthHandler(authService, "HabitHeroBot"))

	userID := uuid.New()
	groupID := uuid.New()
	code := "482913"
	chat := int64(1001)
	now := time.Now()
	sentAt := now.Add(-time.Minute)

	// Step 1: verify the code the bot sent
	mock.ExpectQuery(`FROM users WHERE telegram_id = \$1`).WithArgs("1001").
		WillReturnRows(pgxmock.NewRows([]string{"id", "telegram_id", "chat_id", "username", "first_name", "last_name",
			"photo_url", "email", "is_verified", "created_at", "updated_at", "verification_code", "verification_sent_at"}).
			AddRow(userID, "1001", &chat, "ana", "Ana", "", "", (*string)(nil), false, now, now, &code, &sentAt))
	mock.ExpectExec(`UPDATE users`).WithArgs(userID, code).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	rr1 := httptest.NewRecorder()
	router.ServeHTTP(rr1, httptest.NewRequest(http.MethodPost, "/api/auth/verify-code",
		strings.NewReader(`{"telegramId":"1001","code":"482913"}`)))
	require.Equal(t, http.StatusOK, rr1.Code, rr1.Body.String())

	var auth user.AuthResponse
	require.NoError(t, json.Unmarshal(rr1.Body.Bytes(), &auth))
	require.NotEmpty(t, auth.Token)
	assert.True(t, auth.User.IsVerified)

	// Step 2: the token opens protected routes
	mock.ExpectQuery(`FROM users WHERE id = \$1`).WithArgs(userID).
		WillReturnRows(pgxmock.NewRows([]string{"id", "telegram_id", "chat_id", "username", "first_name", "last_name",
			"photo_url", "email", "is_verified", "created_at", "updated_at"}).
			AddRow(userID, "1001", &chat, "ana", "Ana", "", "", (*string)(nil), true, now, now))
	mock.ExpectQuery(`FROM group_members m`).WithArgs(userID).
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "role", "display_name"}).
			AddRow(groupID, "Morning crew", "admin", "Ana"))

	req2 := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req2.Header.Set("Authorization", "Bearer "+auth.Token)
	rr2 := httptest.NewRecorder()
	router.ServeHTTP(rr2, req2)
	require.Equal(t, http.StatusOK, rr2.Code, rr2.Body.String())

	var me user.Me
	require.NoError(t, json.Unmarshal(rr2.Body.Bytes(), &me))
	assert.Equal(t, userID, me.User.ID)
	require.Len(t, me.Groups, 1)
	assert.Equal(t, "Morning crew", me.Groups[0].Name)

	// Step 3: without the token the same route is closed
	rr3 := httptest.NewRecorder()
	router.ServeHTTP(rr3, httptest.NewRequest(http.MethodGet, "/api/auth/me", nil))
	assert.Equal(t, http.StatusUnauthorized, rr3.Code)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVerifyCodeRejectsMalformedCode(t *testing.T) {
	router := flowRouter(NewAuthHandler(nil, "HabitHeroBot"))

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/auth/verify-code",
		strings.NewReader(`{"telegramId":"1001","code":"12ab"}`)))

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "validation_error", decodeError(t, rr).Code)
}
