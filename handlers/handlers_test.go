package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"habitHeroAPI/internal/apperr"
	"habitHeroAPI/internal/storage"
	"habitHeroAPI/internal/telegram"
	"habitHeroAPI/middleware"
	"habitHeroAPI/services"
)

func authed(r *http.Request, userID uuid.UUID) *http.Request {
	return r.WithContext(middleware.WithUserID(r.Context(), userID))
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var body errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestRespondWithAppError(t *testing.T) {
	t.Run("app error keeps status and code", func(t *testing.T) {
		rec := httptest.NewRecorder()
		respondWithAppError(rec, apperr.Conflict("already_completed", "Task already completed"))

		assert.Equal(t, http.StatusConflict, rec.Code)
		body := decodeError(t, rec)
		assert.Equal(t, "already_completed", body.Code)
		assert.Equal(t, "Task already completed", body.Error)
	})

	t.Run("plain error hides message in production", func(t *testing.T) {
		SetDevelopment(false)
		rec := httptest.NewRecorder()
		respondWithAppError(rec, errors.New("pool exhausted"))

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		body := decodeError(t, rec)
		assert.Equal(t, "Internal server error", body.Error)
		assert.Empty(t, body.Message)
	})

	t.Run("plain error shows message in development", func(t *testing.T) {
		SetDevelopment(true)
		defer SetDevelopment(false)
		rec := httptest.NewRecorder()
		respondWithAppError(rec, errors.New("pool exhausted"))

		assert.Equal(t, "pool exhausted", decodeError(t, rec).Message)
	})
}

func TestHandlersRequireUser(t *testing.T) {
	h := NewNotificationHandler(nil)
	rec := httptest.NewRecorder()
	h.GetSettings(rec, httptest.NewRequest(http.MethodGet, "/api/notifications/settings", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestInvalidPathID(t *testing.T) {
	h := NewGroupHandler(nil)
	req := httptest.NewRequest(http.MethodGet, "/api/groups/nope", nil)
	req = mux.SetURLVars(authed(req, uuid.New()), map[string]string{"groupId": "nope"})
	rec := httptest.NewRecorder()

	h.GetGroup(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_id", decodeError(t, rec).Code)
}

func TestNotificationSettings(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	h := NewNotificationHandler(services.NewNotificationService(mock))
	userID := uuid.New()

	t.Run("defaults when nothing is stored", func(t *testing.T) {
		mock.ExpectQuery("FROM notification_settings").
			WithArgs(userID).
			WillReturnError(pgx.ErrNoRows)

		rec := httptest.NewRecorder()
		h.GetSettings(rec, authed(httptest.NewRequest(http.MethodGet, "/api/notifications/settings", nil), userID))

		require.Equal(t, http.StatusOK, rec.Code)
		var body map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "20:00", body["reminderTime"])
		assert.Equal(t, true, body["enabled"])
	})

	t.Run("update stores settings", func(t *testing.T) {
		mock.ExpectExec("INSERT INTO notification_settings").
			WithArgs(userID, true, false, "07:30", true).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		payload := `{"enabled":true,"dailyReminder":false,"reminderTime":"07:30","deadlineAlert":true}`
		req := authed(httptest.NewRequest(http.MethodPut, "/api/notifications/settings", strings.NewReader(payload)), userID)
		rec := httptest.NewRecorder()
		h.UpdateSettings(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"reminderTime":"07:30"`)
	})

	t.Run("bad time is rejected before the database", func(t *testing.T) {
		payload := `{"enabled":true,"reminderTime":"25:99"}`
		req := authed(httptest.NewRequest(http.MethodPut, "/api/notifications/settings", strings.NewReader(payload)), userID)
		rec := httptest.NewRecorder()
		h.UpdateSettings(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "validation_error", decodeError(t, rec).Code)
	})

	t.Run("malformed body", func(t *testing.T) {
		req := authed(httptest.NewRequest(http.MethodPut, "/api/notifications/settings", strings.NewReader("{")), userID)
		rec := httptest.NewRecorder()
		h.UpdateSettings(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "invalid_body", decodeError(t, rec).Code)
	})

	require.NoError(t, mock.ExpectationsWereMet())
}

type fakeBot struct {
	updates []*telegram.Update
	err     error
}

func (f *fakeBot) Handle(_ context.Context, u *telegram.Update) error {
	f.updates = append(f.updates, u)
	return f.err
}

func TestTelegramWebhook(t *testing.T) {
	update := `{"update_id":7,"message":{"message_id":1,"from":{"id":42},"chat":{"id":42},"text":"/help"}}`

	tests := []struct {
		name     string
		secret   string
		botErr   error
		wantCode int
		handled  int
	}{
		{name: "accepted", secret: "s3cret", wantCode: http.StatusOK, handled: 1},
		{name: "bot failure still acknowledged", secret: "s3cret", botErr: errors.New("send failed"), wantCode: http.StatusOK, handled: 1},
		{name: "wrong secret", secret: "guess", wantCode: http.StatusNotFound, handled: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bot := &fakeBot{err: tt.botErr}
			h := NewTelegramHandler(bot, "s3cret")

			req := httptest.NewRequest(http.MethodPost, "/api/telegram/webhook/"+tt.secret, strings.NewReader(update))
			req = mux.SetURLVars(req, map[string]string{"secret": tt.secret})
			rec := httptest.NewRecorder()
			h.Webhook(rec, req)

			assert.Equal(t, tt.wantCode, rec.Code)
			require.Len(t, bot.updates, tt.handled)
			if tt.handled == 1 {
				assert.Equal(t, int64(7), bot.updates[0].UpdateID)
			}
		})
	}
}

func TestTelegramWebhookWithoutSecret(t *testing.T) {
	h := NewTelegramHandler(&fakeBot{}, "")
	req := mux.SetURLVars(httptest.NewRequest(http.MethodPost, "/api/telegram/webhook/", nil), map[string]string{"secret": ""})
	rec := httptest.NewRecorder()
	h.Webhook(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

func TestHealth(t *testing.T) {
	rec := httptest.NewRecorder()
	NewHealthHandler(stubPinger{}).Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")

	rec = httptest.NewRecorder()
	NewHealthHandler(stubPinger{err: errors.New("down")}).Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

type recordingPutter struct {
	calls int
}

func (p *recordingPutter) PutObject(context.Context, *s3.PutObjectInput, ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	p.calls++
	return &s3.PutObjectOutput{}, nil
}

func multipartImage(t *testing.T, contentType string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	hdr := textproto.MIMEHeader{}
	hdr.Set("Content-Disposition", `form-data; name="file"; filename="proof"`)
	hdr.Set("Content-Type", contentType)
	part, err := mw.CreatePart(hdr)
	require.NoError(t, err)
	_, err = part.Write([]byte("image-bytes"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestUploadProof(t *testing.T) {
	userID := uuid.New()

	t.Run("not configured", func(t *testing.T) {
		h := NewTaskHandler(nil, nil)
		body, ct := multipartImage(t, "image/png")
		req := authed(httptest.NewRequest(http.MethodPost, "/api/tasks/proof", body), userID)
		req.Header.Set("Content-Type", ct)
		rec := httptest.NewRecorder()
		h.UploadProof(rec, req)

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})

	t.Run("stores image", func(t *testing.T) {
		putter := &recordingPutter{}
		h := NewTaskHandler(nil, storage.NewProofStoreWithClient(putter, "eu-west-1", "proofs", "https://cdn.example.com"))
		body, ct := multipartImage(t, "image/jpeg")
		req := authed(httptest.NewRequest(http.MethodPost, "/api/tasks/proof", body), userID)
		req.Header.Set("Content-Type", ct)
		rec := httptest.NewRecorder()
		h.UploadProof(rec, req)

		require.Equal(t, http.StatusCreated, rec.Code)
		var res map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
		assert.True(t, strings.HasPrefix(res["url"], "https://cdn.example.com/proofs/"+userID.String()+"/"))
		assert.True(t, strings.HasSuffix(res["url"], ".jpg"))
		assert.Equal(t, 1, putter.calls)
	})

	t.Run("rejects other media", func(t *testing.T) {
		putter := &recordingPutter{}
		h := NewTaskHandler(nil, storage.NewProofStoreWithClient(putter, "eu-west-1", "proofs", ""))
		body, ct := multipartImage(t, "application/pdf")
		req := authed(httptest.NewRequest(http.MethodPost, "/api/tasks/proof", body), userID)
		req.Header.Set("Content-Type", ct)
		rec := httptest.NewRecorder()
		h.UploadProof(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "unsupported_media", decodeError(t, rec).Code)
		assert.Zero(t, putter.calls)
	})
}

func TestToggleRejectsBadTaskID(t *testing.T) {
	h := NewTaskHandler(nil, nil)
	req := authed(httptest.NewRequest(http.MethodPost, "/api/tasks/toggle", strings.NewReader(`{"taskId":"x"}`)), uuid.New())
	rec := httptest.NewRecorder()
	h.Toggle(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLoginQR(t *testing.T) {
	h := NewAuthHandler(nil, "HabitHeroBot")
	rec := httptest.NewRecorder()
	h.LoginQR(rec, httptest.NewRequest(http.MethodGet, "/api/auth/qr.png", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("\x89PNG")))
}
