package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"habitHeroAPI/internal/types/group"
	"habitHeroAPI/internal/types/task"
	"habitHeroAPI/internal/types/user"
)

func TestAPIClientLoginAndGroups(t *testing.T) {
	groupID := uuid.New()
	taskID := uuid.New()

	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/verify-code", func(w http.ResponseWriter, r *http.Request) {
		var req user.VerifyCodeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if req.Code != "123456" {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":"Invalid or expired code","code":"invalid_code"}`))
			return
		}
		json.NewEncoder(w).Encode(user.AuthResponse{Token: "tok", User: &user.User{TelegramID: req.TelegramID}})
	})
	mux.HandleFunc("/api/groups/"+groupID.String(), func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode(group.Detail{Group: group.Group{ID: groupID, Name: "Crew"}})
	})
	mux.HandleFunc("/api/tasks/toggle", func(w http.ResponseWriter, r *http.Request) {
		var req task.ToggleRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, taskID.String(), req.TaskID)
		json.NewEncoder(w).Encode(task.ToggleResult{Completed: true})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := NewAPIClient(srv.URL + "/")
	ctx := context.Background()

	_, err := c.VerifyCode(ctx, "42", "000000")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Equal(t, "invalid_code", apiErr.Code)
	assert.Empty(t, c.Token())

	res, err := c.VerifyCode(ctx, "42", "123456")
	require.NoError(t, err)
	assert.Equal(t, "tok", res.Token)
	assert.Equal(t, "tok", c.Token())

	v, err := c.GroupView(ctx, groupID)
	require.NoError(t, err)
	assert.Equal(t, SourceAPI, v.Source)
	assert.Equal(t, "Crew", v.Name)

	toggled, err := c.ToggleTask(ctx, taskID)
	require.NoError(t, err)
	assert.True(t, toggled.Completed)
}

func TestAPIClientErrorWithoutBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := NewAPIClient(srv.URL).ListGroups(context.Background())
	require.Error(t, err)
	assert.True(t, IsStatus(err, http.StatusForbidden))
	assert.Contains(t, err.Error(), "Forbidden")
}
