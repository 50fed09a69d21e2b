package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"habitHeroAPI/internal/types/group"
	"habitHeroAPI/internal/types/task"
	"habitHeroAPI/internal/types/user"
)

// APIError is a non-2xx answer from the server.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api %d %s: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("api %d: %s", e.Status, e.Message)
}

// IsStatus reports whether err is an *APIError with the given status.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == status
}

// APIClient talks to the HabitHero REST API under <base>/api.
type APIClient struct {
	base  string
	httpc *http.Client

	mu    sync.RWMutex
	token string
}

func NewAPIClient(baseURL string) *APIClient {
	return &APIClient{
		base:  strings.TrimRight(baseURL, "/") + "/api",
		httpc: &http.Client{Timeout: 15 * time.Second},
	}
}

func (c *APIClient) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

func (c *APIClient) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

func (c *APIClient) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var e struct {
			Error string `json:"error"`
			Code  string `json:"code"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&e)
		if e.Error == "" {
			e.Error = http.StatusText(resp.StatusCode)
		}
		return &APIError{Status: resp.StatusCode, Code: e.Code, Message: e.Error}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

func (c *APIClient) RequestCode(ctx context.Context, telegramID string) error {
	return c.do(ctx, http.MethodPost, "/auth/request-code", user.RequestCodeRequest{TelegramID: telegramID}, nil)
}

// VerifyCode exchanges a login code for a session and keeps the token for later calls.
func (c *APIClient) VerifyCode(ctx context.Context, telegramID, code string) (*user.AuthResponse, error) {
	var res user.AuthResponse
	err := c.do(ctx, http.MethodPost, "/auth/verify-code", user.VerifyCodeRequest{TelegramID: telegramID, Code: code}, &res)
	if err != nil {
		return nil, err
	}
	c.SetToken(res.Token)
	return &res, nil
}

func (c *APIClient) ListGroups(ctx context.Context) ([]*group.Summary, error) {
	var groups []*group.Summary
	if err := c.do(ctx, http.MethodGet, "/groups", nil, &groups); err != nil {
		return nil, err
	}
	return groups, nil
}

func (c *APIClient) GetGroup(ctx context.Context, id uuid.UUID) (*group.Detail, error) {
	var d group.Detail
	if err := c.do(ctx, http.MethodGet, "/groups/"+id.String(), nil, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// GroupView fetches the group and adapts it.
func (c *APIClient) GroupView(ctx context.Context, id uuid.UUID) (GroupView, error) {
	d, err := c.GetGroup(ctx, id)
	if err != nil {
		return GroupView{}, err
	}
	return GroupViewFromAPI(d), nil
}

func (c *APIClient) ToggleTask(ctx context.Context, taskID uuid.UUID) (*task.ToggleResult, error) {
	var res task.ToggleResult
	err := c.do(ctx, http.MethodPost, "/tasks/toggle", task.ToggleRequest{TaskID: taskID.String()}, &res)
	if err != nil {
		return nil, err
	}
	return &res, nil
}
