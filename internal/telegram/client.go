package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

const defaultAPIBase = "https://api.telegram.org"

// Messenger is the outbound side of the bot as the rest of the app sees it.
type Messenger interface {
	SendMessage(ctx context.Context, chatID int64, text string, replyMarkup any) error
	AnswerCallback(ctx context.Context, callbackID, text string) error
}

type Client struct {
	token  string
	httpc  *http.Client
	apiURL string
}

func NewClient(token string) *Client {
	return NewClientWithBase(token, defaultAPIBase)
}

// NewClientWithBase points the client at another Bot API host.
func NewClientWithBase(token, base string) *Client {
	return &Client{
		token:  token,
		apiURL: base + "/bot" + token,
		httpc:  &http.Client{Timeout: 10 * time.Second},
	}
}

type apiResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

func (c *Client) send(ctx context.Context, method string, payload any) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("telegram %s: encode payload: %w", method, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL+"/"+method, bytes.NewReader(b))
	if err != nil {
		return fmt.Errorf("telegram %s: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("telegram %s: %w", method, err)
	}
	defer resp.Body.Close()

	var body apiResponse
	_ = json.NewDecoder(resp.Body).Decode(&body)
	if resp.StatusCode >= 300 || !body.OK {
		if body.Description != "" {
			return fmt.Errorf("telegram %s: %s: %s", method, resp.Status, body.Description)
		}
		return fmt.Errorf("telegram %s: %s", method, resp.Status)
	}
	return nil
}

func (c *Client) SendMessage(ctx context.Context, chatID int64, text string, replyMarkup any) error {
	data := map[string]any{
		"chat_id":    chatID,
		"text":       text,
		"parse_mode": "HTML",
	}
	if replyMarkup != nil {
		data["reply_markup"] = replyMarkup
	}
	return c.send(ctx, "sendMessage", data)
}

func (c *Client) AnswerCallback(ctx context.Context, callbackID, text string) error {
	data := map[string]any{"callback_query_id": callbackID}
	if text != "" {
		data["text"] = text
	}
	return c.send(ctx, "answerCallbackQuery", data)
}

// SetWebhook registers url with Telegram so updates are pushed to it.
func (c *Client) SetWebhook(ctx context.Context, url string) error {
	return c.send(ctx, "setWebhook", map[string]any{
		"url":             url,
		"allowed_updates": []string{"message", "callback_query"},
	})
}

// LogMessenger stands in when no bot token is configured; messages only reach the log.
type LogMessenger struct{}

func (LogMessenger) SendMessage(_ context.Context, chatID int64, text string, _ any) error {
	slog.Info("Telegram disabled, message not sent", "chat_id", chatID, "text", text)
	return nil
}

func (LogMessenger) AnswerCallback(_ context.Context, callbackID, _ string) error {
	slog.Debug("Telegram disabled, callback not answered", "callback_id", callbackID)
	return nil
}

// InlineButton builds a one-button inline keyboard.
func InlineButton(text, callbackData string) any {
	return map[string]any{
		"inline_keyboard": [][]map[string]string{
			{{"text": text, "callback_data": callbackData}},
		},
	}
}

// URLButton builds a one-button inline keyboard that opens url.
func URLButton(text, url string) any {
	return map[string]any{
		"inline_keyboard": [][]map[string]string{
			{{"text": text, "url": url}},
		},
	}
}
