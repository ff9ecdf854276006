// Package platform implements the chat-platform history API client
// (OneBot v11 compatible HTTP transport).
package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"chatsummary/internal/domain"
)

const defaultHTTPTimeout = 30 * time.Second

// Client implements domain.MessageStore over the platform's HTTP action API.
type Client struct {
	apiBase     string
	accessToken string
	client      *http.Client
	logger      *slog.Logger
}

type ClientConfig struct {
	APIBase     string
	AccessToken string
	Logger      *slog.Logger
}

func NewClient(cfg ClientConfig) *Client {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Client{
		apiBase:     cfg.APIBase,
		accessToken: cfg.AccessToken,
		client:      &http.Client{Timeout: defaultHTTPTimeout},
		logger:      cfg.Logger,
	}
}

// actionResponse is the platform's uniform envelope.
type actionResponse struct {
	Status  string          `json:"status"`
	RetCode int             `json:"retcode"`
	Data    json.RawMessage `json:"data"`
}

func (c *Client) callAction(ctx context.Context, action string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", action, err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.apiBase+"/"+action, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.accessToken)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s request: %w", action, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%s returned %d: %s", action, resp.StatusCode, string(respBody))
	}

	var envelope actionResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("decode %s response: %w", action, err)
	}
	if envelope.Status == "failed" || envelope.RetCode != 0 {
		return fmt.Errorf("%s failed with retcode %d", action, envelope.RetCode)
	}
	if out != nil && len(envelope.Data) > 0 {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return fmt.Errorf("decode %s data: %w", action, err)
		}
	}
	return nil
}

type historyData struct {
	Messages []domain.RawMessage `json:"messages"`
}

// FetchHistory pages backward from cursorSeq (0 = most recent). Batches come
// back newest-first when reverse is set.
func (c *Client) FetchHistory(ctx context.Context, groupID, cursorSeq int64, count int, reverse bool) ([]domain.RawMessage, error) {
	payload := map[string]any{
		"group_id":     groupID,
		"message_seq":  cursorSeq,
		"count":        count,
		"reverseOrder": reverse,
	}
	var data historyData
	if err := c.callAction(ctx, "get_group_msg_history", payload, &data); err != nil {
		return nil, &domain.RetrievalError{GroupID: groupID, Err: err}
	}
	return data.Messages, nil
}

// FetchRecent returns the newest count messages, newest-first.
func (c *Client) FetchRecent(ctx context.Context, groupID int64, count int) ([]domain.RawMessage, error) {
	payload := map[string]any{
		"group_id": groupID,
		"count":    count,
	}
	var data historyData
	if err := c.callAction(ctx, "get_group_msg_history", payload, &data); err != nil {
		return nil, &domain.RetrievalError{GroupID: groupID, Err: err}
	}
	return data.Messages, nil
}

type loginInfoData struct {
	UserID int64 `json:"user_id"`
}

// LoginInfo returns the bot's own user ID, used for self-exclusion.
func (c *Client) LoginInfo(ctx context.Context) (int64, error) {
	var data loginInfoData
	if err := c.callAction(ctx, "get_login_info", map[string]any{}, &data); err != nil {
		return 0, err
	}
	return data.UserID, nil
}

// SendGroupMessage delivers parts to a group.
func (c *Client) SendGroupMessage(ctx context.Context, groupID int64, parts []domain.MessagePart) error {
	payload := map[string]any{
		"group_id": groupID,
		"message":  parts,
	}
	if err := c.callAction(ctx, "send_group_msg", payload, nil); err != nil {
		return fmt.Errorf("send group message: %w", err)
	}
	c.logger.Debug("group message sent", "group_id", groupID, "parts", len(parts))
	return nil
}
