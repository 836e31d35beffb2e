// Package gateway implements the session gateway port over HTTP.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client delivers messages to agent sessions via the gateway's
// POST /api/sessions/send endpoint.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a gateway client. baseURL must not be empty.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

type sendRequest struct {
	SessionKey string `json:"sessionKey"`
	Message    string `json:"message"`
}

// Send pushes a message to the given session. Any non-2xx response or
// transport failure is an error; the caller keeps the notification queued.
func (c *Client) Send(ctx context.Context, sessionKey, message string) error {
	body, err := json.Marshal(sendRequest{SessionKey: sessionKey, Message: message})
	if err != nil {
		return fmt.Errorf("marshal send request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/api/sessions/send", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build send request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("gateway send: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("gateway send: unexpected status %d", resp.StatusCode)
	}
	return nil
}
