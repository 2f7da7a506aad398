// Package client talks to a running voice server.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultURL is where the server listens with its default configuration.
const DefaultURL = "http://127.0.0.1:8888"

// Notification is the body of POST /notify.
type Notification struct {
	Title   string `json:"title,omitempty"`
	Message string `json:"message"`
	// VoiceEnabled is only sent when set; the server speaks by default.
	VoiceEnabled *bool  `json:"voice_enabled,omitempty"`
	Voice        string `json:"voice,omitempty"`
}

// Response is the body of a successful notification.
type Response struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// Health is the body of GET /health.
type Health struct {
	Status         string `json:"status"`
	Port           int    `json:"port"`
	VoiceSystem    string `json:"voice_system"`
	DefaultVoice   string `json:"default_voice"`
	APIKeyRequired bool   `json:"api_key_required"`
}

// StatusError is returned for any non-2xx response.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("voice server returned status %d: %s", e.StatusCode, e.Message)
}

type Client struct {
	baseURL    string
	httpClient *http.Client
}

func New(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultURL
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Notify posts n to the server's /notify endpoint.
func (c *Client) Notify(ctx context.Context, n Notification) (*Response, error) {
	body, err := json.Marshal(n)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/notify", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create notify request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var out Response
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Health fetches the server status.
func (c *Client) Health(ctx context.Context) (*Health, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create health request: %w", err)
	}

	var out Health
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call voice server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &StatusError{StatusCode: resp.StatusCode, Message: errorMessage(respBody)}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode voice server response: %w", err)
	}
	return nil
}

// errorMessage pulls the message out of a JSON error body; plain-text bodies are used as is.
func errorMessage(body []byte) string {
	var apiErr struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Message != "" {
		return apiErr.Message
	}
	return strings.TrimSpace(string(body))
}
