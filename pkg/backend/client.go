// Package backend provides the HTTP client for the chat backend's streaming
// endpoint. It only opens the stream; decoding the SSE body is the stream
// package's job.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// ChatRequest is the payload POSTed to the backend's streaming chat endpoint.
type ChatRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
	Stream    bool   `json:"stream"`
}

// StatusError is returned when the backend responds with a non-200 status.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("backend returned status %d: %s", e.Code, e.Body)
}

// Client talks to the chat backend.
type Client struct {
	target string
	client *http.Client
	logger *zap.Logger
}

// NewClient creates a backend client for the given base URL.
func NewClient(target string, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		target: target,
		client: &http.Client{
			// LLM responses can be slow
			Timeout: 5 * time.Minute,
		},
		logger: logger,
	}
}

// Stream sends a chat message and returns the raw SSE response body.
// The caller owns the returned body and must close it. Cancelling the
// context aborts both the request and any in-flight body reads.
func (c *Client) Stream(ctx context.Context, sessionID, message string) (io.ReadCloser, error) {
	body, err := json.Marshal(ChatRequest{
		SessionID: sessionID,
		Message:   message,
		Stream:    true,
	})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	c.logger.Debug("sending chat request",
		zap.String("target", c.target),
		zap.String("session_id", sessionID),
	)

	url := c.target + "/api/chat/stream"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending request to backend: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, &StatusError{Code: resp.StatusCode, Body: string(respBody)}
	}

	return resp.Body, nil
}
