// Package submission posts analysis payloads to the case-management API.
package submission

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/opensource-finance/lavandowski/internal/domain"
)

// ErrRejected is returned when the API answers with a client or server error.
var ErrRejected = errors.New("submission rejected")

// Client submits offense analyses.
type Client struct {
	url        string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a submission client.
func NewClient(cfg domain.SubmissionConfig) *Client {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		url:        cfg.URL,
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Submit posts the payload and returns the response body.
// The body is returned alongside ErrRejected for status codes >= 400.
func (c *Client) Submit(ctx context.Context, payload domain.ExportPayload) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to encode payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build submission request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", c.apiKey)

	res, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("submission failed: %w", err)
	}
	defer res.Body.Close()

	text, err := io.ReadAll(res.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read submission response: %w", err)
	}

	if res.StatusCode >= http.StatusBadRequest {
		return string(text), fmt.Errorf("%w: status %d", ErrRejected, res.StatusCode)
	}
	return string(text), nil
}
