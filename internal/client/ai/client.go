// Package ai is a thin client for the text completion endpoint. Every request goes
// through the rate limiter before it reaches the network.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/iudanet/draftkeeper/internal/ratelimit"
	"github.com/iudanet/draftkeeper/pkg/api"
)

// completionPath путь эндпоинта генерации
const completionPath = "/v1/completions"

// Client представляет HTTP клиент сервиса генерации текста
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	baseURL    string
}

// NewClient creates a client whose transport is gated by limiter.
// base may be nil to use http.DefaultTransport.
func NewClient(baseURL string, limiter *ratelimit.Limiter, base http.RoundTripper, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		baseURL: baseURL,
		logger:  logger,
		httpClient: &http.Client{
			Timeout:   60 * time.Second,
			Transport: ratelimit.NewTransport(limiter, base),
		},
	}
}

// Complete requests a completion for prompt. A request denied by the rate limiter
// returns an error matching ratelimit.ErrRateLimited and is never sent.
func (c *Client) Complete(ctx context.Context, req api.CompletionRequest) (*api.CompletionResponse, error) {
	var resp api.CompletionResponse
	if err := c.doRequest(ctx, http.MethodPost, completionPath, req, &resp); err != nil {
		return nil, fmt.Errorf("completion request failed: %w", err)
	}

	c.logger.Debug("completion received", "document_id", req.DocumentID, "chars", len(resp.Text))
	return &resp, nil
}

// doRequest выполняет HTTP запрос
func (c *Client) doRequest(ctx context.Context, method, path string, body, result any) error {
	url := c.baseURL + path

	var bodyReader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp api.ErrorResponse
		if err := json.Unmarshal(respBody, &errResp); err == nil && errResp.Error != "" {
			return fmt.Errorf("server error (%d): %s %s", resp.StatusCode, errResp.Error, errResp.Message)
		}
		return fmt.Errorf("request failed with status %d: %s", resp.StatusCode, string(respBody))
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}
