package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client talks to an OpenAI-compatible chat completions endpoint.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		client: &http.Client{
			Transport: &http.Transport{
				DisableKeepAlives: true, // some local servers mishandle reused connections
			},
		},
	}
}

// isRetryable reports whether a failed attempt is worth repeating.
func isRetryable(statusCode int, err error) bool {
	if err != nil {
		return true
	}
	return statusCode == 429 || statusCode >= 500
}

// isPermanentServerError detects 500s that are really request validation
// failures (chat template errors), which retrying cannot fix.
func isPermanentServerError(respBody []byte) bool {
	for _, marker := range []string{
		"conversation roles must alternate",
		"raise_exception",
		"Invalid message",
		"invalid role",
		"is undefined",
	} {
		if bytes.Contains(respBody, []byte(marker)) {
			return true
		}
	}
	return false
}

// Chat sends a completion request, retrying transient failures with
// exponential backoff.
func (c *Client) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	const maxRetries = 10
	baseDelay := 1 * time.Second
	maxDelay := 128 * time.Second

	var lastErr error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		if attempt > 0 {
			delay := baseDelay * time.Duration(1<<(attempt-1))
			if delay > maxDelay {
				delay = maxDelay
			}
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
			c.baseURL+"/chat/completions", bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		httpReq.Header.Set("Content-Type", "application/json")
		if c.apiKey != "" {
			httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
		}

		resp, err := c.client.Do(httpReq)
		if err != nil {
			lastErr = fmt.Errorf("execute request: %w", err)
			if attempt < maxRetries {
				continue
			}
			break
		}

		respBody, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			lastErr = fmt.Errorf("read response: %w", readErr)
			if attempt < maxRetries {
				continue
			}
			break
		}
		if len(respBody) == 0 {
			lastErr = fmt.Errorf("empty response body")
			if attempt < maxRetries {
				continue
			}
			break
		}

		if resp.StatusCode != http.StatusOK {
			lastErr = fmt.Errorf("API error %d: %s", resp.StatusCode, respBody)
			if resp.StatusCode == 500 && isPermanentServerError(respBody) {
				return nil, lastErr
			}
			if isRetryable(resp.StatusCode, nil) && attempt < maxRetries {
				continue
			}
			return nil, lastErr
		}

		var chatResp ChatResponse
		if err := json.Unmarshal(respBody, &chatResp); err != nil {
			preview := string(respBody)
			if len(preview) > 500 {
				preview = preview[:500] + "..."
			}
			return nil, fmt.Errorf("decode response: %w (body preview: %s)", err, preview)
		}
		return &chatResp, nil
	}

	return nil, fmt.Errorf("after %d retries: %w", maxRetries, lastErr)
}
