package processor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	httpMaxRetries   = 3
	httpInitialDelay = 500 * time.Millisecond
	httpTimeout      = 15 * time.Second
)

// HTTPClient talks to the processor's REST API. Transient failures (network
// errors, 5xx) are retried with exponential backoff up to a small bound;
// 4xx responses map to ErrRejected and are never retried.
type HTTPClient struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// NewHTTPClient builds a client for the given API base URL and secret key.
func NewHTTPClient(baseURL, apiKey string) *HTTPClient {
	return &HTTPClient{
		apiKey:  apiKey,
		baseURL: baseURL,
		client:  &http.Client{Timeout: httpTimeout},
	}
}

type apiError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}

// CreateIntent implements Client.
func (c *HTTPClient) CreateIntent(ctx context.Context, p CreateIntentParams) (*Intent, error) {
	var out Intent
	if err := c.do(ctx, http.MethodPost, "/v1/payment_intents", p, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CancelIntent implements Client.
func (c *HTTPClient) CancelIntent(ctx context.Context, intentID string) (*Intent, error) {
	var out Intent
	path := "/v1/payment_intents/" + intentID + "/cancel"
	if err := c.do(ctx, http.MethodPost, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetIntent implements Client.
func (c *HTTPClient) GetIntent(ctx context.Context, intentID string) (*Intent, error) {
	var out Intent
	if err := c.do(ctx, http.MethodGet, "/v1/payment_intents/"+intentID, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetAccount implements Client.
func (c *HTTPClient) GetAccount(ctx context.Context, accountID string) (*Account, error) {
	var out Account
	if err := c.do(ctx, http.MethodGet, "/v1/accounts/"+accountID, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// do performs one API call with bounded retry on transient failures.
func (c *HTTPClient) do(ctx context.Context, method, path string, in, out any) error {
	var body []byte
	if in != nil {
		var err error
		body, err = json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
	}

	delay := httpInitialDelay
	var lastErr error
	for attempt := 0; attempt < httpMaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
		}

		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
		if in != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		resp.Body.Close()
		if err != nil {
			lastErr = err
			continue
		}

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			if out == nil {
				return nil
			}
			return json.Unmarshal(data, out)
		case resp.StatusCode >= 500:
			lastErr = fmt.Errorf("processor %s %s: status %d", method, path, resp.StatusCode)
			continue
		default:
			var ae apiError
			_ = json.Unmarshal(data, &ae)
			if ae.Error.Message != "" {
				return fmt.Errorf("%w: %s", ErrRejected, ae.Error.Message)
			}
			return fmt.Errorf("%w: status %d", ErrRejected, resp.StatusCode)
		}
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, lastErr)
}
