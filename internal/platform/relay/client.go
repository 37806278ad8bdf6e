// Package relay is the agent's side of the broker protocol: polling,
// submitting and the push subscription.
package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dontdude/scanprint/internal/domain"
)

type jobResponse struct {
	Status  string  `json:"status"`
	Data    *string `json:"data"`
	Message string  `json:"message"`
}

// Client talks to the broker's HTTP endpoints.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient returns a client for the broker at baseURL.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// Poll asks for the next job. ok is false when the queue is empty.
// Any network or protocol failure is a transport error.
func (c *Client) Poll(ctx context.Context) (string, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/get-job", nil)
	if err != nil {
		return "", false, domain.Wrap(domain.KindTransport, "poll", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", false, domain.Wrap(domain.KindTransport, "poll", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", false, domain.Wrap(domain.KindTransport, "poll", fmt.Errorf("unexpected status %s", resp.Status))
	}

	var body jobResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", false, domain.Wrap(domain.KindTransport, "poll", fmt.Errorf("decode response: %w", err))
	}

	switch body.Status {
	case "ok":
		if body.Data == nil || *body.Data == "" {
			return "", false, domain.Wrap(domain.KindTransport, "poll", fmt.Errorf("job without data"))
		}
		return *body.Data, true, nil
	case "empty":
		return "", false, nil
	default:
		return "", false, domain.Wrap(domain.KindTransport, "poll", fmt.Errorf("unexpected status %q", body.Status))
	}
}

// Submit enqueues payload on the broker. Rejections come back as
// validation errors, everything else as transport errors.
func (c *Client) Submit(ctx context.Context, payload string) error {
	data, err := json.Marshal(map[string]string{"data": payload})
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/send-to-print", bytes.NewReader(data))
	if err != nil {
		return domain.Wrap(domain.KindTransport, "submit", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return domain.Wrap(domain.KindTransport, "submit", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	var body jobResponse
	_ = json.NewDecoder(resp.Body).Decode(&body)
	err = fmt.Errorf("broker returned %s: %s", resp.Status, body.Message)
	if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
		return domain.Wrap(domain.KindValidation, "submit", err)
	}
	return domain.Wrap(domain.KindTransport, "submit", err)
}

// PushURL derives the WebSocket endpoint from the broker's base URL.
func PushURL(baseURL string) (string, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return "", fmt.Errorf("invalid server url: %w", err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported server url scheme %q", u.Scheme)
	}
	if !strings.HasSuffix(u.Path, "/ws-print") {
		u.Path += "/ws-print"
	}
	return u.String(), nil
}
