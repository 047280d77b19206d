package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/mesh-intelligence/cakeday/pkg/types"
)

// Webhook posts each message as JSON to an HTTP endpoint that relays it to
// the end user's channel (bot platform, email, push gateway).
type Webhook struct {
	url    string
	token  string
	client *http.Client
}

type webhookPayload struct {
	RecipientID string `json:"recipient_id"`
	Text        string `json:"text"`
}

// StatusError is returned for non-2xx webhook responses.
type StatusError struct {
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("webhook responded %s", e.Status)
}

// NewWebhook validates cfg and returns a Webhook transport. A missing URL or
// token is an invalid credential.
func NewWebhook(cfg types.TransportConfig) (*Webhook, error) {
	if cfg.URL == "" || cfg.Token == "" {
		return nil, types.ErrTransportCredential
	}
	to := cfg.Timeout
	if to <= 0 {
		to = types.DefaultTransportTimeout
	}
	return &Webhook{
		url:    cfg.URL,
		token:  cfg.Token,
		client: newHTTPClient(to),
	}, nil
}

func newHTTPClient(timeout time.Duration) *http.Client {
	tr := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		DialContext:         (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 60 * time.Second}).DialContext,
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 5 * time.Second,
	}
	return &http.Client{Timeout: timeout, Transport: tr}
}

// Send makes exactly one POST attempt. 403 and 410 map to
// ErrRecipientBlocked; other non-2xx statuses return a *StatusError.
func (w *Webhook) Send(ctx context.Context, recipientID, text string) error {
	body, err := json.Marshal(webhookPayload{RecipientID: recipientID, Text: text})
	if err != nil {
		return fmt.Errorf("encoding message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+w.token)

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("posting message: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	switch {
	case resp.StatusCode/100 == 2:
		return nil
	case resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusGone:
		return fmt.Errorf("%w: %s", ErrRecipientBlocked, resp.Status)
	default:
		return &StatusError{StatusCode: resp.StatusCode, Status: resp.Status}
	}
}
