package quality

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Notifier delivers rendered alert messages.
type Notifier interface {
	Notify(ctx context.Context, message string) error
}

type webhookPayload struct {
	MsgType string `json:"msgtype"`
	Text    struct {
		Content string `json:"content"`
	} `json:"text"`
}

// WebhookNotifier posts alert messages to a webhook endpoint.
type WebhookNotifier struct {
	url    string
	client *http.Client
}

// NewWebhookNotifier creates a webhook notifier for url.
func NewWebhookNotifier(url string) (*WebhookNotifier, error) {
	if url == "" {
		return nil, errors.New("quality: webhook url is empty")
	}
	return &WebhookNotifier{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}, nil
}

// Notify posts message as a text payload.
func (n *WebhookNotifier) Notify(ctx context.Context, message string) error {
	var payload webhookPayload
	payload.MsgType = "text"
	payload.Text.Content = message

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("quality: marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("quality: build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("quality: send webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("quality: webhook returned status %d", resp.StatusCode)
	}
	return nil
}
