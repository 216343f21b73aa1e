package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/Ravikumar-Shah-2804/research-copilot-sub001/pkg/config"
)

// Webhook posts notifications as JSON to a configured HTTP endpoint.
type Webhook struct {
	url    string
	client *http.Client
}

var _ Notifier = (*Webhook)(nil)

// NewWebhook creates a webhook notifier from config.
func NewWebhook(cfg config.NotificationConfig) *Webhook {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Webhook{
		url:    cfg.WebhookURL,
		client: &http.Client{Timeout: timeout},
	}
}

// Send posts the notification payload.
func (w *Webhook) Send(ctx context.Context, priority Priority, subject, body string) error {
	if w.url == "" {
		return fmt.Errorf("webhook notifier misconfigured: empty URL")
	}

	payload, err := json.Marshal(map[string]string{
		"priority": string(priority),
		"subject":  subject,
		"body":     body,
		"sent_at":  time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("encoding notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned %s", resp.Status)
	}
	return nil
}
