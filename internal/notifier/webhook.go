package notifier

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"

	"connectoralert/internal/config"
	"connectoralert/internal/models"
)

// WebhookNotifier posts alerts as JSON to an HTTP endpoint, e.g. a chat
// incoming webhook.
type WebhookNotifier struct {
	url    string
	client *resty.Client
}

type webhookPayload struct {
	Text  string        `json:"text"`
	Alert *models.Alert `json:"alert"`
}

// NewWebhookNotifier creates a webhook notifier.
func NewWebhookNotifier(cfg config.WebhookConfig) (*WebhookNotifier, error) {
	if cfg.URL == "" {
		return nil, errors.New("webhook URL is required")
	}
	u, err := url.Parse(cfg.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("invalid webhook URL %q", cfg.URL)
	}

	client := resty.New().
		SetTimeout(30*time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("User-Agent", "connector-alert")
	for k, v := range cfg.Headers {
		client.SetHeader(k, v)
	}

	return &WebhookNotifier{url: cfg.URL, client: client}, nil
}

// Name returns "webhook".
func (w *WebhookNotifier) Name() string {
	return "webhook"
}

// Send posts the alert. Any non-2xx response is an error.
func (w *WebhookNotifier) Send(ctx context.Context, alert *models.Alert) error {
	resp, err := w.client.R().
		SetContext(ctx).
		SetBody(webhookPayload{Text: alert.Message, Alert: alert}).
		Post(w.url)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode())
	}
	return nil
}

// Close is a no-op.
func (w *WebhookNotifier) Close() error {
	return nil
}
