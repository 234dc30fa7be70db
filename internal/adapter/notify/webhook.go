// Package notify delivers lifecycle notifications to an outbound webhook.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/mamadousy92i/Mobile-Money-Transfert/config"
	"github.com/mamadousy92i/Mobile-Money-Transfert/internal/core/ports"
)

// HTTPClient interface for testability.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// WebhookNotifier implements ports.Notifier by POSTing each notification to
// a configured URL. Delivery is best-effort by contract: the caller treats
// any returned error as non-fatal.
type WebhookNotifier struct {
	url        string
	httpClient HTTPClient
	log        zerolog.Logger
}

// NewWebhookNotifier creates a webhook notifier. An empty URL disables
// delivery entirely; Notify becomes a no-op.
func NewWebhookNotifier(cfg config.NotifyConfig, log zerolog.Logger) *WebhookNotifier {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &WebhookNotifier{
		url:        cfg.WebhookURL,
		httpClient: &http.Client{Timeout: timeout},
		log:        log,
	}
}

// NewWebhookNotifierWithClient injects the HTTP client, for tests.
func NewWebhookNotifierWithClient(url string, client HTTPClient, log zerolog.Logger) *WebhookNotifier {
	return &WebhookNotifier{url: url, httpClient: client, log: log}
}

type webhookPayload struct {
	RecipientRef string `json:"recipient_ref"`
	Title        string `json:"title"`
	Message      string `json:"message"`
	Kind         string `json:"kind"`
	Timestamp    int64  `json:"timestamp"`
}

// Notify POSTs one notification. A non-2xx response is an error so the
// caller can log it, but nothing is retried here.
func (n *WebhookNotifier) Notify(ctx context.Context, notification ports.Notification) error {
	if n.url == "" {
		return nil
	}

	body, err := json.Marshal(webhookPayload{
		RecipientRef: notification.RecipientRef,
		Title:        notification.Title,
		Message:      notification.Message,
		Kind:         notification.Kind,
		Timestamp:    time.Now().Unix(),
	})
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build notification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("deliver notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("notification endpoint returned %d", resp.StatusCode)
	}

	n.log.Debug().
		Str("recipient", notification.RecipientRef).
		Str("kind", notification.Kind).
		Msg("notification delivered")
	return nil
}
