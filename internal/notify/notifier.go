package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/solstudio/ig-agent-go/internal/config"
)

// Notifier delivers human-escalation messages to the shop manager.
type Notifier interface {
	Notify(ctx context.Context, text string) error
}

// WebhookNotifier posts a plain text payload to an incoming-webhook URL
// (Slack-compatible format).
type WebhookNotifier struct {
	httpClient *http.Client
	webhookURL string
}

func NewWebhookNotifier(webhookURL string) *WebhookNotifier {
	return &WebhookNotifier{
		httpClient: &http.Client{Timeout: config.OutboundHTTPTimeout},
		webhookURL: webhookURL,
	}
}

func (n *WebhookNotifier) Notify(ctx context.Context, text string) error {
	payload, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build notification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("post notification: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("notification webhook status %d", resp.StatusCode)
	}
	return nil
}
