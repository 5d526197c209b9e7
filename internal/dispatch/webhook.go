package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/kkkkikiki/codecast/internal/render"
)

// WebhookNotifier posts announcements to webhook URLs. The destination id is
// the webhook URL itself. The formatted message is posted first, then each
// bare code as its own message so users can copy-paste them.
type WebhookNotifier struct {
	httpClient *http.Client
}

// NewWebhookNotifier creates a webhook-backed notifier
func NewWebhookNotifier(timeout time.Duration) *WebhookNotifier {
	return &WebhookNotifier{
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Send posts the payload to the destination webhook. Any message in the
// sequence failing fails the whole send; the dispatcher treats the sequence
// as one attempt unit.
func (n *WebhookNotifier) Send(ctx context.Context, destination string, payload render.Payload) error {
	if err := n.post(ctx, destination, payload.Message); err != nil {
		return err
	}
	for _, line := range payload.CodeLines {
		if err := n.post(ctx, destination, line); err != nil {
			return err
		}
	}
	return nil
}

func (n *WebhookNotifier) post(ctx context.Context, url, content string) error {
	body, err := json.Marshal(map[string]string{"content": content})
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("webhook returned status %d: %s", resp.StatusCode, string(msg))
	}
	return nil
}
