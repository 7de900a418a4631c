package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// WebhookNotifier posts {event, payload} to an automation webhook such as n8n.
type WebhookNotifier struct {
	URL          string
	Client       *http.Client
	Attempts     int
	InitialDelay time.Duration
}

func NewWebhookNotifier(url string) *WebhookNotifier {
	return &WebhookNotifier{
		URL:          url,
		Client:       &http.Client{Timeout: 10 * time.Second},
		Attempts:     3,
		InitialDelay: time.Second,
	}
}

func (w *WebhookNotifier) Notify(ctx context.Context, evt Event) error {
	body, err := json.Marshal(map[string]any{
		"event":   evt.Name,
		"payload": webhookPayload(evt),
	})
	if err != nil {
		return err
	}

	status, _, err := doWithRetry(ctx, w.Attempts, w.InitialDelay, func() (int, []byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.URL, bytes.NewReader(body))
		if err != nil {
			return 0, nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		resp, err := w.Client.Do(req)
		if err != nil {
			return 0, nil, err
		}
		defer resp.Body.Close()
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		return resp.StatusCode, data, nil
	})
	if err != nil {
		return fmt.Errorf("webhook %s: %w", evt.Name, err)
	}
	if status < 200 || status > 299 {
		return fmt.Errorf("webhook %s: status %d", evt.Name, status)
	}
	return nil
}

// webhookPayload is the event payload with the business id folded in.
func webhookPayload(evt Event) map[string]any {
	out := make(map[string]any, len(evt.Payload)+1)
	for k, v := range evt.Payload {
		out[k] = v
	}
	out["businessId"] = evt.BusinessID
	return out
}

type attemptFunc func() (status int, body []byte, err error)

// doWithRetry retries fn on transport errors, 429 and 5xx, doubling the
// delay between attempts.
func doWithRetry(ctx context.Context, attempts int, initialDelay time.Duration, fn attemptFunc) (int, []byte, error) {
	if attempts <= 0 {
		attempts = 1
	}
	if initialDelay <= 0 {
		initialDelay = time.Second
	}
	delay := initialDelay
	for i := 0; i < attempts; i++ {
		status, body, err := fn()
		if err == nil && status != http.StatusTooManyRequests && status < 500 {
			return status, body, nil
		}
		if i == attempts-1 {
			return status, body, err
		}
		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return status, body, ctx.Err()
		case <-t.C:
		}
		if delay < 30*time.Second {
			delay *= 2
		}
	}
	return 0, nil, context.DeadlineExceeded
}
