package notifiers

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/daniacca/genekin/internal/kinetics"
)

// WebhookNotifier POSTs each model event as JSON to a URL.
type WebhookNotifier struct {
	id      string
	url     string
	client  *http.Client
	headers http.Header
}

// WebhookOption configures a WebhookNotifier.
type WebhookOption func(*WebhookNotifier)

// WithHeader adds a header to every request.
func WithHeader(key, value string) WebhookOption {
	return func(wn *WebhookNotifier) { wn.headers.Set(key, value) }
}

// WithTimeout bounds each request. The default is five seconds.
func WithTimeout(d time.Duration) WebhookOption {
	return func(wn *WebhookNotifier) { wn.client.Timeout = d }
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) WebhookOption {
	return func(wn *WebhookNotifier) { wn.client = c }
}

// NewWebhookNotifier creates a notifier delivering to url.
func NewWebhookNotifier(id, url string, opts ...WebhookOption) *WebhookNotifier {
	wn := &WebhookNotifier{
		id:      id,
		url:     url,
		client:  &http.Client{Timeout: 5 * time.Second},
		headers: make(http.Header),
	}
	for _, opt := range opts {
		opt(wn)
	}
	return wn
}

// URL returns the target URL.
func (wn *WebhookNotifier) URL() string { return wn.url }

func (wn *WebhookNotifier) ID() string   { return wn.id }
func (wn *WebhookNotifier) Type() string { return "webhook" }

// Notify posts the event. The event type is repeated in the
// X-Genekin-Event header. Any non-2xx status is an error so the manager
// retries it.
func (wn *WebhookNotifier) Notify(ctx context.Context, event kinetics.NotificationEvent) error {
	body, err := event.JSON()
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, wn.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	for key, values := range wn.headers {
		req.Header[key] = values
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Genekin-Event", string(event.Type))

	resp, err := wn.client.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook %s: %w", wn.id, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return fmt.Errorf("webhook %s returned status %d: %s", wn.id, resp.StatusCode, bytes.TrimSpace(snippet))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// Close is a no-op; webhooks hold no connection.
func (wn *WebhookNotifier) Close() error { return nil }
