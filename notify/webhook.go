package notify

import (
	"context"
	"net/http"
	"time"

	prhttp "github.com/randalmurphal/proref/http"
)

// WebhookNotifier posts events as JSON to a generic HTTP webhook.
type WebhookNotifier struct {
	client *prhttp.Client
}

// NewWebhookNotifier creates a webhook notifier. headers are sent with
// every request.
func NewWebhookNotifier(url string, headers map[string]string) *WebhookNotifier {
	return &WebhookNotifier{client: newPoster(url, "webhook", headers)}
}

// Notify implements Notifier.
func (n *WebhookNotifier) Notify(ctx context.Context, event Event) error {
	return n.client.Post(ctx, "", event, nil)
}

func newPoster(url, service string, headers map[string]string) *prhttp.Client {
	return prhttp.NewClient(prhttp.ClientConfig{
		Client:      &http.Client{Timeout: 10 * time.Second},
		BaseURL:     url,
		ServiceName: service,
		BeforeRequest: func(req *http.Request) {
			for k, v := range headers {
				req.Header.Set(k, v)
			}
		},
	})
}
