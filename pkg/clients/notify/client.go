// Package notify delivers alert messages to an external webhook, typically a
// chat bridge the farm staff already watch.
package notify

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/avionyx/farmhand/internal/config"
)

// Client delivers one alert message to the configured sink.
type Client interface {
	Send(ctx context.Context, msg Message) error
}

// Message is one outbound alert.
type Message struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	Level string `json:"level"`
}

// WebhookClient is a resty-backed implementation of Client posting JSON to a
// fixed webhook URL.
type WebhookClient struct {
	httpClient *resty.Client
	url        string
}

// NewWebhookClient builds the webhook client from configuration.
func NewWebhookClient(cfg config.NotifyConfig) *WebhookClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	restyClient := resty.New()
	restyClient.
		SetHeader("Content-Type", "application/json").
		SetTimeout(timeout)

	return &WebhookClient{
		httpClient: restyClient,
		url:        cfg.WebhookURL,
	}
}

// Send posts the message. A missing webhook URL silently drops it, so alert
// checks still run on installs without a sink configured.
func (c *WebhookClient) Send(ctx context.Context, msg Message) error {
	if c.url == "" {
		return nil
	}

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(msg).
		Post(c.url)
	if err != nil {
		return fmt.Errorf("send notification: %w", err)
	}
	if resp.StatusCode() >= http.StatusBadRequest {
		return fmt.Errorf("notification webhook error: status=%d body=%s", resp.StatusCode(), resp.String())
	}
	return nil
}
