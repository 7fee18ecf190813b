package gateways

import (
	"context"

	"github.com/pkg/errors"

	"github.com/novatrust/bio-gateway/internal/core/ports"
	"github.com/novatrust/bio-gateway/pkg/http"
)

// WebhookClient delivers terminal operation notifications to a configured
// callback endpoint
type WebhookClient struct {
	conn *http.Client
	url  string
}

// NewWebhookClient creates a webhook notification client
func NewWebhookClient(conn *http.Client, url string) ports.NotificationGateway {
	return &WebhookClient{
		conn: conn,
		url:  url,
	}
}

// Notify posts the notification payload to the webhook endpoint
func (c *WebhookClient) Notify(ctx context.Context, msg []byte) error {
	if _, err := c.conn.Post(ctx, c.url, msg); err != nil {
		return errors.WithStack(err)
	}
	return nil
}
