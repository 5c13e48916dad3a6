package shopify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// WebhookTopicAppUninstalled is the only topic the app subscribes to;
// it tears down the shop's offline session.
const WebhookTopicAppUninstalled = "app/uninstalled"

type webhookSubscription struct {
	Topic   string `json:"topic"`
	Address string `json:"address"`
	Format  string `json:"format"`
}

// RegisterWebhook subscribes the shop to a webhook topic delivered to
// the given address. Registration is idempotent on Shopify's side for
// an identical topic/address pair; a 422 for an existing subscription
// is treated as success.
func (c *Client) RegisterWebhook(ctx context.Context, topic, address string) error {
	payload, err := json.Marshal(map[string]webhookSubscription{
		"webhook": {Topic: topic, Address: address, Format: "json"},
	})
	if err != nil {
		return fmt.Errorf("failed to encode webhook subscription: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.adminURL("webhooks.json"), bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build webhook request: %w", err)
	}
	c.setCommonHeaders(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &UpstreamError{Surface: "rest", Err: err}
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	switch {
	case resp.StatusCode == http.StatusCreated || resp.StatusCode == http.StatusOK:
		return nil
	case resp.StatusCode == http.StatusUnprocessableEntity && strings.Contains(string(body), "already been taken"):
		return nil
	default:
		return &UpstreamError{Surface: "rest", Status: resp.StatusCode, Messages: []string{strings.TrimSpace(string(body))}}
	}
}
