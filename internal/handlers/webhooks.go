package handlers

import (
	"io"
	"net/http"
	"time"

	"github.com/chappapp/chapp/internal/cache"
	"github.com/chappapp/chapp/internal/shopify"
)

// webhookMarkerTTL is how long a processed delivery id is remembered.
// Shopify retries deliveries for at most 48 hours.
const webhookMarkerTTL = 48 * time.Hour

// Webhook ingests Shopify webhook deliveries. Unverifiable payloads
// are rejected; verified topics the app does not subscribe to are
// acknowledged and dropped.
func (h *Handlers) Webhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.loggerFromContext(ctx)

	r.Body = http.MaxBytesReader(w, r.Body, maxWebhookBodyBytes)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		logger.Error("failed to read webhook body", "error", err)
		http.Error(w, "Invalid webhook", http.StatusBadRequest)
		return
	}

	digest := r.Header.Get("X-Shopify-Hmac-Sha256")
	if err := shopify.VerifyWebhookDigest(body, digest, h.config.ShopifyAPISecret); err != nil {
		logger.Warn("rejected webhook with bad digest", "error", err)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	topic := r.Header.Get("X-Shopify-Topic")
	shop := r.Header.Get("X-Shopify-Shop-Domain")
	deliveryID := r.Header.Get("X-Shopify-Webhook-Id")
	if deliveryID == "" {
		logger.Error("webhook delivery has no id", "topic", topic)
		http.Error(w, "Missing webhook id", http.StatusBadRequest)
		return
	}

	cacheKey := cache.WebhookKey(deliveryID)
	if _, err := h.cacheProvider.Get(ctx, cacheKey); err == nil {
		logger.Info("webhook already processed", "delivery_id", deliveryID, "topic", topic)
		w.WriteHeader(http.StatusOK)
		return
	}

	var processErr error
	switch topic {
	case shopify.WebhookTopicAppUninstalled:
		processErr = h.installService.HandleUninstalled(ctx, shop)
	default:
		logger.Info("ignoring webhook for unsubscribed topic", "topic", topic, "shop", shop)
	}

	if processErr != nil {
		logger.Error("failed to process webhook", "error", processErr, "topic", topic, "shop", shop)
		http.Error(w, "Processing failed", http.StatusInternalServerError)
		return
	}

	if err := h.cacheProvider.Set(ctx, cacheKey, "processed", webhookMarkerTTL); err != nil {
		logger.Error("failed to mark webhook as processed", "error", err, "delivery_id", deliveryID)
	}

	w.WriteHeader(http.StatusOK)
}
