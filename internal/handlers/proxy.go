package handlers

import (
	"context"
	"net/http"

	"github.com/getsentry/sentry-go"
	"github.com/getsentry/sentry-go/attribute"

	"github.com/chappapp/chapp/internal/logging"
	"github.com/chappapp/chapp/internal/observability"
	"github.com/chappapp/chapp/internal/shopify"
)

type shopContextKey struct{}

func withShop(ctx context.Context, shop string) context.Context {
	return context.WithValue(ctx, shopContextKey{}, shop)
}

func shopFromContext(ctx context.Context) string {
	shop, _ := ctx.Value(shopContextKey{}).(string)
	return shop
}

// RequireProxySignature authenticates app proxy traffic. The signature
// covers every query parameter Shopify appended, so a valid signature
// also vouches for the shop parameter the rest of the request relies
// on. Failures stop here; no upstream call is made for unsigned
// traffic.
func (h *Handlers) RequireProxySignature(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		logger := h.loggerFromContext(ctx)
		meter := observability.MeterFromContext(ctx)

		if err := shopify.VerifyProxySignature(r.URL.Query(), h.config.ShopifyAPISecret); err != nil {
			meter.Count("proxy.signature.rejected", 1, sentry.WithAttributes(
				attribute.String("reason", err.Error()),
			))
			logger.Warn("rejected app proxy request", "error", err, "path", r.URL.Path)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		shop := r.URL.Query().Get("shop")
		if !shopify.IsShopDomain(shop) {
			meter.Count("proxy.signature.rejected", 1, sentry.WithAttributes(
				attribute.String("reason", "bad_shop_domain"),
			))
			logger.Warn("rejected app proxy request with bad shop domain", "shop", shop)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		ctx = withShop(ctx, shop)
		ctx = logging.WithLogger(ctx, logger.With("shop", shop))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
