package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/chappapp/chapp/internal/services"
	"github.com/chappapp/chapp/internal/shopify"
)

// Install starts the OAuth flow by bouncing the merchant to the shop's
// consent screen.
func (h *Handlers) Install(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.loggerFromContext(ctx)

	shop := r.URL.Query().Get("shop")
	authURL, err := h.installService.BeginInstall(ctx, shop)
	if err != nil {
		logger.Warn("rejected install request", "error", err, "shop", shop)
		http.Error(w, "Invalid shop parameter", http.StatusBadRequest)
		return
	}

	http.Redirect(w, r, authURL, http.StatusFound)
}

// InstallCallback finishes the OAuth flow. The query HMAC proves the
// redirect came from Shopify before the code is exchanged.
func (h *Handlers) InstallCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.loggerFromContext(ctx)

	query := r.URL.Query()
	if err := shopify.VerifyCallbackHMAC(query, h.config.ShopifyAPISecret); err != nil {
		logger.Warn("rejected oauth callback", "error", err)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	shop := query.Get("shop")
	session, err := h.installService.CompleteInstall(ctx, shop, query.Get("code"), query.Get("state"))
	if err != nil {
		if errors.Is(err, services.ErrInvalidOAuthState) {
			logger.Warn("rejected oauth callback with bad state", "shop", shop)
			http.Error(w, "Invalid or expired authorization state", http.StatusForbidden)
			return
		}
		logger.Error("failed to complete install", "error", err, "shop", shop)
		http.Error(w, "Installation failed", http.StatusInternalServerError)
		return
	}

	logger.Info("app installed", "shop", session.Shop)
	http.Redirect(w, r, fmt.Sprintf("https://%s/admin/apps/%s", session.Shop, h.config.ShopifyAPIKey), http.StatusFound)
}
