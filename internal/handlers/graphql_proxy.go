package handlers

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/chappapp/chapp/internal/shopify"
	"github.com/chappapp/chapp/internal/shopsession"
)

// GraphQLProxy relays Admin GraphQL calls from the embedded admin UI.
// The caller authenticates with an App Bridge session token; the
// stored offline token is attached server-side and never leaves the
// app.
func (h *Handlers) GraphQLProxy(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.loggerFromContext(ctx)

	raw := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	if raw == "" || raw == r.Header.Get("Authorization") {
		logger.Warn("graphql proxy request without bearer token")
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	sessionToken, err := shopify.ParseSessionToken(raw, h.config.ShopifyAPIKey, h.config.ShopifyAPISecret)
	if err != nil {
		logger.Warn("rejected graphql proxy request", "error", err)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	session, err := h.sessions.Load(ctx, sessionToken.Shop)
	if err != nil {
		if errors.Is(err, shopsession.ErrNotFound) {
			logger.Warn("graphql proxy request for uninstalled shop", "shop", sessionToken.Shop)
			http.Error(w, "App is not installed for this shop", http.StatusForbidden)
			return
		}
		logger.Error("failed to load shop session", "error", err, "shop", sessionToken.Shop)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		logger.Warn("failed to read graphql proxy body", "error", err)
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	forwarder := h.newForwarder(sessionToken.Shop, session.AccessToken)
	status, body, err := forwarder.ForwardGraphQL(ctx, payload)
	if err != nil {
		logger.Error("graphql proxy upstream call failed", "error", err, "shop", sessionToken.Shop)
		http.Error(w, "Upstream request failed", http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		logger.Error("failed to write graphql proxy response", "error", err)
	}
}
