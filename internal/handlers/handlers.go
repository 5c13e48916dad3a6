// Package handlers provides the HTTP surface of the app: the
// proxy-signed order history endpoint, the OAuth install flow, webhook
// intake and the session-token GraphQL relay.
package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/chappapp/chapp/internal/cache"
	"github.com/chappapp/chapp/internal/config"
	"github.com/chappapp/chapp/internal/logging"
	"github.com/chappapp/chapp/internal/services"
	"github.com/chappapp/chapp/internal/shopsession"
)

const (
	maxWebhookBodyBytes = 1 << 20 // 1 MB
	maxRequestBodyBytes = 1 << 16 // 64 KB
)

// GraphQLForwarder relays raw GraphQL payloads to a shop's Admin API.
type GraphQLForwarder interface {
	ForwardGraphQL(ctx context.Context, payload []byte) (int, []byte, error)
}

// GraphQLForwarderFactory builds a forwarder for a shop from its
// offline token.
type GraphQLForwarderFactory func(shop, accessToken string) GraphQLForwarder

type Handlers struct {
	config         *config.Config
	historyService *services.HistoryService
	installService *services.InstallService
	cacheProvider  cache.Provider
	sessions       shopsession.Store
	newForwarder   GraphQLForwarderFactory
	validate       *validator.Validate
	logger         *slog.Logger
}

type Dependencies struct {
	Config           *config.Config
	HistoryService   *services.HistoryService
	InstallService   *services.InstallService
	CacheProvider    cache.Provider
	Sessions         shopsession.Store
	ForwarderFactory GraphQLForwarderFactory
	Logger           *slog.Logger
}

func New(deps Dependencies) (*Handlers, error) {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	if deps.Config == nil {
		return nil, fmt.Errorf("handlers dependencies: config is required")
	}
	if deps.HistoryService == nil {
		return nil, fmt.Errorf("handlers dependencies: historyService is required")
	}
	if deps.InstallService == nil {
		return nil, fmt.Errorf("handlers dependencies: installService is required")
	}
	if deps.CacheProvider == nil {
		return nil, fmt.Errorf("handlers dependencies: cacheProvider is required")
	}
	if deps.Sessions == nil {
		return nil, fmt.Errorf("handlers dependencies: sessions is required")
	}
	if deps.ForwarderFactory == nil {
		return nil, fmt.Errorf("handlers dependencies: forwarderFactory is required")
	}

	return &Handlers{
		config:         deps.Config,
		historyService: deps.HistoryService,
		installService: deps.InstallService,
		cacheProvider:  deps.CacheProvider,
		sessions:       deps.Sessions,
		newForwarder:   deps.ForwarderFactory,
		validate:       validator.New(),
		logger:         logger.With("component", "handlers"),
	}, nil
}

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, r, http.StatusOK, map[string]string{"status": "healthy"})
}

func (h *Handlers) loggerFromContext(ctx context.Context) *slog.Logger {
	return logging.FromContext(ctx, h.logger)
}

func (h *Handlers) respondJSON(w http.ResponseWriter, r *http.Request, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.loggerFromContext(r.Context()).Error("failed to encode response", "error", err)
	}
}
