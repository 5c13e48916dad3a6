package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/getsentry/sentry-go/attribute"
	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/chappapp/chapp/internal/cache"
	"github.com/chappapp/chapp/internal/config"
	"github.com/chappapp/chapp/internal/logging"
	"github.com/chappapp/chapp/internal/observability"
	"github.com/chappapp/chapp/internal/shopify"
	"github.com/chappapp/chapp/internal/shopsession"
)

// oauthStateTTL bounds how long a merchant can sit on the Shopify
// consent screen before the state nonce expires.
const oauthStateTTL = 10 * time.Minute

// WebhookRegistrar is the slice of the Admin API the install flow
// needs once it holds a fresh token.
type WebhookRegistrar interface {
	RegisterWebhook(ctx context.Context, topic, address string) error
}

// WebhookRegistrarFactory builds a registrar for a freshly authorized
// shop.
type WebhookRegistrarFactory func(shop, accessToken string) WebhookRegistrar

// InstallService runs the OAuth install flow: issuing authorize URLs,
// exchanging callback codes for offline tokens, and tearing sessions
// down when the app is uninstalled.
type InstallService struct {
	cfg      *config.Config
	sessions shopsession.Store
	states   cache.Provider
	newAPI   WebhookRegistrarFactory
	logger   *slog.Logger

	// endpointFor is swapped in tests to point token exchange at a
	// local server.
	endpointFor func(shop string) oauth2.Endpoint
}

func NewInstallService(cfg *config.Config, sessions shopsession.Store, states cache.Provider, newAPI WebhookRegistrarFactory, logger *slog.Logger) *InstallService {
	return &InstallService{
		cfg:         cfg,
		sessions:    sessions,
		states:      states,
		newAPI:      newAPI,
		logger:      logger,
		endpointFor: shopifyEndpoint,
	}
}

func shopifyEndpoint(shop string) oauth2.Endpoint {
	return oauth2.Endpoint{
		AuthURL:   fmt.Sprintf("https://%s/admin/oauth/authorize", shop),
		TokenURL:  fmt.Sprintf("https://%s/admin/oauth/access_token", shop),
		AuthStyle: oauth2.AuthStyleInParams,
	}
}

func (s *InstallService) oauthConfig(shop string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     s.cfg.ShopifyAPIKey,
		ClientSecret: s.cfg.ShopifyAPISecret,
		Scopes:       strings.Split(s.cfg.ShopifyScopes, ","),
		Endpoint:     s.endpointFor(shop),
		RedirectURL:  s.cfg.RedirectURL(),
	}
}

func (s *InstallService) loggerFromContext(ctx context.Context) *slog.Logger {
	return logging.FromContext(ctx, s.logger)
}

// BeginInstall issues the consent URL for a shop and stores the state
// nonce it must come back with.
func (s *InstallService) BeginInstall(ctx context.Context, shop string) (string, error) {
	if !shopify.IsShopDomain(shop) {
		return "", fmt.Errorf("invalid shop domain: %q", shop)
	}

	state := uuid.NewString()
	if err := s.states.Set(ctx, cache.OAuthStateKey(state), shop, oauthStateTTL); err != nil {
		return "", fmt.Errorf("failed to store oauth state: %w", err)
	}

	return s.oauthConfig(shop).AuthCodeURL(state), nil
}

// CompleteInstall exchanges a callback code for an offline token,
// persists the session, and subscribes to the uninstall webhook. The
// state nonce must match the shop it was issued for and is consumed
// either way.
func (s *InstallService) CompleteInstall(ctx context.Context, shop, code, state string) (_ *shopsession.Session, err error) {
	span := sentry.StartSpan(
		ctx,
		"service.install.complete",
		sentry.WithOpName("service.install"),
		sentry.WithDescription("CompleteInstall"),
		sentry.WithSpanOrigin(sentry.SpanOriginManual),
	)
	defer span.Finish()
	ctx = span.Context()

	meter := observability.MeterFromContext(ctx)
	meter.Count("install.callback.received", 1)
	span.SetData("shopify.shop", shop)
	defer func() {
		if err != nil {
			meter.Count("install.callback.failed", 1, sentry.WithAttributes(
				attribute.String("reason", failureReason(err)),
			))
			span.Status = sentry.SpanStatusInternalError
			return
		}
		meter.Count("install.completed", 1)
		span.Status = sentry.SpanStatusOK
	}()

	logger := s.loggerFromContext(ctx)

	if !shopify.IsShopDomain(shop) {
		return nil, fmt.Errorf("invalid shop domain: %q", shop)
	}

	stateKey := cache.OAuthStateKey(state)
	issuedFor, stateErr := s.states.Get(ctx, stateKey)
	if stateErr != nil || issuedFor != shop {
		return nil, ErrInvalidOAuthState
	}
	if err := s.states.Delete(ctx, stateKey); err != nil {
		logger.Warn("failed to consume oauth state", "error", err, "shop", shop)
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, observability.NewHTTPClient(15*time.Second))
	token, err := s.oauthConfig(shop).Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange oauth code: %w", err)
	}

	scope, _ := token.Extra("scope").(string)
	session := &shopsession.Session{
		Shop:        shop,
		AccessToken: token.AccessToken,
		Scope:       scope,
		InstalledAt: time.Now().UTC(),
	}
	if err := s.sessions.Save(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save shop session: %w", err)
	}

	// The session is usable without the subscription; a failed
	// registration is reported, not fatal.
	registrar := s.newAPI(shop, token.AccessToken)
	if err := registrar.RegisterWebhook(ctx, shopify.WebhookTopicAppUninstalled, s.cfg.WebhookURL()); err != nil {
		logger.Error("failed to register uninstall webhook", "error", err, "shop", shop)
	}

	logger.Info("completed app install", "shop", shop, "scope", scope)
	return session, nil
}

// HandleUninstalled drops the shop's session after an app/uninstalled
// delivery. A shop with no stored session is already in the desired
// state.
func (s *InstallService) HandleUninstalled(ctx context.Context, shop string) error {
	logger := s.loggerFromContext(ctx)

	if err := s.sessions.Delete(ctx, shop); err != nil {
		return fmt.Errorf("failed to delete shop session: %w", err)
	}

	observability.MeterFromContext(ctx).Count("install.uninstalled", 1)
	logger.Info("removed session for uninstalled shop", "shop", shop)
	return nil
}
