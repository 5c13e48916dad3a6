package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	sentryslog "github.com/getsentry/sentry-go/slog"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lmittmann/tint"

	"github.com/chappapp/chapp/internal/cache"
	"github.com/chappapp/chapp/internal/config"
	"github.com/chappapp/chapp/internal/crypto"
	"github.com/chappapp/chapp/internal/db"
	"github.com/chappapp/chapp/internal/handlers"
	"github.com/chappapp/chapp/internal/logging"
	"github.com/chappapp/chapp/internal/services"
	"github.com/chappapp/chapp/internal/shopify"
	"github.com/chappapp/chapp/internal/shopsession"
)

type App struct {
	Config        *config.Config
	Logger        *slog.Logger
	DB            *pgxpool.Pool
	CacheProvider cache.Provider
	Sessions      shopsession.Store
	Handlers      *handlers.Handlers
}

func New() (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	if cfg.SentryDSN != "" {
		err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			EnableTracing:    true,
			TracesSampleRate: 1.0,
			EnableLogs:       true,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize sentry: %w", err)
		}
	}

	logger := newLogger(cfg)

	startupCtx, startupCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer startupCancel()

	// The pool exists only for the postgres session store.
	var pool *pgxpool.Pool
	var encryptor crypto.Encryptor
	if cfg.SessionStoreProvider == "postgres" {
		pool, err = db.Connect(startupCtx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		encryptor, err = crypto.NewEncryptor(cfg.EncryptionKey)
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("failed to initialize encryptor: %w", err)
		}
	}

	cacheProvider, err := cache.NewProvider(cache.Config{
		Provider:              cfg.CacheProvider,
		RedisConnectionString: cfg.RedisConnectionString,
	})
	if err != nil {
		closePool(pool)
		return nil, fmt.Errorf("failed to initialize cache provider: %w", err)
	}

	sessions, err := shopsession.NewStore(startupCtx, shopsession.Config{
		Provider:              cfg.SessionStoreProvider,
		RedisConnectionString: cfg.RedisConnectionString,
		Pool:                  pool,
		Encryptor:             encryptor,
	})
	if err != nil {
		closeCacheProvider(logger, cacheProvider)
		closePool(pool)
		return nil, fmt.Errorf("failed to initialize session store: %w", err)
	}

	clientLogger := logger.With("component", "shopify_client")
	newClient := func(shop, accessToken string) *shopify.Client {
		return shopify.NewClient(shop, accessToken, cfg.ShopifyAPIVersion, clientLogger)
	}

	historyService := services.NewHistoryService(sessions, func(shop, accessToken string) services.OrderAPI {
		return newClient(shop, accessToken)
	}, logger.With("component", "history_service"))
	installService := services.NewInstallService(cfg, sessions, cacheProvider, func(shop, accessToken string) services.WebhookRegistrar {
		return newClient(shop, accessToken)
	}, logger.With("component", "install_service"))

	h, err := handlers.New(handlers.Dependencies{
		Config:         cfg,
		HistoryService: historyService,
		InstallService: installService,
		CacheProvider:  cacheProvider,
		Sessions:       sessions,
		ForwarderFactory: func(shop, accessToken string) handlers.GraphQLForwarder {
			return newClient(shop, accessToken)
		},
		Logger: logger,
	})
	if err != nil {
		closeSessions(logger, sessions)
		closeCacheProvider(logger, cacheProvider)
		closePool(pool)
		return nil, fmt.Errorf("failed to initialize handlers: %w", err)
	}

	return &App{
		Config:        cfg,
		Logger:        logger,
		DB:            pool,
		CacheProvider: cacheProvider,
		Sessions:      sessions,
		Handlers:      h,
	}, nil
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.Sessions != nil {
		closeSessions(a.Logger, a.Sessions)
	}
	if a.CacheProvider != nil {
		closeCacheProvider(a.Logger, a.CacheProvider)
	}
	closePool(a.DB)
	sentry.Flush(2 * time.Second)
}

func newLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var local slog.Handler
	format := strings.ToLower(strings.TrimSpace(cfg.LogFormat))
	switch format {
	case "json":
		local = slog.NewJSONHandler(os.Stdout, opts)
	default:
		local = tint.NewHandler(os.Stdout, &tint.Options{Level: cfg.LogLevel})
	}

	if cfg.SentryDSN == "" {
		return slog.New(local)
	}

	sentryHandler := sentryslog.Option{
		EventLevel: []slog.Level{slog.LevelError},
		LogLevel:   []slog.Level{slog.LevelWarn, slog.LevelInfo},
	}.NewSentryHandler(context.Background())

	return slog.New(logging.MultiHandler(local, sentryHandler))
}

func closePool(pool *pgxpool.Pool) {
	if pool != nil {
		pool.Close()
	}
}

func closeSessions(logger *slog.Logger, sessions shopsession.Store) {
	if sessions == nil {
		return
	}
	if err := sessions.Close(); err != nil && logger != nil {
		logger.Warn("failed to close session store", "error", err)
	}
}

func closeCacheProvider(logger *slog.Logger, provider cache.Provider) {
	if provider == nil {
		return
	}
	if err := provider.Close(); err != nil && logger != nil {
		logger.Warn("failed to close cache provider", "error", err)
	}
}
