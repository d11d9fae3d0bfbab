package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/soss111/maker-set-sub000/pkg/health"
	"github.com/soss111/maker-set-sub000/pkg/httpclient"
	pkgkafka "github.com/soss111/maker-set-sub000/pkg/kafka"
	"github.com/soss111/maker-set-sub000/pkg/tracing"

	"github.com/soss111/maker-set-sub000/internal/client"
	"github.com/soss111/maker-set-sub000/internal/config"
	"github.com/soss111/maker-set-sub000/internal/event"
	handler "github.com/soss111/maker-set-sub000/internal/handler/http"
	redisrepo "github.com/soss111/maker-set-sub000/internal/repository/redis"
	"github.com/soss111/maker-set-sub000/internal/service"
)

// App wires together all dependencies and runs the cart service.
type App struct {
	cfg             *config.Config
	logger          *slog.Logger
	rdb             *redis.Client
	producer        *pkgkafka.Producer
	httpServer      *http.Server
	tracingShutdown func(context.Context) error
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Initialize tracing.
	tracingShutdown, err := tracing.InitTracer(ctx, tracing.Config{
		ServiceName:    "cart-service",
		ServiceVersion: "0.1.0",
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.TracingEndpoint,
		SampleRate:     cfg.TracingSampleRate,
		Enabled:        cfg.TracingEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}

	// Initialize Redis client.
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPass,
		DB:       cfg.RedisDB,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	logger.Info("connected to Redis",
		slog.String("addr", cfg.RedisAddr),
		slog.Int("db", cfg.RedisDB),
	)

	// Initialize Kafka producer.
	kafkaCfg := pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers)
	producer := pkgkafka.NewProducer(kafkaCfg, logger)
	logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))

	// Downstream service clients, each behind its own circuit breaker.
	httpCfg := httpclient.DefaultConfig()
	catalogClient := client.NewCatalogClient(cfg.CatalogURL,
		httpclient.NewCircuitBreakerClient(httpclient.New(httpCfg), httpclient.DefaultCircuitBreakerConfig("catalog"), logger))
	inventoryClient := client.NewInventoryClient(cfg.InventoryURL,
		httpclient.NewCircuitBreakerClient(httpclient.New(httpCfg), httpclient.DefaultCircuitBreakerConfig("inventory"), logger))
	settingsClient := client.NewSettingsClient(cfg.SettingsURL,
		httpclient.NewCircuitBreakerClient(httpclient.New(httpCfg), httpclient.DefaultCircuitBreakerConfig("settings"), logger))

	shippingCost := resolveShippingCost(ctx, cfg, settingsClient, logger)

	// Build the dependency graph.
	repo := redisrepo.NewCartRepository(rdb, cfg.CartTTL())
	eventProducer := event.NewProducer(producer, logger)
	cartService := service.NewCartService(
		repo, catalogClient, inventoryClient, eventProducer,
		logger, cfg.CartTTL(), shippingCost,
	)

	// Health checks.
	healthHandler := health.NewHandler()
	healthHandler.Register("redis", func(ctx context.Context) error {
		return rdb.Ping(ctx).Err()
	})

	// HTTP router.
	router := handler.NewRouter(cartService, healthHandler, logger, handler.RouterConfig{
		PprofCIDRs:  cfg.PprofAllowedCIDRs,
		CORSOrigins: cfg.CORSOrigins,
	})

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &App{
		cfg:             cfg,
		logger:          logger,
		rdb:             rdb,
		producer:        producer,
		httpServer:      httpServer,
		tracingShutdown: tracingShutdown,
	}, nil
}

// resolveShippingCost asks the settings service for the flat handling fee,
// falling back to the configured default when it cannot be reached. The cost
// is resolved once; carts created during this process's lifetime all share it.
func resolveShippingCost(ctx context.Context, cfg *config.Config, settings *client.SettingsClient, logger *slog.Logger) decimal.Decimal {
	fallback, err := cfg.ShippingCostFallback()
	if err != nil {
		// Config validation already rejected unparseable values.
		fallback = decimal.NewFromInt(15)
	}

	cost, err := settings.GetShippingHandlingCost(ctx)
	if err != nil {
		logger.Warn("could not fetch shipping cost, using default",
			slog.String("default", fallback.String()),
			slog.String("error", err.Error()),
		)
		return fallback
	}

	logger.Info("shipping cost resolved", slog.String("cost", cost.String()))
	return cost
}

// Run starts the HTTP server and blocks until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		return err
	}

	return a.Shutdown()
}

// Shutdown gracefully stops all components.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	// Graceful HTTP server shutdown with a 10-second deadline.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
	}

	// Close Kafka producer.
	if err := a.producer.Close(); err != nil {
		a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
	}

	// Close Redis client.
	if err := a.rdb.Close(); err != nil {
		a.logger.Error("redis close error", slog.String("error", err.Error()))
	}

	// Flush any pending trace spans.
	if err := a.tracingShutdown(shutdownCtx); err != nil {
		a.logger.Error("tracing shutdown error", slog.String("error", err.Error()))
	}

	a.logger.Info("application shutdown complete")
	return nil
}
