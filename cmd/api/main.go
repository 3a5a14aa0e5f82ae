package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/pubsub"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"

	"github.com/aurumcraft/api/internal/domain"
	"github.com/aurumcraft/api/internal/handlers"
	"github.com/aurumcraft/api/internal/marketdata"
	"github.com/aurumcraft/api/internal/platform/auth"
	"github.com/aurumcraft/api/internal/platform/config"
	pfirestore "github.com/aurumcraft/api/internal/platform/firestore"
	"github.com/aurumcraft/api/internal/platform/jobs"
	"github.com/aurumcraft/api/internal/platform/observability"
	"github.com/aurumcraft/api/internal/platform/secrets"
	"github.com/aurumcraft/api/internal/repositories"
	firestoreRepo "github.com/aurumcraft/api/internal/repositories/firestore"
	"github.com/aurumcraft/api/internal/services"
)

func main() {
	ctx := context.Background()

	baseLogger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()

	logger := baseLogger.Named("pricing")
	ctx = observability.WithLogger(ctx, logger)

	envValues, err := config.EnvironmentValues()
	if err != nil {
		logger.Fatal("failed to read environment values", zap.Error(err))
	}

	fetcher, err := newSecretFetcher(ctx, logger, envValues)
	if err != nil {
		logger.Fatal("failed to initialise secret fetcher", zap.Error(err))
	}
	defer func() {
		if err := fetcher.Close(); err != nil {
			logger.Warn("secret fetcher close error", zap.Error(err))
		}
	}()

	cfg, err := config.Load(ctx,
		config.WithSecretResolver(config.SecretResolverFunc(fetcher.Resolve)),
	)
	if err != nil {
		var missing *config.MissingSecretsError
		if errors.As(err, &missing) {
			logger.Fatal("missing required secrets", zap.Strings("secrets", missing.RedactedNames()))
		}
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	firestoreProvider := pfirestore.NewProvider(cfg.Firestore)
	firestoreClient, err := firestoreProvider.Client(ctx)
	if err != nil {
		logger.Fatal("failed to initialise firestore client", zap.Error(err))
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := firestoreProvider.Close(closeCtx); err != nil {
			logger.Warn("firestore close error", zap.Error(err))
		}
	}()

	catalogRepo := firestoreRepo.NewCatalogRepository(firestoreProvider)
	snapshotRepo := firestoreRepo.NewMarketSnapshotRepository(firestoreProvider)

	var refreshPublisher jobs.RefreshPublisher = jobs.RefreshPublisherFunc(nil)
	var pubsubPublisher *jobs.PubSubRefreshPublisher
	if cfg.PubSub.Enabled {
		pubsubClient, err := pubsub.NewClient(ctx, cfg.PubSub.ProjectID)
		if err != nil {
			logger.Fatal("failed to initialise pubsub client", zap.Error(err))
		}
		defer func() {
			if err := pubsubClient.Close(); err != nil {
				logger.Warn("pubsub close error", zap.Error(err))
			}
		}()

		pubsubPublisher, err = jobs.NewPubSubRefreshPublisher(pubsubClient, cfg.PubSub.RefreshTopic,
			jobs.WithPublisherLogger(logger.Named("jobs")),
		)
		if err != nil {
			logger.Fatal("failed to initialise refresh publisher", zap.Error(err))
		}
		defer pubsubPublisher.Stop()
		refreshPublisher = pubsubPublisher
	}

	metrics, err := observability.NewMetrics()
	if err != nil {
		logger.Warn("metrics unavailable, continuing without instrumentation", zap.Error(err))
	}

	marketLogger := logger.Named("marketdata")
	goldProvider := marketdata.NewGoldPriceProvider(marketdata.GoldProviderConfig{
		URLs:          cfg.MarketData.GoldPriceURLs,
		APIKey:        cfg.MarketData.GoldPriceAPIKey,
		SanityMin:     cfg.MarketData.GoldSanityMin,
		SanityMax:     cfg.MarketData.GoldSanityMax,
		BaselinePrice: cfg.MarketData.GoldBaselinePrice,
		Location:      cfg.MarketData.GoldLocation,
		FetchTimeout:  cfg.MarketData.FetchTimeout,
		CacheTTL:      cfg.MarketData.CacheTTL,
	},
		marketdata.WithGoldLogger(marketLogger.Named("gold")),
		marketdata.WithGoldCacheOptions(
			marketdata.WithCacheLogger[float64](marketLogger.Named("gold")),
			marketdata.WithMetrics[float64](metrics),
			marketdata.WithStoreHook[float64](snapshotStoreHook("gold_price", snapshotRepo, refreshPublisher, marketLogger.Named("gold"))),
		),
	)

	rateProvider := marketdata.NewExchangeRateProvider(marketdata.ExchangeProviderConfig{
		URLs:         cfg.MarketData.ExchangeRateURLs,
		DefaultRate:  cfg.MarketData.DefaultExchangeRate,
		FetchTimeout: cfg.MarketData.FetchTimeout,
		CacheTTL:     cfg.MarketData.CacheTTL,
	},
		marketdata.WithExchangeLogger(marketLogger.Named("rates")),
		marketdata.WithExchangeCacheOptions(
			marketdata.WithCacheLogger[float64](marketLogger.Named("rates")),
			marketdata.WithMetrics[float64](metrics),
			marketdata.WithStoreHook[float64](snapshotStoreHook("exchange_rate", snapshotRepo, refreshPublisher, marketLogger.Named("rates"))),
		),
	)

	seedFromSnapshot(ctx, snapshotRepo, "gold_price", marketLogger, goldProvider.Seed)
	seedFromSnapshot(ctx, snapshotRepo, "exchange_rate", marketLogger, rateProvider.Seed)

	schedulerCtx, schedulerCancel := context.WithCancel(context.Background())
	defer schedulerCancel()
	scheduler := marketdata.NewScheduler(cfg.MarketData.RefreshInterval, marketLogger.Named("scheduler"),
		marketdata.RefreshTask{Name: "gold_price", Run: func(ctx context.Context) error {
			_, err := goldProvider.Refresh(ctx)
			return err
		}},
		marketdata.RefreshTask{Name: "exchange_rate", Run: func(ctx context.Context) error {
			_, err := rateProvider.Refresh(ctx)
			return err
		}},
	)
	scheduler.Start(schedulerCtx)

	catalogService, err := services.NewCatalogService(services.CatalogServiceDeps{
		Catalog: catalogRepo,
		Clock:   time.Now,
		Logger:  eventLogger(logger.Named("catalog")),
	})
	if err != nil {
		logger.Fatal("failed to initialise catalog service", zap.Error(err))
	}

	pricingService, err := services.NewPricingService(services.PricingServiceDeps{
		Catalog: catalogService,
		Gold:    goldProvider,
		Rates:   rateProvider,
		Clock:   time.Now,
		Logger:  eventLogger(logger.Named("pricing")),
		Metrics: metrics,
	})
	if err != nil {
		logger.Fatal("failed to initialise pricing service", zap.Error(err))
	}

	marketDataService, err := services.NewMarketDataService(services.MarketDataServiceDeps{
		Gold:   goldProvider,
		Rates:  rateProvider,
		Logger: eventLogger(logger.Named("marketdata")),
	})
	if err != nil {
		logger.Fatal("failed to initialise market data service", zap.Error(err))
	}

	pricingHandlers := handlers.NewPricingHandlers(pricingService, catalogService)
	internalHandlers := handlers.NewInternalHandlers(marketDataService)

	healthHandlers := handlers.NewHealthHandlers(
		handlers.ReadinessCheck{Name: "firestore", Probe: firestoreProbe(firestoreClient)},
		handlers.ReadinessCheck{Name: "gold_price", Probe: cacheProbe(goldProvider.Peek)},
		handlers.ReadinessCheck{Name: "exchange_rate", Probe: cacheProbe(rateProvider.Peek)},
	)

	projectID := strings.TrimSpace(cfg.Firestore.ProjectID)
	middlewares := []func(http.Handler) http.Handler{
		observability.InjectLoggerMiddleware(logger.Named("http")),
		observability.TraceMiddleware(projectID),
		observability.RecoveryMiddleware(logger.Named("http")),
		observability.RequestLoggerMiddleware(projectID),
	}

	opts := []handlers.Option{
		handlers.WithMiddlewares(middlewares...),
		handlers.WithHealthHandlers(healthHandlers),
		handlers.WithPricingRoutes(pricingHandlers.Routes),
		handlers.WithInternalRoutes(internalHandlers.Routes),
	}
	if oidcMiddleware := buildOIDCMiddleware(logger.Named("auth"), cfg); oidcMiddleware != nil {
		opts = append(opts, handlers.WithInternalMiddlewares(oidcMiddleware))
	}

	router := handlers.NewRouter(opts...)
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	serverLogger := logger.Named("http").With(zap.String("addr", server.Addr))
	go func() {
		serverLogger.Info("aurumcraft pricing api listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverLogger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-shutdown
	logger.Info("shutdown signal received; draining requests")

	schedulerCancel()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

// eventLogger adapts a zap logger to the services event-logging callback.
func eventLogger(logger *zap.Logger) func(ctx context.Context, event string, fields map[string]any) {
	return func(_ context.Context, event string, fields map[string]any) {
		zFields := make([]zap.Field, 0, len(fields)+1)
		zFields = append(zFields, zap.String("event", event))
		for k, v := range fields {
			zFields = append(zFields, zap.Any(k, v))
		}
		logger.Debug("service event", zFields...)
	}
}

// snapshotStoreHook persists every successfully stored market value and emits
// a refresh event. Runs detached from the triggering request so persistence
// survives the caller's deadline.
func snapshotStoreHook(key string, snapshots repositories.MarketSnapshotRepository, publisher jobs.RefreshPublisher, logger *zap.Logger) func(ctx context.Context, entry marketdata.Entry[float64]) {
	return func(ctx context.Context, entry marketdata.Entry[float64]) {
		hookCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()

		if err := snapshots.Put(hookCtx, domain.MarketSnapshot{
			Key:       key,
			Value:     entry.Value,
			Source:    entry.Source,
			FetchedAt: entry.FetchedAt,
		}); err != nil {
			logger.Warn("market snapshot persist failed", zap.String("key", key), zap.Error(err))
		}

		if err := publisher.PublishPriceRefresh(hookCtx, jobs.PriceRefreshMessage{
			Provider:  key,
			Value:     entry.Value,
			Source:    entry.Source,
			FetchedAt: entry.FetchedAt,
		}); err != nil {
			logger.Warn("refresh event publish failed", zap.String("key", key), zap.Error(err))
		}
	}
}

// seedFromSnapshot restores a persisted market value so a restart does not
// hit the upstream before serving its first request.
func seedFromSnapshot(ctx context.Context, snapshots repositories.MarketSnapshotRepository, key string, logger *zap.Logger, seed func(marketdata.Entry[float64])) {
	snapshot, err := snapshots.Get(ctx, key)
	if err != nil {
		if !repositories.IsNotFound(err) {
			logger.Warn("market snapshot restore failed", zap.String("key", key), zap.Error(err))
		}
		return
	}
	seed(marketdata.Entry[float64]{
		Value:     snapshot.Value,
		Source:    snapshot.Source,
		FetchedAt: snapshot.FetchedAt,
	})
	logger.Info("market snapshot restored",
		zap.String("key", key),
		zap.Float64("value", snapshot.Value),
		zap.String("source", snapshot.Source),
		zap.Time("fetched_at", snapshot.FetchedAt),
	)
}

func firestoreProbe(client *firestore.Client) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		iter := client.Collections(ctx)
		_, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			return nil
		}
		return err
	}
}

func cacheProbe(peek func() (marketdata.Entry[float64], bool)) func(ctx context.Context) error {
	return func(context.Context) error {
		if _, ok := peek(); !ok {
			return errors.New("no market value cached yet")
		}
		return nil
	}
}

func buildOIDCMiddleware(logger *zap.Logger, cfg config.Config) func(http.Handler) http.Handler {
	if strings.TrimSpace(cfg.Security.OIDC.JWKSURL) == "" {
		return nil
	}

	audience := strings.TrimSpace(cfg.Security.OIDC.Audience)
	if audience == "" {
		logger.Warn("auth: OIDC audience not configured; internal routes will reject requests")
	}
	issuers := cfg.Security.OIDC.Issuers
	if len(issuers) == 0 {
		logger.Warn("auth: OIDC issuers not configured; internal routes will reject requests")
	}

	keys := auth.NewJWKSCache(cfg.Security.OIDC.JWKSURL)
	verifier := auth.NewVerifier(keys, audience, issuers)
	return auth.RequireServiceToken(verifier)
}

func newSecretFetcher(ctx context.Context, logger *zap.Logger, env map[string]string) (*secrets.Fetcher, error) {
	lookup := func(key string) string {
		if env == nil {
			return ""
		}
		return strings.TrimSpace(env[key])
	}

	defaultProject := lookup("PRICING_SECRET_DEFAULT_PROJECT_ID")
	if defaultProject == "" {
		defaultProject = lookup("PRICING_FIRESTORE_PROJECT_ID")
	}
	fallbackPath := lookup("PRICING_SECRET_FALLBACK_FILE")

	opts := []secrets.Option{
		secrets.WithLogger(logger.Named("secrets")),
	}
	if defaultProject != "" {
		opts = append(opts, secrets.WithDefaultProject(defaultProject))
	}
	if fallbackPath != "" {
		opts = append(opts, secrets.WithFallbackFile(fallbackPath))
	}

	return secrets.NewFetcher(ctx, opts...)
}
