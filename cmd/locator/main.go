package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpadapter "github.com/couchcryptid/store-locator/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/store-locator/internal/adapter/kafka"
	"github.com/couchcryptid/store-locator/internal/adapter/mapbox"
	"github.com/couchcryptid/store-locator/internal/adapter/webflow"
	"github.com/couchcryptid/store-locator/internal/cache"
	"github.com/couchcryptid/store-locator/internal/config"
	"github.com/couchcryptid/store-locator/internal/gate"
	"github.com/couchcryptid/store-locator/internal/geocode"
	"github.com/couchcryptid/store-locator/internal/locations"
	"github.com/couchcryptid/store-locator/internal/observability"
	"github.com/couchcryptid/store-locator/internal/site"
	"github.com/couchcryptid/store-locator/internal/tiles"
	"github.com/couchcryptid/store-locator/internal/token"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Cache store: Redis when configured, otherwise in-process.
	var store cache.Store
	var closeStore func() error
	if cfg.RedisURL != "" {
		rs, err := cache.NewRedisStore(ctx, cfg.RedisURL)
		if err != nil {
			logger.Error("failed to connect to redis", "error", err)
			os.Exit(1)
		}
		store, closeStore = rs, rs.Close
		logger.Info("redis cache enabled")
	} else {
		store = cache.NewMemoryStore(10 * time.Minute)
		logger.Info("using in-memory cache")
	}

	sites, err := site.LoadFile(cfg.SitesFile)
	if err != nil {
		logger.Error("failed to load sites", "error", err, "path", cfg.SitesFile)
		os.Exit(1)
	}
	logger.Info("sites loaded", "count", sites.Len(), "path", cfg.SitesFile)

	codec, err := token.NewCodec(cfg.TokenSecret, nil)
	if err != nil {
		logger.Error("failed to create token codec", "error", err)
		os.Exit(1)
	}
	issuer := token.NewIssuer(codec, cfg.TokenTTL)

	mapboxClient := mapbox.NewClient(cfg.MapboxTimeout, metrics, logger)
	tileFetcher := mapbox.NewCachedTiles(mapboxClient, cfg.MapboxTileCacheSize, cfg.MapboxTileCacheBytes, metrics)

	var resolverOpts []geocode.Option
	var events *kafkaadapter.GeocodeWriter
	if cfg.GeocodeEventsEnabled() {
		events = kafkaadapter.NewGeocodeWriter(cfg, logger)
		resolverOpts = append(resolverOpts, geocode.WithPublisher(events))
		logger.Info("geocode events enabled", "topic", cfg.KafkaGeocodeTopic)
	}
	resolver := geocode.NewResolver(mapboxClient, store, geocode.Config{
		CacheTTL:    cfg.GeocodeCacheTTL,
		Concurrency: cfg.GeocodeConcurrency,
	}, metrics, logger, resolverOpts...)

	cms := webflow.NewClient(cfg.WebflowBaseURL, cfg.WebflowTimeout, metrics, logger)
	locationService := locations.NewService(sites, cms, resolver, store, cfg.LocationsCacheTTL, metrics, logger)
	tileProxy := tiles.NewProxy(tileFetcher, metrics, logger)

	srv := httpadapter.NewServer(cfg.HTTPAddr,
		httpadapter.Options{
			BasePath:       cfg.APIBasePath,
			AllowedOrigins: cfg.AllowedOrigins,
			OperatorAPIKey: cfg.OperatorAPIKey,
		},
		httpadapter.NewAPI(locationService, resolver, tileProxy, logger),
		httpadapter.NewTokenHandler(issuer, sites, metrics, logger),
		gate.New(cfg.APIBasePath, codec, metrics, logger),
		store,
		logger,
	)

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if events != nil {
		if err := events.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}
	if closeStore != nil {
		if err := closeStore(); err != nil {
			logger.Error("redis close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
