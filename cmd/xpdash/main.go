package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"xpdash/internal/auth"
	"xpdash/internal/backend"
	"xpdash/internal/cache"
	"xpdash/internal/cli"
	"xpdash/internal/graphql"
	apphttp "xpdash/internal/http"
	"xpdash/internal/log"
	"xpdash/internal/services"
)

func main() {
	cfg, logger := cli.Bootstrap(log.ComponentApp)
	ctx := context.Background()

	bc := cli.BackendConfig(logger, cfg)
	factory := backend.NewFactory(logger)

	storeRes := cli.InitStore(ctx, logger, factory, bc)
	defer func() {
		if err := storeRes.Cleanup(); err != nil {
			logger.Error("Failed to close snapshot store", log.FieldError, err)
		}
	}()

	publisher, err := factory.CreatePublisher(ctx, bc)
	if err != nil {
		logger.Error("Failed to initialize sync publisher", log.FieldError, err)
		os.Exit(1)
	}
	var syncPublisher services.SyncPublisher
	if publisher != nil {
		syncPublisher = publisher
		defer publisher.Close()
	}

	upstream := &http.Client{Timeout: cfg.UpstreamTimeout}
	gql := graphql.NewClient(cfg.UpstreamBaseURL, upstream)
	authClient := auth.NewClient(cfg.UpstreamBaseURL, upstream)

	profiles := services.NewProfileService(gql, storeRes.Store, syncPublisher, services.ProfileServiceConfig{
		CacheSize: cfg.ProfileCacheSize,
		CacheTTL:  cfg.ProfileCacheTTL,
		Location:  cfg.Location(),
	}, logger)

	janitor := cache.NewJanitor(logger)
	janitor.Register("profiles", profiles.Cache())
	janitor.Start(cfg.ProfileCacheTTL)

	deps := apphttp.Deps{
		Profiles:        profiles,
		Auth:            authClient,
		Sessions:        auth.NewSessions(0),
		GraphQLEndpoint: gql.Endpoint(),
		Upstream:        upstream,
	}
	if p, ok := storeRes.Store.(apphttp.Pinger); ok {
		deps.Store = p
	}

	srv := apphttp.NewServer(":"+cfg.Port, deps, apphttp.Options{
		CORSOrigin:     cfg.CORSAllowedOrigin,
		CookieSecure:   cfg.SessionCookieSecure,
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
		Logger:         logger,
	})

	shutdownCtx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		janitor.Stop()
	})

	logger.Info("Starting xpdash server",
		"port", cfg.Port,
		"upstream", cfg.UpstreamBaseURL,
		"snapshot_backend", bc.Store.String(),
		"sync_enabled", publisher != nil)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(shutdownCtx, done)
	logger.Info("Server stopped gracefully")
}
