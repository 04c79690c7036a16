package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"clipforge/internal/adapter/repo"
	"clipforge/internal/camera"
	httpapi "clipforge/internal/http"
	"clipforge/internal/http/handlers"
	"clipforge/internal/infra"
	"clipforge/internal/infra/credentials"
	"clipforge/internal/infra/geoip"
	"clipforge/internal/pricing"
	"clipforge/internal/storage"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx := context.Background()
	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("api: failed to connect database")
	}
	defer pool.Close()

	runner := infra.NewSQLRunner(pool, logger)

	extractor, err := camera.NewExtractor()
	if err != nil {
		logger.Fatal().Err(err).Msg("api: invalid camera rule table")
	}

	resolver, err := geoip.NewResolver(cfg.GeoIPDBPath)
	if err != nil {
		logger.Warn().Err(err).Msg("api: geoip disabled")
	}

	var fileStore *storage.FileStore
	if cfg.StoragePath != "" {
		fileStore, err = storage.NewFileStore(cfg.StoragePath)
		if err != nil {
			logger.Fatal().Err(err).Msg("api: failed to configure storage")
		}
	}

	app := &handlers.App{
		Prompts:     repo.NewPromptRepository(runner),
		Ledger:      repo.NewLedger(runner),
		Clips:       repo.NewClipStore(runner),
		Meter:       pricing.Meter{Unlimited: cfg.UnlimitedCredits},
		Extractor:   extractor,
		Credentials: credentials.NewStore(runner),
		Store:       fileStore,
		Logger:      logger,
	}

	router := httpapi.NewRouter(app, httpapi.RouterOptions{
		Logger:          logger,
		Region:          resolver,
		AllowedOrigins:  splitOrigins(os.Getenv("ALLOWED_ORIGINS")),
		RateLimitPerMin: cfg.RateLimitPerMin,
	})

	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Msgf("api: listening on :%s", cfg.Port)
		if err := server.Start(); err != nil {
			logger.Fatal().Err(err).Msg("api: http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("api: failed to shutdown server")
	}
	logger.Info().Msg("api: stopped")
}

func splitOrigins(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if origin := strings.TrimSpace(part); origin != "" {
			out = append(out, origin)
		}
	}
	return out
}
