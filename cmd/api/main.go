package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"assetgen/internal/bootstrap"
	"assetgen/internal/http/handlers"
	httpapi "assetgen/internal/http/httpapi"
	"assetgen/internal/infra"
	"assetgen/internal/infra/metrics"
)

// drainTimeout bounds how long shutdown waits for running jobs.
const drainTimeout = 2 * time.Minute

func main() {
	// .env is optional
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx := context.Background()
	shutdownTracing := infra.InitTracing(ctx, logger, cfg.AppEnv)
	metrics.MustRegister()

	svc, err := bootstrap.Build(ctx, cfg, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build pipeline")
	}

	app := handlers.NewApp(svc.Orchestrator, &logger, cfg.LegacyWaitTimeout)
	router := httpapi.NewRouter(app, httpapi.Options{
		Logger:       logger,
		CORSOrigins:  cfg.CORSOrigins,
		GeneratedDir: cfg.GeneratedDir,
		PublicPrefix: cfg.PublicPrefix,
	})
	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Msgf("API listening on %s", server.Addr())
		if err := server.Start(); err != nil {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}

	drainCtx, cancelDrain := context.WithTimeout(context.Background(), drainTimeout)
	defer cancelDrain()
	if err := svc.Orchestrator.Close(drainCtx); err != nil {
		logger.Warn().Err(err).Msg("jobs still running at shutdown")
	}
	svc.Close()
	if err := shutdownTracing(context.Background()); err != nil {
		logger.Warn().Err(err).Msg("tracing shutdown failed")
	}
	logger.Info().Msg("server stopped")
}
