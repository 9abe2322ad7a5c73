package main

import (
	"context"
	"errors"
	"log"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/park285/chaturanga-session/internal/adapter/presenter"
	appcfg "github.com/park285/chaturanga-session/internal/config"
	"github.com/park285/chaturanga-session/internal/httpapi"
	"github.com/park285/chaturanga-session/internal/obslog"
	"github.com/park285/chaturanga-session/internal/session"
	"github.com/park285/chaturanga-session/internal/sessionbuilder"
	"github.com/park285/chaturanga-session/internal/telemetry"
)

func main() {
	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	logger, err := obslog.Init(cfg.Log)
	if err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, "chaturanga-session", cfg.OTelEndpoint)
	if err != nil {
		logger.Fatal("telemetry_init_failed", zap.Error(err))
	}

	deps, err := sessionbuilder.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("session_init_failed", zap.Error(err))
	}

	opts := []httpapi.Option{
		httpapi.WithLogger(logger.Named("http")),
		httpapi.WithFormatter(presenter.NewFormatter(deps.Catalog, deps.Session.Dialect())),
	}
	if deps.Archive != nil {
		opts = append(opts, httpapi.WithArchive(deps.Archive))
	}
	srv := httpapi.New(deps.Scheduler, opts...)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe(cfg.ListenAddr) }()

	logger.Info("server_started",
		zap.String("session_id", deps.Session.ID()),
		zap.String("play_mode", cfg.PlayMode),
		zap.Bool("external_engine", cfg.EnginePath != ""),
		zap.Bool("kifu_sharing", deps.Archive != nil),
	)
	// an automated first side moves right away; self-play waits for /selfplay/start
	if deps.Session.PlayMode() != session.AutoBoth {
		deps.Scheduler.Trigger()
	}

	select {
	case <-ctx.Done():
		logger.Info("server_stopping")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("server_failed", zap.Error(err))
		}
	}

	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		logger.Warn("http_shutdown_failed", zap.Error(err))
	}
	if err := deps.Close(); err != nil {
		logger.Warn("deps_close_failed", zap.Error(err))
	}
	if err := shutdownTracing(sctx); err != nil {
		logger.Warn("telemetry_shutdown_failed", zap.Error(err))
	}
}
