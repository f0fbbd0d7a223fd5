package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/NordCoder/Uptimer/internal/auth"
	config "github.com/NordCoder/Uptimer/internal/config/monitor"
	"github.com/NordCoder/Uptimer/internal/obs"
)

func main() {
	cfgPath := flag.String("config", "../config/monitor.yaml", "path to the yaml config")
	hashKey := flag.String("hash-admin-key", "", "print the bcrypt hash for an admin key and exit")
	flag.Parse()

	if *hashKey != "" {
		h, err := auth.HashAPIKey(*hashKey)
		if err != nil {
			panic(err)
		}
		fmt.Println(h)
		return
	}

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		panic(err)
	}

	logger, err := initLogger(cfg)
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()
	logger.Info("starting monitor",
		zap.String("env", cfg.App.Env),
		zap.String("ver", cfg.App.Version),
		zap.String("notify_mode", cfg.Notify.Mode),
		zap.String("schedule_backend", cfg.Schedule.Backend),
	)

	otelShutdown, err := initOTel(rootCtx, cfg)
	if err != nil {
		logger.Fatal("otel init", zap.Error(err))
	}
	defer func() { _ = otelShutdown(context.Background()) }()

	db, err := initDB(rootCtx, cfg)
	if err != nil {
		logger.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()
	logger.Info("db connected")

	sh, err := initShared(rootCtx, cfg, logger)
	if err != nil {
		logger.Fatal("redis connect", zap.Error(err))
	}

	a := wiring(rootCtx, cfg, db, sh, logger)

	ms := obs.BootstrapMetricsServer(cfg.Server.MetricsAddr, obs.AllHealthy(
		func(ctx context.Context) error {
			hctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
			defer cancel()
			return db.Ping(hctx)
		},
		sh.health(),
	), logger)

	outboxErrCh := make(chan error, 1)
	outboxRunning := a.outbox != nil
	if outboxRunning {
		go func() {
			logger.Info("outbox runner starting")
			outboxErrCh <- a.outbox.Run(rootCtx)
		}()
	}

	httpSrv := buildHTTPServer(cfg, a.api.Router())
	httpErrCh := make(chan error, 1)
	go func() { httpErrCh <- serveHTTP(httpSrv, logger) }()

	var runErr error
	select {
	case <-rootCtx.Done():
		logger.Info("shutdown signal")
	case runErr = <-httpErrCh:
		if runErr != nil && !errors.Is(runErr, http.ErrServerClosed) {
			logger.Error("http serve", zap.Error(runErr))
		}
	case runErr = <-outboxErrCh:
		outboxRunning = false
		if runErr != nil && !errors.Is(runErr, context.Canceled) {
			logger.Error("outbox runner", zap.Error(runErr))
		}
	}
	stop()

	shCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulTimeout)
	defer cancel()

	if outboxRunning {
		select {
		case <-outboxErrCh:
		case <-shCtx.Done():
			logger.Warn("outbox runner did not stop in time")
		}
	}

	var shutdownErr error
	shutdownErr = multierr.Append(shutdownErr, httpSrv.Shutdown(shCtx))
	shutdownErr = multierr.Append(shutdownErr, ms.Shutdown(shCtx))
	if a.producer != nil {
		shutdownErr = multierr.Append(shutdownErr, a.producer.Close())
	}
	shutdownErr = multierr.Append(shutdownErr, sh.Close())
	if shutdownErr != nil {
		logger.Warn("shutdown", zap.Error(shutdownErr))
	}
	logger.Info("bye")
}
