package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	config "github.com/NordCoder/Uptimer/internal/config/scheduler"
	"github.com/NordCoder/Uptimer/internal/obs"
	"github.com/NordCoder/Uptimer/internal/repository/redis"
	"github.com/NordCoder/Uptimer/internal/services/scheduler"
)

func main() {
	cfgPath := flag.String("config", "../config/scheduler.yaml", "path to the yaml config")
	flag.Parse()

	// init
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatal(err)
	}

	// logger
	l, err := obs.NewLogger(cfg.Log.AsLoggerConfig(cfg.App))
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = l.Sync() }()
	l.Info("starting scheduler",
		zap.Duration("sync_every", cfg.Sched.SyncEvery),
		zap.String("metrics_addr", cfg.Sched.MetricsAddr),
	)

	// otel
	otelCloser, err := obs.SetupOTel(ctx, cfg.OTEL.AsOTELConfig(cfg.App))
	if err != nil {
		l.Fatal("otel init", zap.Error(err))
	}
	defer func() { _ = otelCloser.Shutdown(context.Background()) }()

	// redis
	rdb, err := redis.NewClient(ctx, cfg.Redis.URL)
	if err != nil {
		l.Fatal("redis connect", zap.Error(err))
	}
	defer func() { _ = rdb.Close() }()

	// run metrics server
	ms := obs.BootstrapMetricsServer(cfg.Sched.MetricsAddr, func(ctx context.Context) error {
		hctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
		defer cancel()
		return rdb.Ping(hctx).Err()
	}, l)

	// wiring
	delivery := &scheduler.Delivery{
		Client:     &http.Client{Timeout: cfg.Sched.RequestTimeout, Transport: obs.HTTPTransport(http.DefaultTransport)},
		SigningKey: []byte(cfg.Sched.SigningKey),
		Log:        l.With(zap.String("component", "delivery")),
	}
	runner := scheduler.NewRunner(l, redis.NewScheduleStore(rdb, cfg.Redis.KeyPrefix), delivery, cfg.Sched.SyncEvery)

	// run
	errCh := make(chan error, 1)
	go func() { errCh <- runner.Run(ctx) }()

	l.Info("scheduler started")

	// loop
	running := true
	select {
	case <-ctx.Done():
	case err = <-errCh:
		running = false
		if err != nil && !errors.Is(err, context.Canceled) {
			l.Error("runner error", zap.Error(err))
		}
	}
	stop()
	if running {
		select {
		case <-errCh:
		case <-time.After(5 * time.Second):
			l.Warn("runner did not stop in time")
		}
	}

	// graceful shutdown
	shCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	_ = ms.Shutdown(shCtx)
	l.Info("bye")
}
