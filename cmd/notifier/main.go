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

	config "github.com/NordCoder/Uptimer/internal/config/notifier"
	"github.com/NordCoder/Uptimer/internal/domain/lease"
	"github.com/NordCoder/Uptimer/internal/obs"
	"github.com/NordCoder/Uptimer/internal/repository/kafka"
	"github.com/NordCoder/Uptimer/internal/repository/memory"
	pg "github.com/NordCoder/Uptimer/internal/repository/postgres"
	"github.com/NordCoder/Uptimer/internal/repository/redis"
	"github.com/NordCoder/Uptimer/internal/services/monitor/notify"
	"github.com/NordCoder/Uptimer/internal/services/notifier"
)

func wiring(db *pg.DB, cfg *config.Config, cons *kafka.Consumer, dedup lease.Locker, l *zap.Logger) *notifier.Controller {
	client := &http.Client{Transport: obs.HTTPTransport(http.DefaultTransport)}
	dispatcher := notify.NewDispatcher(
		pg.NewChannelRepo(db),
		notify.NewSenders(client, notify.SenderConfig{TelegramAPI: cfg.Notify.TelegramAPI, PushoverAPI: cfg.Notify.PushoverAPI}),
		cfg.Notify.Timeout,
		l.With(zap.String("component", "notify")),
	)

	uc := &notifier.Handler{
		Notifier: dispatcher,
		Dedup:    dedup,
		DedupTTL: cfg.Notify.DedupTTL,
		Log:      l,
	}
	return &notifier.Controller{Log: l, Sub: cons, UC: uc}
}

func main() {
	cfgPath := flag.String("config", "../config/notifier.yaml", "path to the yaml config")
	flag.Parse()

	// init
	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
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

	l.Info("starting notifier",
		zap.Strings("brokers", cfg.Kafka.Brokers),
		zap.String("topic", cfg.Kafka.Topic),
		zap.String("metrics_addr", cfg.Server.MetricsAddr),
	)

	// otel
	otelCloser, err := obs.SetupOTel(rootCtx, cfg.OTEL.AsOTELConfig(cfg.App))
	if err != nil {
		l.Fatal("otel init", zap.Error(err))
	}
	defer func() { _ = otelCloser.Shutdown(context.Background()) }()

	// db
	db, err := pg.NewDB(rootCtx, cfg.DB)
	if err != nil {
		l.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()
	l.Info("db connected")

	// dedup
	var dedup lease.Locker
	health := []obs.HealthFunc{func(ctx context.Context) error {
		hctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
		defer cancel()
		return db.Ping(hctx)
	}}
	if cfg.Redis.Enable {
		rdb, err := redis.NewClient(rootCtx, cfg.Redis.URL)
		if err != nil {
			l.Fatal("redis connect", zap.Error(err))
		}
		defer func() { _ = rdb.Close() }()
		dedup = redis.NewLocker(rdb, cfg.Redis.KeyPrefix)
		health = append(health, func(ctx context.Context) error { return rdb.Ping(ctx).Err() })
	} else {
		dedup = memory.NewLocker()
		l.Warn("redis disabled: dedup is per process only")
	}

	// metrics
	ms := obs.BootstrapMetricsServer(cfg.Server.MetricsAddr, obs.AllHealthy(health...), l)

	// kafka
	cons := kafka.BootstrapConsumer(rootCtx, &kafka.ConsumerConfig{
		Brokers:       cfg.Kafka.Brokers,
		GroupID:       cfg.Kafka.GroupID,
		Topic:         cfg.Kafka.Topic,
		FromBeginning: cfg.FromBeginning,
		Logger:        l,
	}, l)
	defer func() { _ = cons.Close() }()

	// start
	ctrl := wiring(db, cfg, cons, dedup, l)
	errCh := make(chan error, 1)
	go func() {
		l.Info("controller starting")
		errCh <- ctrl.Run(rootCtx)
	}()

	// main loop
	select {
	case <-rootCtx.Done():
		l.Info("shutdown signal")
	case err = <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			l.Error("controller error", zap.Error(err))
		}
	}

	shCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	_ = ms.Shutdown(shCtx)
	l.Info("bye")
}
