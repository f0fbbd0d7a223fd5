package main

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/NordCoder/Uptimer/internal/auth"
	config "github.com/NordCoder/Uptimer/internal/config/monitor"
	"github.com/NordCoder/Uptimer/internal/obs"
	"github.com/NordCoder/Uptimer/internal/obs/retry"
	"github.com/NordCoder/Uptimer/internal/outbox"
	"github.com/NordCoder/Uptimer/internal/repository/kafka"
	pg "github.com/NordCoder/Uptimer/internal/repository/postgres"
	"github.com/NordCoder/Uptimer/internal/services/monitor"
	"github.com/NordCoder/Uptimer/internal/services/monitor/httpapi"
	"github.com/NordCoder/Uptimer/internal/services/monitor/incidents"
	"github.com/NordCoder/Uptimer/internal/services/monitor/notify"
	"github.com/NordCoder/Uptimer/internal/services/monitor/probe"
	"github.com/NordCoder/Uptimer/internal/services/monitor/schedule"
)

type app struct {
	api      *httpapi.Server
	outbox   *outbox.Runner
	producer *kafka.Producer
}

func wiring(ctx context.Context, cfg *config.Config, db *pg.DB, sh *shared, l *zap.Logger) *app {
	targets := pg.NewTargetRepo(db)
	heartbeats := pg.NewHeartbeatRepo(db)
	channels := pg.NewChannelRepo(db)

	client := &http.Client{Transport: obs.HTTPTransport(http.DefaultTransport)}
	dispatcher := notify.NewDispatcher(channels,
		notify.NewSenders(client, notify.SenderConfig{TelegramAPI: cfg.Notify.TelegramAPI, PushoverAPI: cfg.Notify.PushoverAPI}),
		cfg.Notify.Timeout, l.With(zap.String("component", "notify")))
	incidentMgr := incidents.NewManager(pg.NewIncidentRepo(db), pg.ErrConflict, l.With(zap.String("component", "incidents")))

	h := &monitor.Handler{
		Heartbeats:  heartbeats,
		Maintenance: pg.NewMaintenanceRepo(db),
		Probes: probe.NewSet(probe.Config{
			UserAgent:    cfg.Probe.UserAgent,
			DNSResolver:  cfg.Probe.DNSResolver,
			MaxBodyBytes: cfg.Probe.MaxBodyBytes,
		}),
		Incidents:  incidentMgr,
		Notifier:   dispatcher,
		Transactor: pg.NewTransactor(db, l),
		Locker:     sh.locker,
		LeaseTTL:   cfg.Pass.LeaseTTL,
		Log:        l.With(zap.String("component", "handler")),
	}

	a := &app{}
	if cfg.Notify.Mode == config.NotifyAsync {
		repo := pg.NewOutboxRepo(db)
		h.Outbox = repo
		a.producer = kafka.BootstrapProducer(ctx, cfg.Kafka.Brokers, cfg.Kafka.Topic, l)
		a.outbox = outbox.NewOutboxRunner(l, repo,
			outbox.MakeGlobalOutboxHandler(kafka.NewTransitionEventsKafka(a.producer), retry.OutboxPublishPolicy(l)),
			outbox.Options{
				Workers:       cfg.Outbox.Workers,
				BatchSize:     cfg.Outbox.BatchSize,
				WaitTime:      cfg.Outbox.WaitTime,
				InProgressTTL: cfg.Outbox.InProgressTTL,
				Retention:     cfg.Outbox.Retention,
			})
	}

	uc := &monitor.Usecase{
		Targets:    targets,
		Heartbeats: heartbeats,
		Checker:    h,
		Cfg:        monitor.PassConfig{Concurrency: cfg.Pass.Concurrency, MaxDuration: cfg.Pass.MaxDuration},
		Log:        l.With(zap.String("component", "dispatch")),
	}

	var admin *auth.APIKeyChecker
	if cfg.Admin.KeyHash != "" {
		admin = auth.NewAPIKeyChecker(cfg.Admin.KeyHash)
	} else {
		l.Warn("admin.key_hash is empty: management endpoints reject every request")
	}

	a.api = &httpapi.Server{
		Log: l.With(zap.String("component", "http")),
		Cfg: httpapi.Config{
			CronSecret:  cfg.Cron.Secret,
			SiteURL:     cfg.Schedule.SiteURL,
			TriggerPath: cfg.Cron.TriggerPath,
			FailurePath: cfg.Cron.FailurePath,
			CORSOrigins: cfg.Server.CORSOrigins,
		},
		Passes:    uc,
		Failures:  incidentMgr,
		Schedules: schedule.NewManager(sh.schedules, cfg.Schedule.SiteURL, cfg.Cron.TriggerPath, cfg.Cron.FailurePath, l.With(zap.String("component", "schedule"))),
		Channels:  dispatcher,
		Signature: auth.NewVerifier(cfg.Cron.CurrentSigningKey, cfg.Cron.NextSigningKey),
		Admin:     admin,
		Limiter:   sh.limiter,
	}
	return a
}
