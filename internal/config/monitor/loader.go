package monitor_config

import (
	"github.com/NordCoder/Uptimer/internal/config/common"
)

func Load(path string) (*Config, error) {
	v := common.NewViper(path)
	common.SetDefaults(v, "monitor")

	v.SetDefault("server.http_addr", ":8080")
	v.SetDefault("server.metrics_addr", ":8081")
	v.SetDefault("server.read_timeout", "10s")
	v.SetDefault("server.write_timeout", "65s")
	v.SetDefault("server.idle_timeout", "60s")
	v.SetDefault("server.graceful_timeout", "10s")
	v.SetDefault("server.cors_origins", []string{"*"})

	v.SetDefault("cron.secret", "")
	v.SetDefault("cron.trigger_path", "/api/cron/check-monitors")
	v.SetDefault("cron.failure_path", "/api/cron/failure-callback")

	v.SetDefault("pass.concurrency", 10)
	v.SetDefault("pass.max_duration", "55s")
	v.SetDefault("pass.lease_ttl", "60s")

	v.SetDefault("probe.user_agent", "Uptimer/1.0")
	v.SetDefault("probe.dns_resolver", "8.8.8.8:53")
	v.SetDefault("probe.max_body_bytes", 1<<20)

	v.SetDefault("notify.mode", NotifyInline)
	v.SetDefault("notify.timeout", "10s")
	v.SetDefault("notify.telegram_api", "https://api.telegram.org")
	v.SetDefault("notify.pushover_api", "https://api.pushover.net/1/messages.json")

	v.SetDefault("outbox.workers", 2)
	v.SetDefault("outbox.batch_size", 100)
	v.SetDefault("outbox.wait_time", "2s")
	v.SetDefault("outbox.in_progress_ttl", "30s")
	v.SetDefault("outbox.retention", "24h")

	v.SetDefault("schedule.backend", BackendQStash)
	v.SetDefault("schedule.qstash_url", "https://qstash.upstash.io")

	v.SetDefault("rate_limit.per_minute", 60)
	v.SetDefault("rate_limit.burst", 10)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Notify.Mode {
	case NotifyInline, NotifyAsync:
	default:
		return ErrConfig("notify.mode must be inline or async")
	}
	switch c.Schedule.Backend {
	case BackendQStash:
	case BackendRedis:
		if !c.Redis.Enable {
			return ErrConfig("schedule.backend=redis requires redis.enable")
		}
	default:
		return ErrConfig("schedule.backend must be qstash or redis")
	}
	if c.Pass.Concurrency <= 0 {
		return ErrConfig("pass.concurrency must be positive")
	}
	return nil
}
