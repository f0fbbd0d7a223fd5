package monitor_config

import (
	"time"

	"github.com/NordCoder/Uptimer/internal/config/common"
	pg "github.com/NordCoder/Uptimer/internal/repository/postgres"
)

type Server struct {
	HTTPAddr        string        `mapstructure:"http_addr"`
	MetricsAddr     string        `mapstructure:"metrics_addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	GracefulTimeout time.Duration `mapstructure:"graceful_timeout"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
}

type Cron struct {
	Secret            string `mapstructure:"secret"`
	CurrentSigningKey string `mapstructure:"current_signing_key"`
	NextSigningKey    string `mapstructure:"next_signing_key"`
	TriggerPath       string `mapstructure:"trigger_path"`
	FailurePath       string `mapstructure:"failure_path"`
}

type Pass struct {
	Concurrency int           `mapstructure:"concurrency"`
	MaxDuration time.Duration `mapstructure:"max_duration"`
	LeaseTTL    time.Duration `mapstructure:"lease_ttl"`
}

type Probe struct {
	UserAgent    string `mapstructure:"user_agent"`
	DNSResolver  string `mapstructure:"dns_resolver"`
	MaxBodyBytes int64  `mapstructure:"max_body_bytes"`
}

const (
	NotifyInline = "inline"
	NotifyAsync  = "async"
)

type Notify struct {
	Mode        string        `mapstructure:"mode"`
	Timeout     time.Duration `mapstructure:"timeout"`
	TelegramAPI string        `mapstructure:"telegram_api"`
	PushoverAPI string        `mapstructure:"pushover_api"`
}

type Outbox struct {
	Workers       int           `mapstructure:"workers"`
	BatchSize     int           `mapstructure:"batch_size"`
	WaitTime      time.Duration `mapstructure:"wait_time"`
	InProgressTTL time.Duration `mapstructure:"in_progress_ttl"`
	Retention     time.Duration `mapstructure:"retention"`
}

const (
	BackendQStash = "qstash"
	BackendRedis  = "redis"
)

type Schedule struct {
	Backend     string `mapstructure:"backend"`
	QStashURL   string `mapstructure:"qstash_url"`
	QStashToken string `mapstructure:"qstash_token"`
	SiteURL     string `mapstructure:"site_url"`
}

type Admin struct {
	KeyHash string `mapstructure:"key_hash"`
}

type RateLimit struct {
	PerMinute int `mapstructure:"per_minute"`
	Burst     int `mapstructure:"burst"`
}

type Config struct {
	App       common.App   `mapstructure:"app"`
	Log       common.Log   `mapstructure:"log"`
	OTEL      common.OTEL  `mapstructure:"otel"`
	DB        pg.Config    `mapstructure:"db"`
	Redis     common.Redis `mapstructure:"redis"`
	Kafka     common.Kafka `mapstructure:"kafka"`
	Server    Server       `mapstructure:"server"`
	Cron      Cron         `mapstructure:"cron"`
	Pass      Pass         `mapstructure:"pass"`
	Probe     Probe        `mapstructure:"probe"`
	Notify    Notify       `mapstructure:"notify"`
	Outbox    Outbox       `mapstructure:"outbox"`
	Schedule  Schedule     `mapstructure:"schedule"`
	Admin     Admin        `mapstructure:"admin"`
	RateLimit RateLimit    `mapstructure:"rate_limit"`
}

type ErrConfig string

func (e ErrConfig) Error() string { return string(e) }
