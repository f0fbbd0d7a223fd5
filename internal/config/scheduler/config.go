package scheduler_config

import (
	"time"

	"github.com/NordCoder/Uptimer/internal/config/common"
)

type SchedCfg struct {
	SyncEvery      time.Duration `mapstructure:"sync_every"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	MetricsAddr    string        `mapstructure:"metrics_addr"`
	SigningKey     string        `mapstructure:"signing_key"`
}

type Config struct {
	App   common.App   `mapstructure:"app"`
	Log   common.Log   `mapstructure:"log"`
	OTEL  common.OTEL  `mapstructure:"otel"`
	Redis common.Redis `mapstructure:"redis"`
	Sched SchedCfg     `mapstructure:"sched"`
}

type ErrConfig string

func (e ErrConfig) Error() string { return string(e) }
