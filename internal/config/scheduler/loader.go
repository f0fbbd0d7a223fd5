package scheduler_config

import (
	"github.com/NordCoder/Uptimer/internal/config/common"
)

func Load(path string) (*Config, error) {
	v := common.NewViper(path)
	common.SetDefaults(v, "scheduler")

	v.SetDefault("sched.sync_every", "15s")
	v.SetDefault("sched.request_timeout", "60s")
	v.SetDefault("sched.metrics_addr", ":8082")
	v.SetDefault("sched.signing_key", "")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if cfg.Sched.SigningKey == "" {
		return nil, ErrConfig("sched.signing_key is required")
	}
	if cfg.Redis.URL == "" {
		return nil, ErrConfig("redis.url is required")
	}
	return &cfg, nil
}
