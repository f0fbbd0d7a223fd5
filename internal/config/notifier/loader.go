package notifier_config

import (
	"github.com/NordCoder/Uptimer/internal/config/common"
)

func Load(path string) (*Config, error) {
	v := common.NewViper(path)
	common.SetDefaults(v, "notifier")

	v.SetDefault("from_beginning", false)
	v.SetDefault("server.metrics_addr", ":8084")

	v.SetDefault("notify.timeout", "10s")
	v.SetDefault("notify.telegram_api", "https://api.telegram.org")
	v.SetDefault("notify.pushover_api", "https://api.pushover.net/1/messages.json")
	v.SetDefault("notify.dedup_ttl", "24h")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
