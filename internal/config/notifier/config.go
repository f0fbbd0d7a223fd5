package notifier_config

import (
	"time"

	"github.com/NordCoder/Uptimer/internal/config/common"
	pg "github.com/NordCoder/Uptimer/internal/repository/postgres"
)

type Server struct {
	MetricsAddr string `mapstructure:"metrics_addr"`
}

type Notify struct {
	Timeout     time.Duration `mapstructure:"timeout"`
	TelegramAPI string        `mapstructure:"telegram_api"`
	PushoverAPI string        `mapstructure:"pushover_api"`
	DedupTTL    time.Duration `mapstructure:"dedup_ttl"`
}

type Config struct {
	App           common.App   `mapstructure:"app"`
	Log           common.Log   `mapstructure:"log"`
	OTEL          common.OTEL  `mapstructure:"otel"`
	DB            pg.Config    `mapstructure:"db"`
	Redis         common.Redis `mapstructure:"redis"`
	Kafka         common.Kafka `mapstructure:"kafka"`
	FromBeginning bool         `mapstructure:"from_beginning"`
	Server        Server       `mapstructure:"server"`
	Notify        Notify       `mapstructure:"notify"`
}
