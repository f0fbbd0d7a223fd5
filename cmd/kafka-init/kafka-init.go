package main

import (
	"context"
	"log"
	"time"

	"go.uber.org/zap"

	"github.com/NordCoder/Uptimer/internal/config/common"
	"github.com/NordCoder/Uptimer/internal/obs"
	"github.com/NordCoder/Uptimer/internal/repository/kafka"
)

type config struct {
	App         common.App    `mapstructure:"app"`
	Log         common.Log    `mapstructure:"log"`
	Brokers     []string      `mapstructure:"brokers"`
	Topics      []string      `mapstructure:"topics"`
	Partitions  int           `mapstructure:"partitions"`
	Replication int           `mapstructure:"replication"`
	Wait        time.Duration `mapstructure:"wait"`
}

func main() {
	v := common.NewViper("")
	common.SetDefaults(v, "kafka-init")
	v.SetDefault("brokers", []string{"kafka:9092"})
	v.SetDefault("topics", []string{"uptimer.transitions"})
	v.SetDefault("partitions", 3)
	v.SetDefault("replication", 1)
	v.SetDefault("wait", "30s")

	var cfg config
	if err := v.Unmarshal(&cfg); err != nil {
		log.Fatal(err)
	}
	l, err := obs.NewLogger(cfg.Log.AsLoggerConfig(cfg.App))
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = l.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Wait+30*time.Second)
	defer cancel()

	specs := make([]kafka.TopicSpec, 0, len(cfg.Topics))
	for _, t := range cfg.Topics {
		specs = append(specs, kafka.TopicSpec{
			Name:              t,
			NumPartitions:     cfg.Partitions,
			ReplicationFactor: cfg.Replication,
			MaxWait:           cfg.Wait,
		})
	}
	if err := kafka.EnsureTopics(ctx, cfg.Brokers, specs, l); err != nil {
		l.Fatal("ensure topics", zap.Strings("topics", cfg.Topics), zap.Error(err))
	}
	l.Info("kafka-init ok", zap.Strings("topics", cfg.Topics))
}
