package common

import (
	"github.com/NordCoder/Uptimer/internal/obs"
)

type App struct {
	Name    string `mapstructure:"name"`
	Env     string `mapstructure:"env"`
	Version string `mapstructure:"version"`
}

type Log struct {
	Level      string `mapstructure:"level"`
	Pretty     bool   `mapstructure:"pretty"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

func (lc Log) AsLoggerConfig(app App) obs.LogConfig {
	return obs.LogConfig{
		Level:      lc.Level,
		Pretty:     lc.Pretty,
		App:        app.Name,
		Env:        app.Env,
		Ver:        app.Version,
		File:       lc.File,
		MaxSizeMB:  lc.MaxSizeMB,
		MaxBackups: lc.MaxBackups,
		MaxAgeDays: lc.MaxAgeDays,
	}
}

type OTEL struct {
	Enable       bool    `mapstructure:"enable"`
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	ServiceName  string  `mapstructure:"service_name"`
	SampleRatio  float64 `mapstructure:"sample_ratio"`
}

func (oc OTEL) AsOTELConfig(app App) *obs.OTELConfig {
	name := oc.ServiceName
	if name == "" {
		name = app.Name
	}
	return &obs.OTELConfig{
		Enable:      oc.Enable,
		Endpoint:    oc.OTLPEndpoint,
		ServiceName: name,
		Version:     app.Version,
		Env:         app.Env,
		SampleRatio: oc.SampleRatio,
	}
}

type Redis struct {
	Enable    bool   `mapstructure:"enable"`
	URL       string `mapstructure:"url"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

type Kafka struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
	GroupID string   `mapstructure:"group_id"`
}
