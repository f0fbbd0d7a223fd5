package main

import (
	"context"

	config "github.com/NordCoder/Uptimer/internal/config/monitor"
	"github.com/NordCoder/Uptimer/internal/obs"
)

func initOTel(ctx context.Context, cfg *config.Config) (func(context.Context) error, error) {
	closer, err := obs.SetupOTel(ctx, cfg.OTEL.AsOTELConfig(cfg.App))
	if err != nil {
		return nil, err
	}
	return closer.Shutdown, nil
}
