package main

import (
	"context"

	config "github.com/NordCoder/Uptimer/internal/config/monitor"
	pg "github.com/NordCoder/Uptimer/internal/repository/postgres"
)

func initDB(ctx context.Context, cfg *config.Config) (*pg.DB, error) {
	dbCfg := cfg.DB
	if dbCfg.ApplicationName == "" {
		dbCfg.ApplicationName = cfg.App.Name
	}
	return pg.NewDB(ctx, dbCfg)
}
