package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"

	config "github.com/NordCoder/Uptimer/internal/config/monitor"
	"github.com/NordCoder/Uptimer/internal/obs"
	"github.com/NordCoder/Uptimer/internal/obs/retry"
	"github.com/NordCoder/Uptimer/migrations"
)

// gooseLogger routes goose output through zap.
type gooseLogger struct{ s *zap.SugaredLogger }

func (g gooseLogger) Printf(format string, v ...any) { g.s.Infof(format, v...) }
func (g gooseLogger) Fatalf(format string, v ...any) { g.s.Fatalf(format, v...) }

func main() {
	cfgPath := flag.String("config", "", "path to monitor config file")
	cmd := flag.String("cmd", "up", "goose command: up, down, status, version or redo")
	wait := flag.Duration("wait", 30*time.Second, "how long to wait for the database")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	l, err := obs.NewLogger(cfg.Log.AsLoggerConfig(cfg.App))
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = l.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg.DB.DSN, *cmd, *wait, l); err != nil {
		l.Fatal("migrate", zap.String("cmd", *cmd), zap.Error(err))
	}
	l.Info("migrations done", zap.String("cmd", *cmd))
}

func run(ctx context.Context, dsn, cmd string, wait time.Duration, l *zap.Logger) error {
	if dsn == "" {
		return fmt.Errorf("db.dsn is empty")
	}
	goose.SetBaseFS(migrations.FS)
	goose.SetLogger(gooseLogger{s: l.Sugar()})
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	db, err := goose.OpenDBWithDriver("pgx", dsn)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	if err := waitForDB(ctx, db, wait, l); err != nil {
		return err
	}
	return goose.RunContext(ctx, cmd, db, ".")
}

func waitForDB(ctx context.Context, db *sql.DB, wait time.Duration, l *zap.Logger) error {
	ctx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()
	return retry.Do(ctx, func() error { return db.PingContext(ctx) }, retry.Policy{
		Name:     "migrator_ping",
		Attempts: 30,
		Backoff:  retry.ExpoJitter{Base: 250 * time.Millisecond, Max: 3 * time.Second},
		OnAttempt: func(i int, err error) {
			l.Info("database not ready", zap.Int("attempt", i+1), zap.Error(err))
		},
	})
}
