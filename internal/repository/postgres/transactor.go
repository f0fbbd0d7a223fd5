package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

// TxRunner runs a unit of work in one transaction. Repositories called with the
// returned context join it instead of taking a pooled connection.
type TxRunner struct {
	db   *DB
	log  *zap.Logger
	opts pgx.TxOptions
}

func NewTransactor(db *DB, log *zap.Logger) *TxRunner {
	return &TxRunner{db: db, log: log, opts: pgx.TxOptions{IsoLevel: pgx.ReadCommitted}}
}

// WithTx commits when fn returns nil and rolls back otherwise. A call made
// while a transaction is already open on ctx reuses it.
func (t *TxRunner) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := txFrom(ctx); ok {
		return fn(ctx)
	}
	err := pgx.BeginTxFunc(ctx, t.db.Pool, t.opts, func(tx pgx.Tx) error {
		return fn(context.WithValue(ctx, txKey{}, tx))
	})
	if err != nil {
		t.log.Debug("transaction aborted", zap.Error(err))
		return fmt.Errorf("tx: %w", err)
	}
	return nil
}

type txKey struct{}

func txFrom(ctx context.Context) (pgx.Tx, bool) {
	tx, ok := ctx.Value(txKey{}).(pgx.Tx)
	return tx, ok && tx != nil
}

type execQueryer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (db *DB) execQueryer(ctx context.Context) execQueryer {
	if tx, ok := txFrom(ctx); ok {
		return tx
	}
	return db.Pool
}
