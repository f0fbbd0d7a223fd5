package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/NordCoder/Uptimer/internal/domain/target"
)

var _ target.Repo = (*TargetRepoImpl)(nil)

type TargetRepoImpl struct {
	db *DB
}

func NewTargetRepo(db *DB) *TargetRepoImpl { return &TargetRepoImpl{db: db} }

const qListActiveTargets = `
SELECT id, owner_id, name, type, url, hostname, port, method, headers, body, keyword,
       interval_seconds, timeout_seconds, max_retries, active, upside_down, ignore_tls
FROM targets
WHERE active = TRUE
ORDER BY id;
`

func scanTarget(row pgx.Row, t *target.Target) error {
	var (
		typ         string
		headers     []byte
		intervalSec int
		timeoutSec  int
	)
	if err := row.Scan(
		&t.ID,
		&t.OwnerID,
		&t.Name,
		&typ,
		&t.URL,
		&t.Hostname,
		&t.Port,
		&t.Method,
		&headers,
		&t.Body,
		&t.Keyword,
		&intervalSec,
		&timeoutSec,
		&t.MaxRetries,
		&t.Active,
		&t.UpsideDown,
		&t.IgnoreTLS,
	); err != nil {
		return fmt.Errorf("scan target: %w", err)
	}
	t.Type = target.ParseType(typ)
	t.Interval = time.Duration(intervalSec) * time.Second
	t.Timeout = time.Duration(timeoutSec) * time.Second
	if len(headers) > 0 {
		if err := json.Unmarshal(headers, &t.Headers); err != nil {
			return fmt.Errorf("target %d headers: %w", t.ID, err)
		}
	}
	return nil
}

func (r *TargetRepoImpl) ListActive(ctx context.Context) ([]target.Target, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	rows, err := r.db.execQueryer(ctx).Query(ctx, qListActiveTargets)
	if err != nil {
		return nil, fmt.Errorf("query targets: %w", err)
	}
	defer rows.Close()

	var out []target.Target
	for rows.Next() {
		var t target.Target
		if err := scanTarget(rows, &t); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}
