package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/NordCoder/Uptimer/internal/domain/heartbeat"
)

var _ heartbeat.Repo = (*HeartbeatRepoImpl)(nil)

type HeartbeatRepoImpl struct {
	db *DB
}

func NewHeartbeatRepo(db *DB) *HeartbeatRepoImpl { return &HeartbeatRepoImpl{db: db} }

const (
	qInsertHeartbeat = `
INSERT INTO heartbeats (target_id, status, msg, ping, duration, down_count, time)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id;
`

	qLatestHeartbeat = `
SELECT id, target_id, status, msg, ping, duration, down_count, time
FROM heartbeats
WHERE target_id = $1
ORDER BY time DESC, id DESC
LIMIT 1;
`

	qLastTimes = `
SELECT DISTINCT ON (target_id) target_id, time
FROM heartbeats
WHERE target_id = ANY($1)
ORDER BY target_id, time DESC;
`
)

func (r *HeartbeatRepoImpl) Insert(ctx context.Context, hb *heartbeat.Heartbeat) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	if hb.Time.IsZero() {
		hb.Time = time.Now().UTC()
	}
	row := r.db.execQueryer(ctx).QueryRow(ctx, qInsertHeartbeat,
		hb.TargetID, int(hb.Status), hb.Message, hb.Ping, hb.Duration, hb.DownCount, hb.Time)
	if err := row.Scan(&hb.ID); err != nil {
		return fmt.Errorf("insert heartbeat: %w", err)
	}
	return nil
}

func (r *HeartbeatRepoImpl) Latest(ctx context.Context, targetID int64) (*heartbeat.Heartbeat, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var (
		hb     heartbeat.Heartbeat
		status int
	)
	err := r.db.execQueryer(ctx).QueryRow(ctx, qLatestHeartbeat, targetID).Scan(
		&hb.ID, &hb.TargetID, &status, &hb.Message, &hb.Ping, &hb.Duration, &hb.DownCount, &hb.Time,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest heartbeat: %w", err)
	}
	hb.Status = heartbeat.Status(status)
	return &hb, nil
}

func (r *HeartbeatRepoImpl) LastTimes(ctx context.Context, targetIDs []int64) (map[int64]time.Time, error) {
	out := make(map[int64]time.Time, len(targetIDs))
	if len(targetIDs) == 0 {
		return out, nil
	}
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	rows, err := r.db.execQueryer(ctx).Query(ctx, qLastTimes, targetIDs)
	if err != nil {
		return nil, fmt.Errorf("query last heartbeats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id int64
			at time.Time
		)
		if err := rows.Scan(&id, &at); err != nil {
			return nil, fmt.Errorf("scan last heartbeat: %w", err)
		}
		out[id] = at
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}
