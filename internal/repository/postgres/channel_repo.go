package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/NordCoder/Uptimer/internal/domain/channel"
)

var _ channel.Repo = (*ChannelRepoImpl)(nil)

type ChannelRepoImpl struct {
	db *DB
}

func NewChannelRepo(db *DB) *ChannelRepoImpl { return &ChannelRepoImpl{db: db} }

const (
	qListActiveChannels = `
SELECT id, owner_id, name, type, config, active
FROM notification_channels
WHERE owner_id = $1 AND active = TRUE
ORDER BY id;
`

	qGetChannel = `
SELECT id, owner_id, name, type, config, active
FROM notification_channels
WHERE id = $1;
`
)

func scanChannel(row pgx.Row, c *channel.Channel) error {
	var typ string
	if err := row.Scan(&c.ID, &c.OwnerID, &c.Name, &typ, &c.Config, &c.Active); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return channel.ErrNotFound
		}
		return fmt.Errorf("scan channel: %w", err)
	}
	c.Type = channel.Type(typ)
	return nil
}

func (r *ChannelRepoImpl) ListActiveByOwner(ctx context.Context, ownerID int64) ([]channel.Channel, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	rows, err := r.db.Pool.Query(ctx, qListActiveChannels, ownerID)
	if err != nil {
		return nil, fmt.Errorf("query channels: %w", err)
	}
	defer rows.Close()

	var out []channel.Channel
	for rows.Next() {
		var c channel.Channel
		if err := scanChannel(rows, &c); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

func (r *ChannelRepoImpl) GetByID(ctx context.Context, id int64) (*channel.Channel, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var c channel.Channel
	if err := scanChannel(r.db.Pool.QueryRow(ctx, qGetChannel, id), &c); err != nil {
		return nil, err
	}
	return &c, nil
}
