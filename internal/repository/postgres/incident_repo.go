package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/NordCoder/Uptimer/internal/domain/incident"
)

var _ incident.Repo = (*IncidentRepoImpl)(nil)

type IncidentRepoImpl struct {
	db *DB
}

func NewIncidentRepo(db *DB) *IncidentRepoImpl { return &IncidentRepoImpl{db: db} }

const (
	qFindOpenIncident = `
SELECT id, target_id, title, content, status, started_at, resolved_at
FROM incidents
WHERE target_id = $1 AND status = 0
LIMIT 1;
`

	qCreateIncident = `
INSERT INTO incidents (target_id, title, content, status, started_at)
VALUES ($1, $2, $3, $4, $5)
RETURNING id;
`

	qResolveOpenIncidents = `
UPDATE incidents
SET status = 1, resolved_at = $2
WHERE target_id = $1 AND status = 0;
`
)

func (r *IncidentRepoImpl) FindOpen(ctx context.Context, targetID int64) (*incident.Incident, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var (
		in     incident.Incident
		status int
	)
	err := r.db.execQueryer(ctx).QueryRow(ctx, qFindOpenIncident, targetID).Scan(
		&in.ID, &in.TargetID, &in.Title, &in.Content, &status, &in.StartedAt, &in.ResolvedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find open incident: %w", err)
	}
	in.Status = incident.Status(status)
	return &in, nil
}

// Create returns ErrConflict when the target already has an OPEN incident.
func (r *IncidentRepoImpl) Create(ctx context.Context, in *incident.Incident) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	if in.StartedAt.IsZero() {
		in.StartedAt = time.Now().UTC()
	}
	err := r.db.execQueryer(ctx).QueryRow(ctx, qCreateIncident,
		in.TargetID, in.Title, in.Content, int(in.Status), in.StartedAt).Scan(&in.ID)
	if isUniqueViolation(err) {
		return ErrConflict
	}
	if err != nil {
		return fmt.Errorf("create incident: %w", err)
	}
	return nil
}

func (r *IncidentRepoImpl) ResolveOpen(ctx context.Context, targetID int64, at time.Time) (int64, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	tag, err := r.db.execQueryer(ctx).Exec(ctx, qResolveOpenIncidents, targetID, at)
	if err != nil {
		return 0, fmt.Errorf("resolve incidents: %w", err)
	}
	return tag.RowsAffected(), nil
}
