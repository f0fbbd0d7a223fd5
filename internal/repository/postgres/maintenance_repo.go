package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/NordCoder/Uptimer/internal/domain/maintenance"
)

var _ maintenance.Repo = (*MaintenanceRepoImpl)(nil)

type MaintenanceRepoImpl struct {
	db *DB
}

func NewMaintenanceRepo(db *DB) *MaintenanceRepoImpl { return &MaintenanceRepoImpl{db: db} }

const qMaintenanceCovers = `
SELECT EXISTS (
    SELECT 1
    FROM maintenance m
    JOIN maintenance_targets mt ON mt.maintenance_id = m.id
    WHERE mt.target_id = $1
      AND m.active = TRUE
      AND m.start_date <= $2
      AND m.end_date > $2
);
`

func (r *MaintenanceRepoImpl) Covers(ctx context.Context, targetID int64, now time.Time) (bool, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var covered bool
	if err := r.db.Pool.QueryRow(ctx, qMaintenanceCovers, targetID, now).Scan(&covered); err != nil {
		return false, fmt.Errorf("maintenance lookup: %w", err)
	}
	return covered, nil
}
