package incident

import "time"

type Status int

const (
	StatusOpen          Status = 0
	StatusResolved      Status = 1
	StatusInvestigating Status = 2
)

type Incident struct {
	ID         int64      `json:"id"`
	TargetID   *int64     `json:"target_id"`
	Title      string     `json:"title"`
	Content    string     `json:"content"`
	Status     Status     `json:"status"`
	StartedAt  time.Time  `json:"started_at"`
	ResolvedAt *time.Time `json:"resolved_at"`
}
