package heartbeat

import "time"

type Status int

const (
	StatusDown        Status = 0
	StatusUp          Status = 1
	StatusPending     Status = 2
	StatusMaintenance Status = 3
)

func (s Status) String() string {
	switch s {
	case StatusDown:
		return "DOWN"
	case StatusUp:
		return "UP"
	case StatusPending:
		return "PENDING"
	case StatusMaintenance:
		return "MAINTENANCE"
	default:
		return "UNKNOWN"
	}
}

// Heartbeat is one persisted check outcome. Rows are append-only.
type Heartbeat struct {
	ID        int64     `json:"id"`
	TargetID  int64     `json:"target_id"`
	Status    Status    `json:"status"`
	Message   string    `json:"msg"`
	Ping      *int64    `json:"ping"`
	Duration  int64     `json:"duration"`
	DownCount int       `json:"down_count"`
	Time      time.Time `json:"time"`
}
