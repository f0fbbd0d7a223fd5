package maintenance

import "time"

type Window struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Active    bool      `json:"active"`
	StartsAt  time.Time `json:"start_date"`
	EndsAt    time.Time `json:"end_date"`
	TargetIDs []int64   `json:"target_ids"`
}

// Covers reports whether the window suppresses checks of targetID at now.
func (w Window) Covers(targetID int64, now time.Time) bool {
	if !w.Active || now.Before(w.StartsAt) || !now.Before(w.EndsAt) {
		return false
	}
	for _, id := range w.TargetIDs {
		if id == targetID {
			return true
		}
	}
	return false
}
