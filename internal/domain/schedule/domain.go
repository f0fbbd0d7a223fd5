package schedule

import "time"

// Schedule is the external periodic trigger that drives dispatch passes.
type Schedule struct {
	ID              string    `json:"scheduleId"`
	Cron            string    `json:"cron"`
	Destination     string    `json:"destination"`
	Method          string    `json:"method"`
	Paused          bool      `json:"isPaused"`
	Retries         int       `json:"retries"`
	Callback        string    `json:"callback,omitempty"`
	FailureCallback string    `json:"failureCallback,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
}

type CreateRequest struct {
	Destination     string
	Cron            string
	Retries         int
	FailureCallback string
}

const DefaultRetries = 3
