// Package evaluator turns raw probe outcomes into effective statuses with a
// retry grace period, and classifies status changes.
package evaluator

import (
	"github.com/NordCoder/Uptimer/internal/domain/heartbeat"
	"github.com/NordCoder/Uptimer/internal/domain/transition"
)

// Next applies the hysteresis rule. prev is nil when the target has never been checked.
//
// A raw UP always resets the streak. A raw DOWN extends it, and the target keeps
// its previous status until the streak exceeds maxRetries.
func Next(prev *heartbeat.Heartbeat, maxRetries int, raw heartbeat.Status) (heartbeat.Status, int) {
	if raw == heartbeat.StatusUp {
		return heartbeat.StatusUp, 0
	}

	downCount := 1
	if prev != nil {
		downCount = prev.DownCount + 1
	}
	if downCount > maxRetries {
		return heartbeat.StatusDown, downCount
	}
	return holdStatus(prev), downCount
}

// holdStatus is the status kept during the grace period.
// MAINTENANCE is not carried over: a target leaving a window is PENDING until proven.
func holdStatus(prev *heartbeat.Heartbeat) heartbeat.Status {
	if prev == nil || prev.Status == heartbeat.StatusMaintenance {
		return heartbeat.StatusPending
	}
	return prev.Status
}

// Maintenance is the heartbeat written instead of probing a covered target.
func Maintenance() (heartbeat.Status, int) {
	return heartbeat.StatusMaintenance, 0
}

// Classify reports whether moving from prev to next should open or resolve incidents.
func Classify(prev *heartbeat.Heartbeat, next heartbeat.Status) transition.Kind {
	switch {
	case next == heartbeat.StatusDown && (prev == nil || prev.Status != heartbeat.StatusDown):
		return transition.KindDown
	case prev != nil && prev.Status == heartbeat.StatusDown && next == heartbeat.StatusUp:
		return transition.KindRecovery
	default:
		return transition.KindNone
	}
}
