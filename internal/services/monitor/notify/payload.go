package notify

import (
	"time"

	"github.com/NordCoder/Uptimer/internal/domain/transition"
)

type Status string

const (
	StatusUp       Status = "up"
	StatusDown     Status = "down"
	StatusDegraded Status = "degraded"
)

// Payload is the channel-independent notification content.
type Payload struct {
	Title       string `json:"title"`
	Message     string `json:"message"`
	MonitorName string `json:"monitorName,omitempty"`
	MonitorURL  string `json:"monitorUrl,omitempty"`
	Status      Status `json:"status,omitempty"`
	Timestamp   string `json:"timestamp,omitempty"`
}

func DownPayload(name, address, message string, at time.Time) Payload {
	return Payload{
		Title:       "🔴 " + name + " is Down",
		Message:     message,
		MonitorName: name,
		MonitorURL:  address,
		Status:      StatusDown,
		Timestamp:   at.UTC().Format(time.RFC3339),
	}
}

func RecoveryPayload(name, address string, at time.Time) Payload {
	return Payload{
		Title:       "✅ " + name + " is Back Online",
		Message:     "Service has recovered and is operational",
		MonitorName: name,
		MonitorURL:  address,
		Status:      StatusUp,
		Timestamp:   at.UTC().Format(time.RFC3339),
	}
}

func TestPayload(at time.Time) Payload {
	return Payload{
		Title:     "Test Notification",
		Message:   "This is a test notification from your Uptime Monitor.",
		Status:    StatusUp,
		Timestamp: at.UTC().Format(time.RFC3339),
	}
}

// FromEvent builds the payload for a transition. ok is false for KindNone.
func FromEvent(ev transition.Event) (p Payload, ok bool) {
	switch ev.Kind {
	case transition.KindDown:
		return DownPayload(ev.TargetName, ev.Address, ev.Message, ev.At), true
	case transition.KindRecovery:
		return RecoveryPayload(ev.TargetName, ev.Address, ev.At), true
	default:
		return Payload{}, false
	}
}
