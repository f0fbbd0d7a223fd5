package transition

import (
	"time"

	"github.com/NordCoder/Uptimer/internal/domain/heartbeat"
)

type Kind string

const (
	KindNone     Kind = ""
	KindDown     Kind = "down"
	KindRecovery Kind = "up"
)

// Event is what incidents and notifications react to.
type Event struct {
	TargetID   int64             `json:"target_id"`
	OwnerID    int64             `json:"owner_id"`
	TargetName string            `json:"target_name"`
	Address    string            `json:"address,omitempty"`
	Kind       Kind              `json:"kind"`
	From       *heartbeat.Status `json:"from"`
	To         heartbeat.Status  `json:"to"`
	Message    string            `json:"message"`
	At         time.Time         `json:"at"`
}
