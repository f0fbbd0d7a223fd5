package memory

import (
	"context"
	"sync"
	"time"

	"github.com/NordCoder/Uptimer/internal/domain/maintenance"
)

var _ maintenance.Repo = (*Maintenance)(nil)

// Maintenance keeps maintenance windows in process memory.
type Maintenance struct {
	mu      sync.RWMutex
	windows []maintenance.Window
}

func NewMaintenance(windows ...maintenance.Window) *Maintenance {
	return &Maintenance{windows: windows}
}

// Put adds a window or replaces the one with the same ID.
func (m *Maintenance) Put(w maintenance.Window) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.windows {
		if m.windows[i].ID == w.ID {
			m.windows[i] = w
			return
		}
	}
	m.windows = append(m.windows, w)
}

func (m *Maintenance) Covers(_ context.Context, targetID int64, now time.Time) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, w := range m.windows {
		if w.Covers(targetID, now) {
			return true, nil
		}
	}
	return false, nil
}
