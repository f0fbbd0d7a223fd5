package memory

import (
	"context"
	"sync"
	"time"

	"github.com/NordCoder/Uptimer/internal/domain/lease"
)

var _ lease.Locker = (*Locker)(nil)

type held struct {
	token   uint64
	expires time.Time
}

// Locker hands out leases valid within a single process.
type Locker struct {
	now func() time.Time

	mu    sync.Mutex
	seq   uint64
	held  map[string]held
	swept time.Time
}

const leaseSweepEvery = time.Minute

func NewLocker() *Locker {
	return &Locker{now: time.Now, held: make(map[string]held)}
}

func (l *Locker) Acquire(_ context.Context, key string, ttl time.Duration) (lease.Lease, error) {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	l.sweep(now)
	if h, ok := l.held[key]; ok && now.Before(h.expires) {
		return nil, lease.ErrBusy
	}
	l.seq++
	l.held[key] = held{token: l.seq, expires: now.Add(ttl)}
	return &memLease{l: l, key: key, token: l.seq}, nil
}

// sweep drops expired leases at most once per leaseSweepEvery.
func (l *Locker) sweep(now time.Time) {
	if now.Sub(l.swept) < leaseSweepEvery {
		return
	}
	l.swept = now
	for k, h := range l.held {
		if !now.Before(h.expires) {
			delete(l.held, k)
		}
	}
}

func (l *Locker) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.held)
}

type memLease struct {
	l     *Locker
	key   string
	token uint64
}

func (m *memLease) Release(context.Context) error {
	m.l.mu.Lock()
	defer m.l.mu.Unlock()
	if h, ok := m.l.held[m.key]; ok && h.token == m.token {
		delete(m.l.held, m.key)
	}
	return nil
}
