package memory

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NordCoder/Uptimer/internal/domain/lease"
	"github.com/NordCoder/Uptimer/internal/domain/maintenance"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestTokenBucket_AllowsBurstThenRefills(t *testing.T) {
	c := &clock{t: time.Unix(1_700_000_000, 0)}
	l := NewTokenBucketLimiter(60, 2)
	l.now = c.now
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		ok, err := l.Allow(ctx, "1.2.3.4")
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, _ := l.Allow(ctx, "1.2.3.4")
	assert.False(t, ok)

	ok, _ = l.Allow(ctx, "5.6.7.8")
	assert.True(t, ok, "keys are independent")

	c.advance(1100 * time.Millisecond)
	ok, _ = l.Allow(ctx, "1.2.3.4")
	assert.True(t, ok)
}

func TestLocker_BusyUntilReleasedOrExpired(t *testing.T) {
	c := &clock{t: time.Unix(1_700_000_000, 0)}
	l := NewLocker()
	l.now = c.now
	ctx := context.Background()

	first, err := l.Acquire(ctx, "target:7", time.Minute)
	require.NoError(t, err)

	_, err = l.Acquire(ctx, "target:7", time.Minute)
	assert.ErrorIs(t, err, lease.ErrBusy)

	_, err = l.Acquire(ctx, "target:8", time.Minute)
	assert.NoError(t, err)

	require.NoError(t, first.Release(ctx))
	second, err := l.Acquire(ctx, "target:7", time.Minute)
	require.NoError(t, err)

	c.advance(2 * time.Minute)
	third, err := l.Acquire(ctx, "target:7", time.Minute)
	require.NoError(t, err, "expired lease can be taken over")

	// a stale holder must not free the new holder's lease
	require.NoError(t, second.Release(ctx))
	_, err = l.Acquire(ctx, "target:7", time.Minute)
	assert.ErrorIs(t, err, lease.ErrBusy)
	require.NoError(t, third.Release(ctx))
}

func TestLocker_SweepsExpiredLeases(t *testing.T) {
	c := &clock{t: time.Unix(1_700_000_000, 0)}
	l := NewLocker()
	l.now = c.now
	ctx := context.Background()

	for i := range 10_000 {
		_, err := l.Acquire(ctx, fmt.Sprintf("event:%d", i), 30*time.Second)
		require.NoError(t, err)
	}
	assert.Equal(t, 10_000, l.size())

	c.advance(20 * time.Second)
	_, err := l.Acquire(ctx, "event:late", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 10_001, l.size(), "nothing expired yet")

	c.advance(time.Minute)
	_, err = l.Acquire(ctx, "event:next", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 2, l.size(), "only live leases remain")

	_, err = l.Acquire(ctx, "event:late", time.Minute)
	assert.ErrorIs(t, err, lease.ErrBusy)
}

func TestMaintenance_Covers(t *testing.T) {
	ctx := context.Background()
	start := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	m := NewMaintenance(maintenance.Window{
		ID: 1, Title: "db upgrade", Active: true,
		StartsAt: start, EndsAt: start.Add(time.Hour), TargetIDs: []int64{7, 9},
	})

	cases := []struct {
		name   string
		target int64
		at     time.Time
		want   bool
	}{
		{"inside", 7, start.Add(30 * time.Minute), true},
		{"start is inclusive", 9, start, true},
		{"end is exclusive", 7, start.Add(time.Hour), false},
		{"before", 7, start.Add(-time.Second), false},
		{"other target", 8, start.Add(time.Minute), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := m.Covers(ctx, tc.target, tc.at)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}

	m.Put(maintenance.Window{ID: 1, Active: false, StartsAt: start, EndsAt: start.Add(time.Hour), TargetIDs: []int64{7}})
	got, err := m.Covers(ctx, 7, start.Add(time.Minute))
	require.NoError(t, err)
	assert.False(t, got, "inactive window")
}
