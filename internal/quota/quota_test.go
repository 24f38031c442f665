package quota

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memLedger struct {
	mu     sync.Mutex
	counts map[string]int
}

func (m *memLedger) Count(_ context.Context, day string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[day], nil
}

func (m *memLedger) Add(_ context.Context, day string, n int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.counts == nil {
		m.counts = map[string]int{}
	}
	m.counts[day] += n
	return m.counts[day], nil
}

func fixedGate(l Ledger, limit int) *Gate {
	g := NewGate(l, limit)
	g.Now = func() time.Time { return time.Date(2026, 3, 4, 23, 30, 0, 0, time.UTC) }
	return g
}

func TestCanConsume(t *testing.T) {
	tests := []struct {
		name    string
		current int
		request int
		want    bool
	}{
		{"empty day", 0, 5, true},
		{"exactly at limit", 145, 5, true},
		{"one over", 149, 5, false},
		{"already full", 150, 1, false},
		{"zero request at limit", 150, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := &memLedger{counts: map[string]int{"2026-03-04": tt.current}}
			g := fixedGate(l, 150)

			ok, u, err := g.CanConsume(context.Background(), tt.request)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
			assert.Equal(t, tt.current, u.Count)
			assert.Equal(t, 150, u.Limit)
		})
	}
}

func TestConsumeUsesUTCDay(t *testing.T) {
	l := &memLedger{}
	g := fixedGate(l, 0)
	g.Now = func() time.Time {
		return time.Date(2026, 3, 5, 1, 0, 0, 0, time.FixedZone("CET", 3600*2))
	}

	u, err := g.Consume(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "2026-03-04", u.Day)
	assert.Equal(t, 1, u.Count)
	assert.Equal(t, DefaultDailyLimit, u.Limit)
	assert.Equal(t, DefaultDailyLimit-1, u.Remaining)
}

func TestRedisLedger(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	l := NewRedisLedger(client, "test:quota")
	ctx := context.Background()

	n, err := l.Count(ctx, "2026-03-04")
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = l.Add(ctx, "2026-03-04", 2)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	n, err = l.Add(ctx, "2026-03-04", 1)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	n, err = l.Count(ctx, "2026-03-04")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, keyTTL, mr.TTL("test:quota:2026-03-04"))

	g := fixedGate(l, 4)
	ok, _, err := g.CanConsume(ctx, 2)
	require.NoError(t, err)
	assert.False(t, ok)
}
