package janitor

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/atlas/pkg/broker"
	"github.com/ternarybob/atlas/pkg/models"
)

func testJanitor(t *testing.T, cfg Config) (*Janitor, *broker.Broker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rc := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	b := broker.NewFromClient(rc)
	t.Cleanup(func() { _ = b.Close() })
	return New(b, cfg), b, mr
}

func TestJanitor_SweepReapsStaleRecords(t *testing.T) {
	j, b, mr := testJanitor(t, Config{TTL: 15 * time.Minute})
	ctx := context.Background()

	// A record whose rolling timestamp is an hour old.
	require.NoError(t, b.Enqueue(ctx, "stale", []byte("payload")))
	mr.HSet("stale", models.FieldTimestamp, models.FormatTimestamp(time.Now().Add(-time.Hour)))

	// A record inside the TTL window.
	require.NoError(t, b.Enqueue(ctx, "fresh", []byte("payload")))

	// A hash that is not a job record, and one whose timestamp cannot be
	// dated; neither may be touched.
	mr.HSet("sessions", "user", "u1")
	mr.HSet("weird", models.FieldStatus, string(models.StatusQueued), models.FieldTimestamp, "garbage")

	reaped, err := j.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, reaped)

	_, ok, err := b.ReadStatus(ctx, "stale")
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = b.ReadStatus(ctx, "fresh")
	require.NoError(t, err)
	assert.True(t, ok)

	assert.True(t, mr.Exists("sessions"))
	assert.True(t, mr.Exists("weird"))
}

func TestJanitor_SweepEmpty(t *testing.T) {
	j, _, _ := testJanitor(t, Config{})

	reaped, err := j.Sweep(context.Background())
	require.NoError(t, err)
	assert.Zero(t, reaped)
}

func TestJanitor_SweepPagesThroughRecords(t *testing.T) {
	j, b, mr := testJanitor(t, Config{TTL: time.Minute, PageSize: 2})
	ctx := context.Background()

	// Fresh records fill the leading scan pages; the one stale record sorts
	// last, so reaping it proves the sweep walked past the first page.
	for _, id := range []string{"a", "b", "c", "d"} {
		require.NoError(t, b.Enqueue(ctx, id, []byte("payload")))
	}
	require.NoError(t, b.Enqueue(ctx, "z-stale", []byte("payload")))
	mr.HSet("z-stale", models.FieldTimestamp, models.FormatTimestamp(time.Now().Add(-10*time.Minute)))

	reaped, err := j.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, reaped)

	_, ok, err := b.ReadStatus(ctx, "z-stale")
	require.NoError(t, err)
	assert.False(t, ok)

	for _, id := range []string{"a", "b", "c", "d"} {
		_, ok, err := b.ReadStatus(ctx, id)
		require.NoError(t, err)
		assert.True(t, ok, "record %s must survive the sweep", id)
	}
}

func TestJanitor_StartStop(t *testing.T) {
	j, _, _ := testJanitor(t, Config{Schedule: "@every 1h"})

	require.NoError(t, j.Start())
	// Start is idempotent while running.
	require.NoError(t, j.Start())
	j.Stop()
}

func TestJanitor_StartRejectsBadSchedule(t *testing.T) {
	j, _, _ := testJanitor(t, Config{Schedule: "whenever"})

	err := j.Start()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid janitor schedule")
}

func TestConfig_Defaults(t *testing.T) {
	cfg := Config{}.withDefaults()
	assert.Equal(t, "@every 5m", cfg.Schedule)
	assert.Equal(t, 15*time.Minute, cfg.TTL)
	assert.Equal(t, int64(100), cfg.PageSize)

	cfg = Config{Schedule: "@hourly", TTL: time.Hour, PageSize: 10}.withDefaults()
	assert.Equal(t, "@hourly", cfg.Schedule)
	assert.Equal(t, time.Hour, cfg.TTL)
	assert.Equal(t, int64(10), cfg.PageSize)
}
