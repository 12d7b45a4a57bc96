package quota

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trends-proxy/internal/redis"
)

func newRedisTestStore(t *testing.T, capacity int, window time.Duration) (Store, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client, err := redis.NewClient(&redis.Config{Address: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	return NewRedisStore(client, "quota:", capacity, window), mr
}

func TestRedisStore_ConsumeWithinCapacity(t *testing.T) {
	store, _ := newRedisTestStore(t, 3, time.Hour)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		used, allowed, _, err := store.Consume(ctx)
		require.NoError(t, err)
		assert.True(t, allowed)
		assert.Equal(t, i, used)
	}
}

func TestRedisStore_RejectsWhenExhausted(t *testing.T) {
	store, _ := newRedisTestStore(t, 2, time.Hour)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, allowed, _, err := store.Consume(ctx)
		require.NoError(t, err)
		require.True(t, allowed)
	}

	used, allowed, retryAfter, err := store.Consume(ctx)
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.Equal(t, 2, used)
	assert.Greater(t, retryAfter, time.Duration(0))
	assert.LessOrEqual(t, retryAfter, time.Hour)
}

func TestRedisStore_WindowExpiryAdmitsAgain(t *testing.T) {
	store, mr := newRedisTestStore(t, 1, time.Hour)
	ctx := context.Background()

	_, allowed, _, err := store.Consume(ctx)
	require.NoError(t, err)
	require.True(t, allowed)

	_, allowed, _, err = store.Consume(ctx)
	require.NoError(t, err)
	require.False(t, allowed)

	mr.FastForward(time.Hour + time.Second)

	used, allowed, _, err := store.Consume(ctx)
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.Equal(t, 1, used)
}

func TestRedisStore_Usage(t *testing.T) {
	store, _ := newRedisTestStore(t, 5, time.Hour)
	ctx := context.Background()

	usage, err := store.Usage(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, usage.Used)
	assert.Equal(t, 5, usage.Remaining())

	for i := 0; i < 2; i++ {
		_, _, _, err := store.Consume(ctx)
		require.NoError(t, err)
	}

	usage, err = store.Usage(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, usage.Used)
	assert.Equal(t, 3, usage.Remaining())
	assert.Greater(t, usage.ResetIn, time.Duration(0))
}

func TestRedisStore_UsageClampsOverflow(t *testing.T) {
	store, _ := newRedisTestStore(t, 1, time.Hour)
	ctx := context.Background()

	// Rejected attempts still bump the raw counter; usage reports at most capacity
	for i := 0; i < 4; i++ {
		_, _, _, _ = store.Consume(ctx)
	}

	usage, err := store.Usage(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, usage.Used)
	assert.Equal(t, 0, usage.Remaining())
}
