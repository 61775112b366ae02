package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (f *fakeClock) now() time.Time           { return f.t }
func (f *fakeClock) advance(d time.Duration) { f.t = f.t.Add(d) }

func newTestMemory(t *testing.T, size int) (*MemoryClient, *fakeClock) {
	t.Helper()
	clock := &fakeClock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := NewMemoryClient(size)
	c.now = clock.now
	t.Cleanup(func() { _ = c.Close() })
	return c, clock
}

func TestMemoryGetSet(t *testing.T) {
	ctx := context.Background()
	c, clock := newTestMemory(t, 10)

	_, err := c.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrCacheMiss)

	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))
	got, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)

	clock.advance(time.Minute)
	_, err = c.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestMemoryDeleteByPrefix(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestMemory(t, 10)

	require.NoError(t, c.Set(ctx, UserCacheKey("alice", "metrics"), []byte("1"), time.Minute))
	require.NoError(t, c.Set(ctx, UserCacheKey("alice", "recent"), []byte("2"), time.Minute))
	require.NoError(t, c.Set(ctx, UserCacheKey("bob", "metrics"), []byte("3"), time.Minute))

	require.NoError(t, c.DeleteByPrefix(ctx, UserCacheKey("alice")))

	_, err := c.Get(ctx, "u:alice:metrics")
	assert.ErrorIs(t, err, ErrCacheMiss)
	_, err = c.Get(ctx, "u:bob:metrics")
	assert.NoError(t, err)
}

func TestMemoryEvictsEarliestExpiry(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestMemory(t, 2)

	require.NoError(t, c.Set(ctx, "short", []byte("1"), time.Second))
	require.NoError(t, c.Set(ctx, "long", []byte("2"), time.Hour))
	require.NoError(t, c.Set(ctx, "new", []byte("3"), time.Minute))

	assert.Equal(t, 2, c.Len())
	_, err := c.Get(ctx, "short")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestMemoryIncrWindow(t *testing.T) {
	ctx := context.Background()
	c, clock := newTestMemory(t, 10)

	for i := int64(1); i <= 3; i++ {
		n, left, err := c.Incr(ctx, "rl:1.2.3.4", time.Minute)
		require.NoError(t, err)
		assert.Equal(t, i, n)
		assert.Equal(t, time.Minute, left)
	}

	clock.advance(30 * time.Second)
	n, left, err := c.Incr(ctx, "rl:1.2.3.4", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
	assert.Equal(t, 30*time.Second, left)

	clock.advance(30 * time.Second)
	n, _, err = c.Incr(ctx, "rl:1.2.3.4", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestMemoryRemoveExpired(t *testing.T) {
	ctx := context.Background()
	c, clock := newTestMemory(t, 10)

	require.NoError(t, c.Set(ctx, "a", []byte("1"), time.Second))
	require.NoError(t, c.Set(ctx, "b", []byte("2"), time.Hour))
	clock.advance(time.Minute)
	c.removeExpired()

	assert.Equal(t, 1, c.Len())
}

func TestCacheKey(t *testing.T) {
	assert.Equal(t, "a:b:c", CacheKey("a", "b", "c"))
	assert.Equal(t, "u:42:metrics", UserCacheKey("42", "metrics"))
}
