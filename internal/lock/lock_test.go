package lock

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKey(t *testing.T) {
	key := Key("poll_scores", "pga", "1726000000")
	assert.Equal(t, "golfpools:lock:poll_scores:pga:1726000000", key)

	prefix := KeyPrefix("poll_scores", "pga")
	assert.Equal(t, "golfpools:lock:poll_scores:pga:", prefix)
}

func TestMemoryLocker_MutualExclusion(t *testing.T) {
	ctx := context.Background()
	locker := NewMemoryLocker()

	// N concurrent workers race for the same key; exactly one must win.
	var wins int64
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			ok, err := locker.Acquire(ctx, "golfpools:lock:test", string(rune('a'+n)), time.Minute)
			require.NoError(t, err)
			if ok {
				atomic.AddInt64(&wins, 1)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int64(1), wins, "Exactly one acquirer should win")
}

func TestMemoryLocker_TTLExpiry(t *testing.T) {
	ctx := context.Background()
	locker := NewMemoryLocker()

	now := time.Now()
	locker.now = func() time.Time { return now }

	ok, err := locker.Acquire(ctx, "k", "owner-1", 30*time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	// Still held before expiry
	ok, err = locker.Acquire(ctx, "k", "owner-2", 30*time.Second)
	require.NoError(t, err)
	assert.False(t, ok, "Lock should still be held")

	// Released unconditionally after the TTL passes
	now = now.Add(31 * time.Second)
	ok, err = locker.Acquire(ctx, "k", "owner-2", 30*time.Second)
	require.NoError(t, err)
	assert.True(t, ok, "Expired lock should be acquirable")
}

func TestMemoryLocker_OwnerCheckedRelease(t *testing.T) {
	ctx := context.Background()
	locker := NewMemoryLocker()

	now := time.Now()
	locker.now = func() time.Time { return now }

	ok, err := locker.Acquire(ctx, "k", "old-owner", 10*time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	// TTL expires and a newer owner takes over.
	now = now.Add(11 * time.Second)
	ok, err = locker.Acquire(ctx, "k", "new-owner", 10*time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	// The slow old owner's release must not drop the newer owner's lock.
	require.NoError(t, locker.Release(ctx, "k", "old-owner"))

	ok, err = locker.Acquire(ctx, "k", "third-owner", 10*time.Second)
	require.NoError(t, err)
	assert.False(t, ok, "New owner's lock should survive the stale release")

	// The real owner can release it.
	require.NoError(t, locker.Release(ctx, "k", "new-owner"))
	ok, err = locker.Acquire(ctx, "k", "third-owner", 10*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMemoryLocker_AnyHeld(t *testing.T) {
	ctx := context.Background()
	locker := NewMemoryLocker()

	now := time.Now()
	locker.now = func() time.Time { return now }

	held, err := locker.AnyHeld(ctx, KeyPrefix("poll_scores", "pga"))
	require.NoError(t, err)
	assert.False(t, held)

	ok, err := locker.Acquire(ctx, Key("poll_scores", "pga", "1726000000"), "w1", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	held, err = locker.AnyHeld(ctx, KeyPrefix("poll_scores", "pga"))
	require.NoError(t, err)
	assert.True(t, held, "Live poller lock should be visible under the tour prefix")

	held, err = locker.AnyHeld(ctx, KeyPrefix("poll_scores", "euro"))
	require.NoError(t, err)
	assert.False(t, held, "Other tours should not see the lock")

	// Expired locks do not count as held.
	now = now.Add(2 * time.Minute)
	held, err = locker.AnyHeld(ctx, KeyPrefix("poll_scores", "pga"))
	require.NoError(t, err)
	assert.False(t, held)
}
