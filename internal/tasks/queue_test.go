package tasks

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startQueue(t *testing.T, workers int) *Queue {
	t.Helper()
	q := NewQueue(workers)
	q.Start(context.Background())
	t.Cleanup(q.Stop)
	return q
}

func TestQueue_RunsTask(t *testing.T) {
	q := startQueue(t, 2)

	done := make(chan struct{})
	q.Enqueue("test", func(ctx context.Context) error {
		close(done)
		return nil
	}, Options{})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("task never ran")
	}
}

func TestQueue_HonorsDelay(t *testing.T) {
	q := startQueue(t, 1)

	start := time.Now()
	ran := make(chan time.Time, 1)
	q.Enqueue("test", func(ctx context.Context) error {
		ran <- time.Now()
		return nil
	}, Options{Delay: 100 * time.Millisecond})

	select {
	case at := <-ran:
		assert.GreaterOrEqual(t, at.Sub(start), 100*time.Millisecond)
	case <-time.After(2 * time.Second):
		t.Fatal("delayed task never ran")
	}
}

func TestQueue_DropsExpiredTask(t *testing.T) {
	q := startQueue(t, 1)

	var ran atomic.Bool
	q.Enqueue("stale", func(ctx context.Context) error {
		ran.Store(true)
		return nil
	}, Options{ExpiresAt: time.Now().Add(-time.Second)})

	// A live task behind it still runs.
	done := make(chan struct{})
	q.Enqueue("live", func(ctx context.Context) error {
		close(done)
		return nil
	}, Options{})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("live task never ran")
	}
	assert.False(t, ran.Load(), "expired task must never fire")
}

func TestQueue_RetriesRetryableErrors(t *testing.T) {
	q := startQueue(t, 1)

	var attempts atomic.Int32
	done := make(chan struct{})
	q.Enqueue("flaky", func(ctx context.Context) error {
		if attempts.Add(1) < 3 {
			return ErrStoreUnavailable
		}
		close(done)
		return nil
	}, Options{MaxRetries: 5, RetryDelay: 10 * time.Millisecond})

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("task never succeeded")
	}
	assert.Equal(t, int32(3), attempts.Load())
}

func TestQueue_DoesNotRetryPermanentErrors(t *testing.T) {
	q := startQueue(t, 1)

	var attempts atomic.Int32
	q.Enqueue("broken", func(ctx context.Context) error {
		attempts.Add(1)
		return errors.New("permanent failure")
	}, Options{MaxRetries: 5, RetryDelay: 10 * time.Millisecond})

	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, int32(1), attempts.Load(), "non-retryable errors run once")
}

func TestQueue_StopsRetryingAtMaxRetries(t *testing.T) {
	q := startQueue(t, 1)

	var attempts atomic.Int32
	q.Enqueue("always-down", func(ctx context.Context) error {
		attempts.Add(1)
		return ErrStoreUnavailable
	}, Options{MaxRetries: 2, RetryDelay: 10 * time.Millisecond})

	time.Sleep(500 * time.Millisecond)
	assert.Equal(t, int32(3), attempts.Load(), "initial attempt plus MaxRetries")
}

func TestQueue_SoftLimitRetriesSameCycle(t *testing.T) {
	q := startQueue(t, 1)

	var attempts atomic.Int32
	done := make(chan struct{})
	q.Enqueue("slow", func(ctx context.Context) error {
		if attempts.Add(1) == 1 {
			// First cycle blocks until the soft limit cancels it.
			<-ctx.Done()
			return ctx.Err()
		}
		close(done)
		return nil
	}, Options{SoftLimit: 20 * time.Millisecond, MaxRetries: 2, RetryDelay: 10 * time.Millisecond})

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("soft-limited task was not retried")
	}
	assert.Equal(t, int32(2), attempts.Load())
}

func TestQueue_HardLimitAbandonsTask(t *testing.T) {
	q := startQueue(t, 1)

	release := make(chan struct{})
	q.Enqueue("wedged", func(ctx context.Context) error {
		<-release
		return nil
	}, Options{HardLimit: 20 * time.Millisecond})

	// The worker must come back for the next task even though the first
	// one is still wedged.
	done := make(chan struct{})
	q.Enqueue("next", func(ctx context.Context) error {
		close(done)
		return nil
	}, Options{})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker never recovered from hard-limited task")
	}
	close(release)
}

func TestRetryable(t *testing.T) {
	require.True(t, Retryable(ErrStoreUnavailable))
	require.True(t, Retryable(ErrSoftTimeLimit))
	require.False(t, Retryable(nil))
	require.False(t, Retryable(errors.New("boom")))
}
