package tasks

import (
	"errors"

	"golfpools/worker/internal/feed"
)

// ErrSoftTimeLimit marks a cycle that ran past its soft execution limit.
// The queue retries the whole cycle from scratch after a short delay.
var ErrSoftTimeLimit = errors.New("soft time limit exceeded")

// ErrStoreUnavailable wraps persisted-state failures so the queue knows
// the write can be retried with backoff.
var ErrStoreUnavailable = errors.New("store unavailable")

// Retryable reports whether a task error is worth re-enqueueing: transient
// feed failures, unreachable stores and soft timeouts are; permanent feed
// rejections and everything else are not.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrSoftTimeLimit) || errors.Is(err, ErrStoreUnavailable) {
		return true
	}
	var tmp *feed.TemporaryError
	return errors.As(err, &tmp)
}
