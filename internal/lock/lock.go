// Package lock provides the mutual-exclusion primitive that deduplicates
// scheduled task invocations across workers. A lock key with a live TTL is
// held by exactly one owner; expiry releases it unconditionally.
package lock

import (
	"context"
	"strings"
	"time"
)

// Locker is the distributed lock contract. Acquire sets the key only if
// absent, with the given TTL, atomically, and reports whether this caller
// now owns it. Release deletes the key only if the caller still owns it,
// so a slow worker can never drop a lock re-acquired by a newer owner.
type Locker interface {
	Acquire(ctx context.Context, key, owner string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key, owner string) error

	// AnyHeld reports whether any live lock key starts with prefix. The
	// supervisor uses it to check that a poller chain is alive for a tour.
	AnyHeld(ctx context.Context, prefix string) (bool, error)
}

const keyBase = "golfpools:lock"

// Key derives a lock key from a task name and its arguments, so identical
// invocations (a retried or double-fired trigger for the same tour window)
// contend on the same key.
func Key(task string, args ...string) string {
	parts := append([]string{keyBase, task}, args...)
	return strings.Join(parts, ":")
}

// KeyPrefix returns the prefix shared by all lock keys of a task for the
// given leading arguments.
func KeyPrefix(task string, args ...string) string {
	return Key(task, args...) + ":"
}
