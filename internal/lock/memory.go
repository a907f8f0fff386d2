package lock

import (
	"context"
	"strings"
	"sync"
	"time"
)

// MemoryLocker implements Locker in process memory with the same semantics
// as the Redis implementation. It is used when Redis is unavailable (a
// single-worker deployment still needs duplicate-trigger protection) and in
// tests.
type MemoryLocker struct {
	mu    sync.Mutex
	locks map[string]memoryLock
	now   func() time.Time
}

type memoryLock struct {
	owner     string
	expiresAt time.Time
}

// NewMemoryLocker creates an empty in-process locker.
func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{
		locks: make(map[string]memoryLock),
		now:   time.Now,
	}
}

func (l *MemoryLocker) Acquire(_ context.Context, key, owner string, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if cur, ok := l.locks[key]; ok && now.Before(cur.expiresAt) {
		return false, nil
	}
	l.locks[key] = memoryLock{owner: owner, expiresAt: now.Add(ttl)}
	return true, nil
}

func (l *MemoryLocker) Release(_ context.Context, key, owner string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if cur, ok := l.locks[key]; ok && cur.owner == owner {
		delete(l.locks, key)
	}
	return nil
}

func (l *MemoryLocker) AnyHeld(_ context.Context, prefix string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	for key, cur := range l.locks {
		if strings.HasPrefix(key, prefix) && now.Before(cur.expiresAt) {
			return true, nil
		}
	}
	return false, nil
}
