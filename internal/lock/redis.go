package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// releaseScript deletes the key only when its value still matches the
// owner token. EVAL makes the compare-and-delete atomic.
const releaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`

// RedisLocker implements Locker on a shared Redis instance.
type RedisLocker struct {
	client *redis.Client
}

// NewRedisLocker connects to Redis and verifies the connection.
func NewRedisLocker(ctx context.Context, addr, password string, db int) (*RedisLocker, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	log.Info().Str("addr", addr).Msg("Lock store connected")
	return &RedisLocker{client: client}, nil
}

// Acquire sets the key with SET NX PX, which is atomic on the server.
func (l *RedisLocker) Acquire(ctx context.Context, key, owner string, ttl time.Duration) (bool, error) {
	ok, err := l.client.SetNX(ctx, key, owner, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire lock %s: %w", key, err)
	}
	return ok, nil
}

// Release drops the key only if owner still holds it.
func (l *RedisLocker) Release(ctx context.Context, key, owner string) error {
	res, err := l.client.Eval(ctx, releaseScript, []string{key}, owner).Int64()
	if err != nil {
		return fmt.Errorf("failed to release lock %s: %w", key, err)
	}
	if res == 0 {
		// Either the TTL already expired or a newer owner took over; both
		// are fine, we just must not delete the newer owner's key.
		log.Debug().Str("key", key).Msg("Lock already released or re-owned")
	}
	return nil
}

// AnyHeld scans for live keys under prefix.
func (l *RedisLocker) AnyHeld(ctx context.Context, prefix string) (bool, error) {
	iter := l.client.Scan(ctx, 0, prefix+"*", 10).Iterator()
	if iter.Next(ctx) {
		return true, nil
	}
	if err := iter.Err(); err != nil {
		return false, fmt.Errorf("failed to scan locks %s: %w", prefix, err)
	}
	return false, nil
}

// Close closes the underlying Redis client.
func (l *RedisLocker) Close() error {
	return l.client.Close()
}
