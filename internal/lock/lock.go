// Package lock serializes signals for the same instrument across processes.
package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"signal-relay-go/internal/config"
	"signal-relay-go/internal/id"

	"github.com/redis/go-redis/v9"
)

// ErrNotAcquired is returned when the lock stays held past the wait budget.
var ErrNotAcquired = errors.New("lock not acquired")

// Locker hands out per-key locks. The returned release func is safe to call more than once.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// Noop is used when no lock backend is configured. Signals are not coordinated.
type Noop struct{}

func (Noop) Acquire(context.Context, string) (func(), error) {
	return func() {}, nil
}

// New returns a Redis locker when cfg names an address, otherwise Noop.
func New(cfg config.Lock) Locker {
	if cfg.RedisAddr == "" {
		return Noop{}
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	return NewRedisLocker(client, cfg.TTL, cfg.Wait)
}

// releaseScript deletes the key only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// RedisLocker implements Locker with SET NX and a token-checked delete.
type RedisLocker struct {
	client       redis.UniversalClient
	ttl          time.Duration
	wait         time.Duration
	pollInterval time.Duration
}

// ensure RedisLocker implements the interface
var _ Locker = (*RedisLocker)(nil)

// NewRedisLocker creates a locker on an existing client.
func NewRedisLocker(client redis.UniversalClient, ttl, wait time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &RedisLocker{client: client, ttl: ttl, wait: wait, pollInterval: 100 * time.Millisecond}
}

// Acquire blocks until key is free, the wait budget is spent or ctx ends.
func (l *RedisLocker) Acquire(ctx context.Context, key string) (func(), error) {
	key = "signal-relay:lock:" + key
	token := id.New()

	deadline := time.Now().Add(l.wait)
	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire lock %s: %w", key, err)
		}
		if ok {
			released := false
			return func() {
				if released {
					return
				}
				released = true
				// The caller's context may already be done on the error path.
				releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = releaseScript.Run(releaseCtx, l.client, []string{key}, token).Err()
			}, nil
		}

		if time.Now().After(deadline) {
			return nil, fmt.Errorf("%w: %s", ErrNotAcquired, key)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.pollInterval):
		}
	}
}
