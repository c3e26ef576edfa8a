// Package lock serializes ledger mutations. Every record, edit, delete and
// recalculation runs while holding the engine key.
package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// ErrLockTimeout is returned when the lock could not be acquired in time
var ErrLockTimeout = errors.New("lock acquisition timed out")

// Locker grants exclusive access to a key until unlock is called
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// Local is an in-process Locker. Keys share one slot per Local.
type Local struct {
	sem  chan struct{}
	wait time.Duration
}

// NewLocal creates an in-process locker; wait <= 0 waits until ctx is done
func NewLocal(wait time.Duration) *Local {
	return &Local{
		sem:  make(chan struct{}, 1),
		wait: wait,
	}
}

func (l *Local) Lock(ctx context.Context, key string) (func(), error) {
	var timeout <-chan time.Time
	if l.wait > 0 {
		t := time.NewTimer(l.wait)
		defer t.Stop()
		timeout = t.C
	}

	select {
	case l.sem <- struct{}{}:
		return func() { <-l.sem }, nil
	case <-timeout:
		return nil, fmt.Errorf("%w: %s", ErrLockTimeout, key)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// releaseScript deletes the key only if it still holds our token
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// refreshScript extends the key only if it still holds our token
var refreshScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// Redis is a Locker shared by every process talking to the same Redis
type Redis struct {
	client *redis.Client
	ttl    time.Duration
	wait   time.Duration
	retry  time.Duration
}

// NewRedis creates a distributed locker. ttl bounds how long a crashed
// holder can block others; a live holder refreshes it every ttl/3.
func NewRedis(client *redis.Client, ttl, wait time.Duration) *Redis {
	return &Redis{
		client: client,
		ttl:    ttl,
		wait:   wait,
		retry:  50 * time.Millisecond,
	}
}

func (l *Redis) Lock(ctx context.Context, key string) (func(), error) {
	token := uuid.NewString()

	if l.wait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.wait)
		defer cancel()
	}

	ticker := time.NewTicker(l.retry)
	defer ticker.Stop()

	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil && ctx.Err() == nil {
			return nil, fmt.Errorf("acquire %s: %w", key, err)
		}
		if ok {
			return l.hold(key, token), nil
		}

		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return nil, fmt.Errorf("%w: %s", ErrLockTimeout, key)
			}
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// hold keeps key alive while the caller works and returns its unlock func
func (l *Redis) hold(key, token string) func() {
	stop := make(chan struct{})
	done := make(chan struct{})
	if l.ttl <= 0 {
		// no expiry, nothing to refresh
		close(done)
	} else {
		go l.refresh(key, token, stop, done)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			<-done

			// release must not depend on the caller's (possibly cancelled) ctx
			releaseCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			releaseScript.Run(releaseCtx, l.client, []string{key}, token)
		})
	}
}

// refresh extends the key every ttl/3 until stop is closed or the token is gone
func (l *Redis) refresh(key, token string, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	interval := l.ttl / 3
	ticker := time.NewTicker(max(interval, time.Millisecond))
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), l.ttl)
			kept, err := refreshScript.Run(ctx, l.client, []string{key}, token, l.ttl.Milliseconds()).Int()
			cancel()
			if err != nil {
				log.Error().Err(err).Str("key", key).Msg("failed to refresh lock")
				continue
			}
			if kept == 0 {
				log.Warn().Str("key", key).Msg("lock lost before release")
				return
			}
		}
	}
}
