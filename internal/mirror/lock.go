package mirror

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const lockPrefix = "mangamirror:chapter-lock:"

func lockKey(chapterID string) string { return lockPrefix + chapterID }

// Locker serialises work on one chapter. The returned func releases the lock
// and is safe to call once.
type Locker interface {
	Lock(ctx context.Context, key string) (func(), error)
}

// processLocker backs every Pipeline and Sweeper built without a Locker, so
// a sweep and a refresh of the same chapter in one process never overlap.
var processLocker = NewLocalLocker()

// LocalLocker is a per-process keyed mutex.
type LocalLocker struct {
	mu   sync.Mutex
	held map[string]chan struct{}
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: map[string]chan struct{}{}}
}

func (l *LocalLocker) Lock(ctx context.Context, key string) (func(), error) {
	for {
		l.mu.Lock()
		ch, busy := l.held[key]
		if !busy {
			done := make(chan struct{})
			l.held[key] = done
			l.mu.Unlock()

			var once sync.Once
			return func() {
				once.Do(func() {
					l.mu.Lock()
					delete(l.held, key)
					l.mu.Unlock()
					close(done)
				})
			}, nil
		}
		l.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

var ErrLockTimeout = errors.New("lock wait timed out")

const (
	DefaultLockTTL  = 5 * time.Minute
	defaultLockPoll = 250 * time.Millisecond
	defaultLockWait = 2 * time.Minute
)

// releaseScript deletes the key only while it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker is a SET NX PX lock shared by every process talking to the
// same Redis. TTL bounds how long a crashed holder blocks others.
type RedisLocker struct {
	client *redis.Client
	ttl    time.Duration
	poll   time.Duration
	wait   time.Duration
	log    *slog.Logger
}

func NewRedisLocker(client *redis.Client, ttl time.Duration, log *slog.Logger) *RedisLocker {
	if ttl <= 0 {
		ttl = DefaultLockTTL
	}
	if log == nil {
		log = slog.Default()
	}
	return &RedisLocker{client: client, ttl: ttl, poll: defaultLockPoll, wait: defaultLockWait, log: log}
}

func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	token := uuid.NewString()
	deadline := time.Now().Add(l.wait)

	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("redis lock %s: %w", key, err)
		}
		if ok {
			break
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("redis lock %s: %w", key, ErrLockTimeout)
		}

		t := time.NewTimer(l.poll)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return nil, ctx.Err()
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			rctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := releaseScript.Run(rctx, l.client, []string{key}, token).Err(); err != nil {
				l.log.Warn("redis unlock failed", "key", key, "err", err)
			}
		})
	}, nil
}

// NewRedisClient parses a redis:// URL and pings the server.
func NewRedisClient(ctx context.Context, redisURL string, log *slog.Logger) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("redis: invalid URL: %w", err)
	}
	opts.PoolSize = 10
	opts.MinIdleConns = 1
	opts.DialTimeout = 3 * time.Second
	opts.ReadTimeout = 2 * time.Second
	opts.WriteTimeout = 2 * time.Second

	client := redis.NewClient(opts)

	pctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis: ping: %w", err)
	}

	if log != nil {
		log.Info("redis connected", "addr", opts.Addr)
	}
	return client, nil
}
