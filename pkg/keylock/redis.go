package keylock

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"github.com/nexar-gg/nexar-server/pkg/logger"
)

// ErrLockTimeout is returned when a key stays held past the retry budget.
var ErrLockTimeout = errors.New("keylock: timed out waiting for key")

const lockKeyPrefix = "nexar:lock:"

// unlockScript deletes the key only if it still carries our token, so a
// lock that expired and was re-acquired elsewhere is never released by
// the old holder.
const unlockScript = `if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end`

// RedisLocker serializes per-key work across replicas with SET NX and a
// TTL. Use it when more than one server instance mutates accounts.
type RedisLocker struct {
	client        *redis.Client
	ttl           time.Duration
	retryInterval time.Duration
	maxRetries    int
}

func NewRedisLocker(client *redis.Client) *RedisLocker {
	return &RedisLocker{
		client:        client,
		ttl:           30 * time.Second,
		retryInterval: 100 * time.Millisecond,
		maxRetries:    50,
	}
}

func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	redisKey := lockKeyPrefix + key
	token := uuid.NewString()

	for attempt := 0; attempt < l.maxRetries; attempt++ {
		ok, err := l.client.SetNX(ctx, redisKey, token, l.ttl).Result()
		if err != nil {
			return nil, err
		}
		if ok {
			release := func() {
				if err := l.client.Eval(context.Background(), unlockScript, []string{redisKey}, token).Err(); err != nil {
					logger.Log.WithError(err).WithField("key", key).Warn("Failed to release lock")
				}
			}
			return release, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.retryInterval):
		}
	}
	return nil, ErrLockTimeout
}
