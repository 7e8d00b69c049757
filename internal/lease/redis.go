package lease

import (
	"context"
	"fmt"
	"time"

	"github.com/BradenHooton/loginsentry/internal/models"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "lease:"

// Shortens the key to the remaining minimum hold, or deletes it, only if we still own it
var releaseScript = redis.NewScript(`
	if redis.call('GET', KEYS[1]) ~= ARGV[1] then
		return 0
	end
	local remaining = tonumber(ARGV[2])
	if remaining > 0 then
		return redis.call('PEXPIRE', KEYS[1], remaining)
	end
	return redis.call('DEL', KEYS[1])
`)

// NewRedisClient connects to redisURL and verifies the connection
func NewRedisClient(redisURL string) (*redis.Client, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	return client, nil
}

// RedisLocker implements Locker with SET NX PX
type RedisLocker struct {
	client redis.Cmdable
	owner  string
}

// NewRedisLocker creates a locker whose tokens are prefixed with owner
func NewRedisLocker(client redis.Cmdable, owner string) *RedisLocker {
	return &RedisLocker{client: client, owner: owner}
}

func (l *RedisLocker) Acquire(ctx context.Context, name string, minHold, maxHold time.Duration) (Lease, bool, error) {
	key := redisKeyPrefix + name
	token := l.owner + ":" + uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, maxHold).Result()
	if err != nil {
		return nil, false, fmt.Errorf("redis lease acquire failed: %w", err)
	}
	if !ok {
		return nil, false, nil
	}

	return &redisLease{
		client:     l.client,
		key:        key,
		token:      token,
		acquiredAt: time.Now(),
		minHold:    minHold,
	}, true, nil
}

type redisLease struct {
	client     redis.Cmdable
	key        string
	token      string
	acquiredAt time.Time
	minHold    time.Duration
}

func (l *redisLease) Release(ctx context.Context) error {
	remaining := l.minHold - time.Since(l.acquiredAt)
	if remaining < 0 {
		remaining = 0
	}

	result, err := releaseScript.Run(ctx, l.client, []string{l.key}, l.token, remaining.Milliseconds()).Int()
	if err != nil {
		return fmt.Errorf("redis lease release failed: %w", err)
	}
	if result == 0 {
		return models.ErrLeaseNotHeld
	}
	return nil
}
