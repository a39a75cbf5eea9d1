// Package lock provides a Redis lease that keeps one firing of a job running
// across all service instances.
package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"travelsync-service/pkg/logger"
)

// KeyPrefix namespaces lease keys
const KeyPrefix = "travelsync:lease:"

// releaseScript deletes the key only while it still holds our token, so an
// expired lease taken over by another instance is left alone.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLease acquires named leases with SET NX PX
type RedisLease struct {
	client *redis.Client
	prefix string
	logger logger.Logger
}

// NewRedisLease creates a lease manager on an existing client
func NewRedisLease(client *redis.Client, logger logger.Logger) *RedisLease {
	return &RedisLease{client: client, prefix: KeyPrefix, logger: logger}
}

// Acquire takes the lease for name for at most ttl. ok is false when another
// holder has it. The returned release function is safe to call after expiry.
func (l *RedisLease) Acquire(ctx context.Context, name string, ttl time.Duration) (release func(context.Context) error, ok bool, err error) {
	key := l.prefix + name
	token := uuid.NewString()

	ok, err = l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("failed to acquire lease %s: %w", name, err)
	}
	if !ok {
		return nil, false, nil
	}

	release = func(ctx context.Context) error {
		if err := releaseScript.Run(ctx, l.client, []string{key}, token).Err(); err != nil {
			return fmt.Errorf("failed to release lease %s: %w", name, err)
		}
		return nil
	}
	return release, true, nil
}

// NewRedisClient connects to the Redis URL and verifies it with a ping
func NewRedisClient(ctx context.Context, url string, logger logger.Logger) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis unavailable at %s: %w", opts.Addr, err)
	}

	logger.Info("Connected to redis", "addr", opts.Addr)
	return client, nil
}
