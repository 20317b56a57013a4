package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const lockPrefix = "interview-engine:lock:"

// releaseScript deletes a lock only while it still holds our token
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisProvider implements Provider for Redis
type RedisProvider struct {
	BaseProvider
	client *redis.Client
}

// NewRedisProvider creates a new Redis provider
func NewRedisProvider(ctx context.Context, address, password string, db int) (*RedisProvider, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisProvider{
		BaseProvider: BaseProvider{serviceType: "redis"},
		client:       client,
	}, nil
}

// HealthCheck verifies Redis connectivity
func (p *RedisProvider) HealthCheck(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

// Locker returns a distributed lock backed by this connection
func (p *RedisProvider) Locker() *RedisLocker {
	return NewRedisLocker(p.client)
}

// Close closes the Redis connection
func (p *RedisProvider) Close() error {
	return p.client.Close()
}

// RedisLocker guards evaluation keys with SET NX and a TTL. Each acquisition stores a
// random token, and only the holder of that token can release the key.
type RedisLocker struct {
	client redis.Cmdable
}

// NewRedisLocker creates a RedisLocker on client
func NewRedisLocker(client redis.Cmdable) *RedisLocker {
	return &RedisLocker{client: client}
}

// Acquire takes key for ttl and returns the release token. The token is empty when
// another holder has the key.
func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (string, error) {
	token, err := lockToken()
	if err != nil {
		return "", err
	}

	ok, err := l.client.SetNX(ctx, lockPrefix+key, token, ttl).Result()
	if err != nil {
		return "", fmt.Errorf("failed to acquire lock %s: %w", key, err)
	}
	if !ok {
		return "", nil
	}
	return token, nil
}

// Release frees key if it is still held under token
func (l *RedisLocker) Release(ctx context.Context, key, token string) error {
	if token == "" {
		return nil
	}

	n, err := releaseScript.Run(ctx, l.client, []string{lockPrefix + key}, token).Int()
	if err != nil {
		return fmt.Errorf("failed to release lock %s: %w", key, err)
	}
	if n == 0 {
		slog.Debug("lock expired before release", "key", key)
	}
	return nil
}

func lockToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate lock token: %w", err)
	}
	return hex.EncodeToString(b), nil
}
