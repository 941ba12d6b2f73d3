// Package lock provides a redis-backed mutual exclusion lock for batch runs.
package lock

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

const lockReleaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

var (
	ErrNotConfigured = errors.New("lock client not configured")
	ErrEmptyKey      = errors.New("lock key is empty")
	ErrInvalidTTL    = errors.New("lock ttl must be positive")
)

type Locker struct {
	client *redis.Client
	script *redis.Script
}

// NewLocker returns nil when client is nil so callers can treat locking as optional.
func NewLocker(client *redis.Client) *Locker {
	if client == nil {
		return nil
	}
	return &Locker{
		client: client,
		script: redis.NewScript(lockReleaseScript),
	}
}

// TryLock sets key to a random token if absent. The token is required to release.
func (l *Locker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	if l == nil || l.client == nil {
		return "", false, ErrNotConfigured
	}
	if key == "" {
		return "", false, ErrEmptyKey
	}
	if ttl <= 0 {
		return "", false, ErrInvalidTTL
	}

	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return "", false, err
	}
	return token, ok, nil
}

// Release deletes key only if it still holds token.
func (l *Locker) Release(ctx context.Context, key, token string) error {
	if l == nil || l.client == nil {
		return nil
	}
	if key == "" || token == "" {
		return nil
	}
	return l.script.Run(ctx, l.client, []string{key}, token).Err()
}
