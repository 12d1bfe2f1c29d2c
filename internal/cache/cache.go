// Package cache wraps the process-wide Redis client behind a small manager
// used for privilege bundles and other tenant-scoped values.  The manager is
// constructed once at startup and closed on shutdown; callers do explicit
// cache-aside reads and writes with keys built by the typed helpers below,
// never derived implicitly from call arguments.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrMiss is returned by Get when the key does not exist.  For the privilege
// cache a miss is an authentication failure, not a signal to fall back to an
// empty bundle.
var ErrMiss = errors.New("cache miss")

// ErrUnavailable is returned when Redis itself cannot be reached.  Handlers
// should translate this into an HTTP 503 response.
var ErrUnavailable = errors.New("cache unavailable")

// Manager owns the Redis client for the lifetime of the process.
type Manager struct {
	rdb *redis.Client
}

func New(rdb *redis.Client) *Manager { return &Manager{rdb: rdb} }

// Close releases the underlying client.
func (m *Manager) Close() error { return m.rdb.Close() }

// Get returns the raw string stored under key.  Absence is ErrMiss; any
// transport failure is ErrUnavailable.
func (m *Manager) Get(ctx context.Context, key string) (string, error) {
	v, err := m.rdb.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrMiss
		}
		return "", fmt.Errorf("%w: get %s: %v", ErrUnavailable, key, err)
	}
	return v, nil
}

// Set stores value under key with the given TTL.  A zero TTL stores the key
// without expiration.
func (m *Manager) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := m.rdb.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("%w: set %s: %v", ErrUnavailable, key, err)
	}
	return nil
}

// Delete removes key.  Deleting an absent key is not an error.
func (m *Manager) Delete(ctx context.Context, key string) error {
	if err := m.rdb.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("%w: del %s: %v", ErrUnavailable, key, err)
	}
	return nil
}

// Exists reports whether key is present.
func (m *Manager) Exists(ctx context.Context, key string) (bool, error) {
	n, err := m.rdb.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("%w: exists %s: %v", ErrUnavailable, key, err)
	}
	return n > 0, nil
}

// Expire resets the TTL of an existing key.
func (m *Manager) Expire(ctx context.Context, key string, ttl time.Duration) error {
	if err := m.rdb.Expire(ctx, key, ttl).Err(); err != nil {
		return fmt.Errorf("%w: expire %s: %v", ErrUnavailable, key, err)
	}
	return nil
}

// TTL returns the remaining lifetime of key.
func (m *Manager) TTL(ctx context.Context, key string) (time.Duration, error) {
	d, err := m.rdb.TTL(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: ttl %s: %v", ErrUnavailable, key, err)
	}
	return d, nil
}

// TenantKey builds the generic tenant-scoped key "{prefix}:{user}:{tenant}".
func TenantKey(prefix, userID, tenantID string) string {
	return fmt.Sprintf("%s:%s:%s", prefix, userID, tenantID)
}

// PrivilegeKey builds the privilege-bundle key
// "userprivilege:{tenant}:{user}".  Super-admin bundles use the literal
// "None" in the tenant position.
func PrivilegeKey(tenantID, userID string) string {
	return fmt.Sprintf("userprivilege:%s:%s", tenantID, userID)
}
