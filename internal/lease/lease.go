// Package lease provides a best-effort single-holder lease on Redis, used to
// keep overlapping sweep and dispatch invocations from running concurrently.
package lease

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the key only when it still holds our token, so an
// expired lease taken over by someone else is never released by us.
const releaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`

// Lease is a single-use lease on one key. Acquire at most once per value.
type Lease struct {
	rdb   *redis.Client
	key   string
	token string
	ttl   time.Duration
}

// New creates a lease on the given key. The TTL bounds how long a crashed
// holder blocks the next run.
func New(rdb *redis.Client, key string, ttl time.Duration) *Lease {
	return &Lease{
		rdb:   rdb,
		key:   key,
		token: uuid.NewString(),
		ttl:   ttl,
	}
}

// Acquire attempts to take the lease. It reports false when another holder
// has it.
func (l *Lease) Acquire(ctx context.Context) (bool, error) {
	ok, err := l.rdb.SetNX(ctx, l.key, l.token, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire lease %s: %w", l.key, err)
	}

	return ok, nil
}

// Release gives the lease back if we still hold it.
func (l *Lease) Release(ctx context.Context) error {
	if err := l.rdb.Eval(ctx, releaseScript, []string{l.key}, l.token).Err(); err != nil {
		return fmt.Errorf("release lease %s: %w", l.key, err)
	}

	return nil
}
