package guard

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the key only when it still carries the caller's
// token, so an expired hold taken over by another instance is left alone.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Redis is a Guard shared by every instance talking to the same Redis.
type Redis struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

var _ Guard = (*Redis)(nil)

// NewRedis creates a guard storing holds under prefix+key with the given ttl.
func NewRedis(client *redis.Client, prefix string, ttl time.Duration) *Redis {
	return &Redis{client: client, prefix: prefix, ttl: ttl}
}

// Acquire sets the key with NX and a PX expiry.
func (r *Redis) Acquire(ctx context.Context, key string) (ReleaseFunc, error) {
	k := r.prefix + key
	token := uuid.New().String()

	ok, err := r.client.SetNX(ctx, k, token, r.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("guard: acquire %s: %w", k, err)
	}
	if !ok {
		return nil, ErrHeld
	}

	return func(ctx context.Context) error {
		if err := releaseScript.Run(ctx, r.client, []string{k}, token).Err(); err != nil {
			return fmt.Errorf("guard: release %s: %w", k, err)
		}
		return nil
	}, nil
}
