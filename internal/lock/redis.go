package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// releaseScript deletes the key only while it still holds our token, so a
// lock that expired and was taken by another replica is left alone.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Redis is a SET NX PX lock shared by every engine replica.
type Redis struct {
	client redis.UniversalClient
	ttl    time.Duration
	prefix string
}

// NewRedis builds a lock on client. ttl bounds how long a crashed holder keeps the key.
func NewRedis(client redis.UniversalClient, ttl time.Duration) *Redis {
	return &Redis{client: client, ttl: ttl, prefix: "lock:"}
}

func (r *Redis) Acquire(ctx context.Context, key string) (func(), error) {
	token := uuid.NewString()
	ok, err := r.client.SetNX(ctx, r.prefix+key, token, r.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("redis setnx %s: %w", key, err)
	}
	if !ok {
		return nil, ErrLocked
	}

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := releaseScript.Run(ctx, r.client, []string{r.prefix + key}, token).Err(); err != nil {
			log.WithError(err).WithField("key", key).Warn("redis lock release failed, waiting for ttl")
		}
	}, nil
}

// Ping checks the connection at startup.
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
