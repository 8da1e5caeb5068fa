package visit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// InFlightTTL bounds how long a crashed request can hold a visit.
const InFlightTTL = 30 * time.Second

// Locker serializes mutations of one visit. Acquire returns ErrInFlight when
// another request holds the key.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

type redisLocker struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisLocker builds an advisory lock on SET NX with a TTL.
func NewRedisLocker(client *redis.Client) Locker {
	return &redisLocker{client: client, ttl: InFlightTTL}
}

// releaseScript deletes the key only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

func (l *redisLocker) Acquire(ctx context.Context, key string) (func(), error) {
	redisKey := fmt.Sprintf("visit:inflight:%s", key)
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, redisKey, token, l.ttl).Result()
	if err != nil {
		return nil, &TransientError{Op: "acquire visit lock", Err: err}
	}
	if !ok {
		return nil, ErrInFlight
	}
	return func() {
		_ = releaseScript.Run(context.Background(), l.client, []string{redisKey}, token).Err()
	}, nil
}

type nopLocker struct{}

// NopLocker never blocks. Used when Redis is not configured.
func NopLocker() Locker { return nopLocker{} }

func (nopLocker) Acquire(context.Context, string) (func(), error) {
	return func() {}, nil
}
