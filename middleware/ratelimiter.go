package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	ginlimiter "github.com/ulule/limiter/v3/drivers/middleware/gin"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	sredis "github.com/ulule/limiter/v3/drivers/store/redis"
)

// RateLimiter limits requests per client IP. Counters live in Redis when a
// client is given so every replica shares them, and in memory otherwise.
func RateLimiter(perMinute int64, rdb *redis.Client) (gin.HandlerFunc, error) {
	rate := limiter.Rate{
		Period: time.Minute,
		Limit:  perMinute,
	}

	store := memory.NewStore()
	if rdb != nil {
		var err error
		store, err = sredis.NewStoreWithOptions(rdb, limiter.StoreOptions{
			Prefix: "visit:ratelimit",
		})
		if err != nil {
			return nil, err
		}
	}

	instance := limiter.New(store, rate)
	return ginlimiter.NewMiddleware(instance), nil
}
