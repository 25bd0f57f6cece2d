package repository

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// The counter and its expiry are set in one script so the first hit of a window
// always carries the TTL.
var fixedWindowScript = redis.NewScript(`
local n = redis.call("INCR", KEYS[1])
if n == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return n
`)

// RedisRateCounter counts hits per key in fixed windows that start at the first hit.
type RedisRateCounter struct {
	client *RedisClient
	prefix string
}

func NewRedisRateCounter(client *RedisClient) *RedisRateCounter {
	return &RedisRateCounter{client: client, prefix: "rl:"}
}

// Incr adds one hit to key's window and returns the count including this hit.
func (r *RedisRateCounter) Incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	return fixedWindowScript.Run(ctx, r.client.Client, []string{r.prefix + key}, window.Milliseconds()).Int64()
}
