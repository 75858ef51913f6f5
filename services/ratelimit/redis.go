package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/trezcool/takharruj/core"
)

const redisTimeout = 250 * time.Millisecond

const rateLimitScript = `
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
if current > tonumber(ARGV[2]) then
  return 0
end
return 1
`

// RedisLimiter shares the fixed window between API instances. It fails open when redis is unreachable.
type RedisLimiter struct {
	client *redis.Client
	prefix string
	script *redis.Script
	logger core.Logger
}

var _ Limiter = (*RedisLimiter)(nil)

func NewRedisLimiter(client *redis.Client, prefix string, logger core.Logger) *RedisLimiter {
	return &RedisLimiter{
		client: client,
		prefix: prefix,
		script: redis.NewScript(rateLimitScript),
		logger: logger,
	}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) bool {
	if l == nil || l.client == nil {
		return true
	}
	if key == "" || limit <= 0 || window <= 0 {
		return true
	}
	if l.prefix != "" {
		key = l.prefix + ":" + key
	}
	ttl := window.Milliseconds()
	if ttl <= 0 {
		ttl = 1
	}
	ctx, cancel := context.WithTimeout(ctx, redisTimeout)
	defer cancel()
	allowed, err := l.script.Run(ctx, l.client, []string{key}, ttl, limit).Int64()
	if err != nil {
		if l.logger != nil {
			l.logger.Warn("rate limiter: redis unavailable, letting request through: "+err.Error(),
				err, map[string]interface{}{"rate_limit_key": key})
		}
		return true
	}
	return allowed == 1
}

// NewRedisClient connects to addr and pings it.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}
