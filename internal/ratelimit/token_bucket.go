// Package ratelimit implements a token bucket shared through redis, so
// separate forecast invocations draw from one request budget.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cast"
)

const DefaultKeyPrefix = "ppmkit:forecast:ratelimit"

var ErrInvalidReply = errors.New("invalid token bucket reply")

// Decision is the outcome of one Allow call. RetryAfter is set when the
// request was refused.
type Decision struct {
	Allowed    bool
	Remaining  int64
	RetryAfter time.Duration
}

// takeScript refills the bucket for the time elapsed since the last call and
// then tries to take ARGV[4] tokens. Fractional tokens are kept between calls.
var takeScript = redis.NewScript(`
local capacity = tonumber(ARGV[1])
local rate = tonumber(ARGV[2])
local now = tonumber(ARGV[3])
local cost = tonumber(ARGV[4])
local ttl = tonumber(ARGV[5])

local state = redis.call("HMGET", KEYS[1], "tokens", "updated_ms")
local tokens = tonumber(state[1]) or capacity
local updated = tonumber(state[2]) or now

if now > updated then
  tokens = math.min(capacity, tokens + (now - updated) * rate)
end

local ok = 0
local wait = 0
if tokens >= cost then
  tokens = tokens - cost
  ok = 1
else
  wait = math.ceil((cost - tokens) / rate)
end

redis.call("HSET", KEYS[1], "tokens", tokens, "updated_ms", now)
redis.call("PEXPIRE", KEYS[1], ttl)
return {ok, math.floor(tokens), wait}
`)

// RedisTokenBucket refills capacity tokens per window. Bucket state lives in
// one redis hash per subject and expires after two idle windows.
type RedisTokenBucket struct {
	client      redis.UniversalClient
	keyPrefix   string
	capacity    int64
	refillPerMS float64
	ttl         time.Duration
	now         func() time.Time
}

func NewRedisTokenBucket(client redis.UniversalClient, capacity int, window time.Duration, keyPrefix string) (*RedisTokenBucket, error) {
	switch {
	case client == nil:
		return nil, errors.New("ratelimit: redis client is required")
	case capacity <= 0:
		return nil, fmt.Errorf("ratelimit: capacity %d must be positive", capacity)
	case window <= 0:
		return nil, fmt.Errorf("ratelimit: window %s must be positive", window)
	}

	keyPrefix = strings.TrimSpace(keyPrefix)
	if keyPrefix == "" {
		keyPrefix = DefaultKeyPrefix
	}
	windowMS := max(window.Milliseconds(), 1)

	return &RedisTokenBucket{
		client:      client,
		keyPrefix:   keyPrefix,
		capacity:    int64(capacity),
		refillPerMS: float64(capacity) / float64(windowMS),
		ttl:         2 * window,
		now:         time.Now,
	}, nil
}

// Allow takes one token from the subject's bucket.
func (b *RedisTokenBucket) Allow(ctx context.Context, subject string) (Decision, error) {
	return b.AllowN(ctx, subject, 1)
}

// AllowN takes n tokens at once. A request larger than the capacity can
// never succeed and is refused without touching redis.
func (b *RedisTokenBucket) AllowN(ctx context.Context, subject string, n int) (Decision, error) {
	if n < 1 {
		return Decision{}, fmt.Errorf("ratelimit: token count %d must be positive", n)
	}
	if int64(n) > b.capacity {
		return Decision{RetryAfter: time.Duration(math.MaxInt64)}, nil
	}

	reply, err := takeScript.Run(ctx, b.client,
		[]string{b.key(subject)},
		b.capacity,
		b.refillPerMS,
		b.now().UnixMilli(),
		n,
		b.ttl.Milliseconds(),
	).Slice()
	if err != nil {
		return Decision{}, fmt.Errorf("ratelimit: run token bucket script: %w", err)
	}
	return parseReply(reply)
}

// key lowercases the subject; the forecast client keys buckets by API host.
func (b *RedisTokenBucket) key(subject string) string {
	subject = strings.ToLower(strings.TrimSpace(subject))
	if subject == "" {
		subject = "default"
	}
	return b.keyPrefix + ":" + subject
}

func parseReply(reply []any) (Decision, error) {
	if len(reply) != 3 {
		return Decision{}, fmt.Errorf("%w: %d values", ErrInvalidReply, len(reply))
	}
	var fields [3]int64
	for i, v := range reply {
		n, err := toInt64(v)
		if err != nil {
			return Decision{}, fmt.Errorf("%w: value %d: %v", ErrInvalidReply, i, err)
		}
		fields[i] = n
	}
	return Decision{
		Allowed:    fields[0] == 1,
		Remaining:  fields[1],
		RetryAfter: time.Duration(fields[2]) * time.Millisecond,
	}, nil
}

// toInt64 accepts the integer, float and string forms redis replies take
// across protocol versions.
func toInt64(in any) (int64, error) {
	switch in.(type) {
	case int64, int, float64, string:
		return cast.ToInt64E(in)
	default:
		return 0, fmt.Errorf("unsupported type %T", in)
	}
}
