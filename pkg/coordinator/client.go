// Package coordinator is a thin, typed facade over the shared Redis-like
// store used for cross-pod state: per-user queues, distributed locks,
// upload-status records, and one-shot initialization flags. No other
// package may talk to the underlying store directly.
package coordinator

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// Client is the full set of coordinator primitives the core depends on.
// Implementations must make Append+Range+LTrim+PopHead behave as FIFO list
// operations and SetNX atomic across all pods sharing one backing store.
type Client interface {
	// Append adds value to the tail of the list at key.
	Append(ctx context.Context, key string, value []byte) error
	// Range returns elements [start, stop] (inclusive, 0-indexed); stop=-1
	// means "to the end", mirroring Redis LRANGE semantics.
	Range(ctx context.Context, key string, start, stop int64) ([][]byte, error)
	// LTrim keeps only elements [start, stop] (inclusive), discarding the
	// rest.
	LTrim(ctx context.Context, key string, start, stop int64) error
	// LLen returns the length of the list at key.
	LLen(ctx context.Context, key string) (int64, error)
	// Expire refreshes the TTL on key.
	Expire(ctx context.Context, key string, ttl time.Duration) error
	// Del removes key entirely.
	Del(ctx context.Context, key string) error
	// Get returns the value at key and whether it was present.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// SetEX sets key to value with a TTL, unconditionally.
	SetEX(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// SetNX sets key to value with a TTL only if it was absent; returns
	// whether this call was the one that set it.
	SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
	// PopHead atomically returns and removes up to n elements from the head
	// of the list at key, in a single server-side step.
	PopHead(ctx context.Context, key string, n int64) ([][]byte, error)
	// RestoreHead reinserts values at the head of the list at key, in their
	// original order, as a single atomic operation. Used only by the
	// configurable at-least-once path: re-enqueuing a popped-but-undispatched
	// batch after every agent in it failed (see DESIGN.md).
	RestoreHead(ctx context.Context, key string, values [][]byte) error
	// Ping verifies connectivity to the backing store, for health checks.
	Ping(ctx context.Context) error
	// Close releases underlying connections.
	Close() error
}

// popHeadScript implements the original's atomic_pop_messages: read the
// first n elements, then trim them off, as one server-side operation so no
// two pods can observe or remove the same prefix.
var popHeadScript = redis.NewScript(`
local vals = redis.call('LRANGE', KEYS[1], 0, tonumber(ARGV[1]) - 1)
if #vals > 0 then
	redis.call('LTRIM', KEYS[1], tonumber(ARGV[1]), -1)
end
return vals
`)

// RedisClient is the go-redis-backed Client implementation used in
// production; tests exercise it against miniredis (unit) or a containerized
// redis (integration), never against a hand-rolled fake.
type RedisClient struct {
	rdb *redis.Client
}

// NewRedisClient wraps an already-constructed *redis.Client.
func NewRedisClient(rdb *redis.Client) *RedisClient {
	return &RedisClient{rdb: rdb}
}

// Dial constructs a *redis.Client from an address and wraps it.
func Dial(addr string) *RedisClient {
	return NewRedisClient(redis.NewClient(&redis.Options{Addr: addr}))
}

func (c *RedisClient) Append(ctx context.Context, key string, value []byte) error {
	if err := c.rdb.RPush(ctx, key, value).Err(); err != nil {
		return newFault("append", key, FaultTransient, err)
	}
	return nil
}

func (c *RedisClient) Range(ctx context.Context, key string, start, stop int64) ([][]byte, error) {
	vals, err := c.rdb.LRange(ctx, key, start, stop).Result()
	if err != nil {
		return nil, newFault("range", key, FaultTransient, err)
	}
	out := make([][]byte, len(vals))
	for i, v := range vals {
		out[i] = []byte(v)
	}
	return out, nil
}

func (c *RedisClient) LTrim(ctx context.Context, key string, start, stop int64) error {
	if err := c.rdb.LTrim(ctx, key, start, stop).Err(); err != nil {
		return newFault("ltrim", key, FaultTransient, err)
	}
	return nil
}

func (c *RedisClient) LLen(ctx context.Context, key string) (int64, error) {
	n, err := c.rdb.LLen(ctx, key).Result()
	if err != nil {
		return 0, newFault("llen", key, FaultTransient, err)
	}
	return n, nil
}

func (c *RedisClient) Expire(ctx context.Context, key string, ttl time.Duration) error {
	if err := c.rdb.Expire(ctx, key, ttl).Err(); err != nil {
		return newFault("expire", key, FaultTransient, err)
	}
	return nil
}

func (c *RedisClient) Del(ctx context.Context, key string) error {
	if err := c.rdb.Del(ctx, key).Err(); err != nil {
		return newFault("del", key, FaultTransient, err)
	}
	return nil
}

func (c *RedisClient) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, newFault("get", key, FaultTransient, err)
	}
	return val, true, nil
}

func (c *RedisClient) SetEX(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.rdb.Set(ctx, key, value, ttl).Err(); err != nil {
		return newFault("setex", key, FaultTransient, err)
	}
	return nil
}

func (c *RedisClient) SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	ok, err := c.rdb.SetNX(ctx, key, value, ttl).Result()
	if err != nil {
		return false, newFault("setnx", key, FaultTransient, err)
	}
	return ok, nil
}

func (c *RedisClient) PopHead(ctx context.Context, key string, n int64) ([][]byte, error) {
	if n <= 0 {
		return nil, nil
	}
	res, err := popHeadScript.Run(ctx, c.rdb, []string{key}, n).Result()
	if err != nil {
		return nil, newFault("pop_head", key, FaultTransient, err)
	}
	raw, ok := res.([]interface{})
	if !ok {
		return nil, newFault("pop_head", key, FaultPermanent, errors.New("unexpected script result type"))
	}
	out := make([][]byte, len(raw))
	for i, v := range raw {
		switch s := v.(type) {
		case string:
			out[i] = []byte(s)
		case []byte:
			out[i] = s
		default:
			return nil, newFault("pop_head", key, FaultPermanent, errors.New("unexpected script element type"))
		}
	}
	return out, nil
}

func (c *RedisClient) RestoreHead(ctx context.Context, key string, values [][]byte) error {
	if len(values) == 0 {
		return nil
	}
	pipe := c.rdb.TxPipeline()
	for i := len(values) - 1; i >= 0; i-- {
		pipe.LPush(ctx, key, values[i])
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return newFault("restore_head", key, FaultTransient, err)
	}
	return nil
}

func (c *RedisClient) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

func (c *RedisClient) Close() error {
	return c.rdb.Close()
}
