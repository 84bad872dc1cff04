package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"txservice/internal/directive"
)

// RedisConfig configures the Redis-backed store.
type RedisConfig struct {
	URL       string        `koanf:"url"`
	KeyPrefix string        `koanf:"key_prefix"`
	TTL       time.Duration `koanf:"ttl"`
}

// Redis keeps each scope in one hash. Values are JSON encoded so numbers
// and strings survive the round trip; counters are plain integers so HINCRBY
// works on them.
//
// The global hash is shared by every user of the same prefix. The local hash
// is suffixed with a run id (see ForRun) so concurrent runs do not see each
// other's local variables.
type Redis struct {
	client *redis.Client
	prefix string
	run    string
	ttl    time.Duration
}

// NewRedis connects using a redis:// URL.
func NewRedis(cfg RedisConfig) (*Redis, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("store: redis url: %w", err)
	}
	return NewRedisWithClient(redis.NewClient(opts), cfg), nil
}

func NewRedisWithClient(client *redis.Client, cfg RedisConfig) *Redis {
	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "txservice:"
	}
	return &Redis{client: client, prefix: prefix, ttl: cfg.TTL}
}

// ForRun returns a view of the store whose local scope is private to id.
func (r *Redis) ForRun(id string) *Redis {
	c := *r
	c.run = id
	return &c
}

func (r *Redis) Ping(ctx context.Context) error { return r.client.Ping(ctx).Err() }

func (r *Redis) Close() error { return r.client.Close() }

func (r *Redis) key(scope directive.StoreScope) (string, error) {
	switch scope {
	case directive.ScopeGlobal:
		return r.prefix + "global", nil
	case directive.ScopeLocal:
		if r.run == "" {
			return r.prefix + "local", nil
		}
		return r.prefix + "local:" + r.run, nil
	}
	return "", fmt.Errorf("store: unknown scope %q", scope)
}

func (r *Redis) Get(ctx context.Context, name string) (any, bool, error) {
	for _, scope := range []directive.StoreScope{directive.ScopeLocal, directive.ScopeGlobal} {
		key, _ := r.key(scope)
		raw, err := r.client.HGet(ctx, key, name).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, false, fmt.Errorf("store: get %q: %w", name, err)
		}
		v, err := decode(raw)
		if err != nil {
			return nil, false, fmt.Errorf("store: decode %q: %w", name, err)
		}
		return v, true, nil
	}
	return nil, false, nil
}

func (r *Redis) Set(ctx context.Context, scope directive.StoreScope, name string, value any) error {
	key, err := r.key(scope)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("store: encode %q: %w", name, err)
	}
	_, err = r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, key, name, string(raw))
		r.expire(ctx, p, key)
		return nil
	})
	if err != nil {
		return fmt.Errorf("store: set %q: %w", name, err)
	}
	return nil
}

func (r *Redis) Increment(ctx context.Context, scope directive.StoreScope, name string, delta int64) (int64, error) {
	key, err := r.key(scope)
	if err != nil {
		return 0, err
	}
	var incr *redis.IntCmd
	_, err = r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		incr = p.HIncrBy(ctx, key, name, delta)
		r.expire(ctx, p, key)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("store: increment %q: %w", name, err)
	}
	return incr.Val(), nil
}

func (r *Redis) Reset(ctx context.Context, scope directive.StoreScope) error {
	key, err := r.key(scope)
	if err != nil {
		return err
	}
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("store: reset %s: %w", scope, err)
	}
	return nil
}

func (r *Redis) Keys(ctx context.Context) ([]string, error) {
	seen := map[string]struct{}{}
	for _, scope := range []directive.StoreScope{directive.ScopeLocal, directive.ScopeGlobal} {
		key, _ := r.key(scope)
		names, err := r.client.HKeys(ctx, key).Result()
		if err != nil {
			return nil, fmt.Errorf("store: keys: %w", err)
		}
		for _, n := range names {
			seen[n] = struct{}{}
		}
	}
	return sortedKeys(seen), nil
}

func (r *Redis) expire(ctx context.Context, p redis.Pipeliner, key string) {
	if r.ttl > 0 {
		p.Expire(ctx, key, r.ttl)
	}
}

// decode turns stored JSON back into a value, keeping integers as int64.
func decode(raw string) (any, error) {
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if n, ok := v.(json.Number); ok {
		if i, err := n.Int64(); err == nil {
			return i, nil
		}
		return n.Float64()
	}
	return v, nil
}
