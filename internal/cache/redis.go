package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/deusflow/joyfeed/internal/storage"
	"github.com/redis/go-redis/v9"
)

const DefaultRedisKey = "joyfeed:categories"

// kv is the subset of *redis.Client the loader uses.
type kv interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// RedisCategoryLoader shares the category list between processes. A miss or
// a Redis failure falls through to next.
type RedisCategoryLoader struct {
	client kv
	next   CategoryLoader
	key    string
	ttl    time.Duration
	log    *slog.Logger
}

var _ CategoryLoader = (*RedisCategoryLoader)(nil)

func NewRedisCategoryLoader(client *redis.Client, next CategoryLoader, ttl time.Duration, log *slog.Logger) *RedisCategoryLoader {
	return newRedisLoader(client, next, ttl, log)
}

func newRedisLoader(client kv, next CategoryLoader, ttl time.Duration, log *slog.Logger) *RedisCategoryLoader {
	if log == nil {
		log = slog.Default()
	}
	return &RedisCategoryLoader{client: client, next: next, key: DefaultRedisKey, ttl: ttl, log: log}
}

// ConnectRedis parses url (or treats it as host:port) and pings the server.
func ConnectRedis(ctx context.Context, url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		opt = &redis.Options{Addr: url}
	}
	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}
	return client, nil
}

func (r *RedisCategoryLoader) Categories(ctx context.Context) ([]storage.Category, error) {
	data, err := r.client.Get(ctx, r.key).Bytes()
	switch {
	case err == nil:
		var cats []storage.Category
		if jerr := json.Unmarshal(data, &cats); jerr == nil {
			return cats, nil
		}
		r.log.Warn("corrupt category cache entry, reloading", "key", r.key)
	case !errors.Is(err, redis.Nil):
		r.log.Warn("redis category read failed", "error", err)
	}

	cats, err := r.next.Categories(ctx)
	if err != nil {
		return nil, err
	}
	if data, err := json.Marshal(cats); err == nil {
		if err := r.client.Set(ctx, r.key, data, r.ttl).Err(); err != nil {
			r.log.Warn("redis category write failed", "error", err)
		}
	}
	return cats, nil
}

// Invalidate removes the shared entry so every process reloads.
func (r *RedisCategoryLoader) Invalidate(ctx context.Context) error {
	return r.client.Del(ctx, r.key).Err()
}
