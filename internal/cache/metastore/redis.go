package metastore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisDocKey = "dem_cache"

// RedisBackend stores the same wholesale JSON document under a single
// redis key, for deployments that want the index to survive the local
// filesystem. Artifacts themselves stay on disk.
type RedisBackend struct {
	cli     *redis.Client
	timeout time.Duration
}

func NewRedisBackend(ctx context.Context, addr string) (*RedisBackend, error) {
	cli := redis.NewClient(&redis.Options{Addr: addr})
	if err := cli.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return &RedisBackend{cli: cli, timeout: 5 * time.Second}, nil
}

func (b *RedisBackend) Load() (map[string]Entry, error) {
	ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
	defer cancel()

	raw, err := b.cli.Get(ctx, redisDocKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return map[string]Entry{}, nil
		}
		return nil, fmt.Errorf("redis get %s: %w", redisDocKey, err)
	}
	var entries map[string]Entry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("parse %s: %w", redisDocKey, err)
	}
	if entries == nil {
		entries = map[string]Entry{}
	}
	return entries, nil
}

func (b *RedisBackend) Save(entries map[string]Entry) error {
	raw, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
	defer cancel()
	if err := b.cli.Set(ctx, redisDocKey, raw, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", redisDocKey, err)
	}
	return nil
}

func (b *RedisBackend) Close() error { return b.cli.Close() }
