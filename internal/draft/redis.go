package draft

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pavelanni/gcsemock/internal/model"
)

// RedisStorage keeps drafts in Redis as JSON values that expire after TTL
// without edits.
type RedisStorage struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// NewRedisStorage wraps a connected client. A zero ttl keeps drafts forever.
func NewRedisStorage(client *redis.Client, ttl time.Duration) *RedisStorage {
	return &RedisStorage{client: client, ttl: ttl, prefix: "draft:"}
}

// ConnectRedis configures a Redis client using the supplied URL.
func ConnectRedis(ctx context.Context, url string) (*redis.Client, error) {
	if url == "" {
		return nil, fmt.Errorf("redis url must not be empty")
	}
	options, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(options)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

func (r *RedisStorage) LoadDraft(ctx context.Context, key string) (*model.Draft, error) {
	raw, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get draft %s: %w", key, err)
	}
	var d model.Draft
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, fmt.Errorf("decode draft %s: %w", key, err)
	}
	return &d, nil
}

func (r *RedisStorage) SaveDraft(ctx context.Context, d model.Draft) error {
	payload, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("encode draft %s: %w", d.Key, err)
	}
	if err := r.client.Set(ctx, r.prefix+d.Key, payload, r.ttl).Err(); err != nil {
		return fmt.Errorf("set draft %s: %w", d.Key, err)
	}
	return nil
}

func (r *RedisStorage) DeleteDraft(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.prefix+key).Err(); err != nil {
		return fmt.Errorf("delete draft %s: %w", key, err)
	}
	return nil
}
