package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"FinanceFlow/internal/domain"
)

// RedisStore keeps one JSON string per item under prefix+id.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

var _ Backend = (*RedisStore)(nil)

// OpenRedis parses url, pings the server and returns a store. ttl <= 0 keeps keys forever.
func OpenRedis(ctx context.Context, url, prefix string, ttl time.Duration) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return NewRedisStore(client, prefix, ttl), nil
}

// NewRedisStore wraps an existing client.
func NewRedisStore(client *redis.Client, prefix string, ttl time.Duration) *RedisStore {
	if ttl < 0 {
		ttl = 0
	}
	return &RedisStore{client: client, prefix: prefix, ttl: ttl}
}

func (r *RedisStore) Name() string {
	return "redis"
}

func (r *RedisStore) key(id string) string {
	return r.prefix + id
}

func (r *RedisStore) Get(ctx context.Context, id string) (domain.Annotation, bool, error) {
	raw, err := r.client.Get(ctx, r.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.Annotation{}, false, nil
	}
	if err != nil {
		return domain.Annotation{}, false, fmt.Errorf("redis get: %w", err)
	}

	var annotation domain.Annotation
	if err := json.Unmarshal(raw, &annotation); err != nil {
		return domain.Annotation{}, false, fmt.Errorf("decode annotation %s: %w", id, err)
	}
	return annotation, true, nil
}

func (r *RedisStore) Put(ctx context.Context, id string, annotation domain.Annotation) error {
	payload, err := json.Marshal(annotation)
	if err != nil {
		return fmt.Errorf("encode annotation: %w", err)
	}
	if err := r.client.Set(ctx, r.key(id), payload, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}
