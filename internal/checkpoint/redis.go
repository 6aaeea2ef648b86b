package checkpoint

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/JaimeStill/sdgindex/internal/batch"
)

// Redis stores the checkpoint under a single key.
type Redis struct {
	client *redis.Client
	key    string
}

// NewRedis creates a Redis store from a redis:// URL.
func NewRedis(url, key string) (*Redis, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return &Redis{client: redis.NewClient(opt), key: key}, nil
}

func (r *Redis) Load(ctx context.Context) (*batch.Job, error) {
	data, err := r.client.Get(ctx, r.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get checkpoint: %w", err)
	}
	return decode(data)
}

func (r *Redis) Save(ctx context.Context, job batch.Job) error {
	data, err := encode(job)
	if err != nil {
		return fmt.Errorf("encode checkpoint: %w", err)
	}
	if err := r.client.Set(ctx, r.key, data, 0).Err(); err != nil {
		return fmt.Errorf("set checkpoint: %w", err)
	}
	return nil
}

func (r *Redis) Clear(ctx context.Context) error {
	if err := r.client.Del(ctx, r.key).Err(); err != nil {
		return fmt.Errorf("delete checkpoint: %w", err)
	}
	return nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}
