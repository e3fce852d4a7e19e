package kv

import (
	"context"
	"errors"

	"github.com/m-mizutani/goerr/v2"
	"github.com/redis/go-redis/v9"
)

// RedisOptions configures the Redis store
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	// Prefix is prepended to every key so several deployments can share a database
	Prefix string
}

// Redis stores each key as a plain Redis string
type Redis struct {
	client *redis.Client
	prefix string
}

// NewRedis connects and pings the server
func NewRedis(ctx context.Context, opts RedisOptions) (*Redis, error) {
	if opts.Addr == "" {
		return nil, goerr.New("redis address is required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, goerr.Wrap(err, "failed to connect to redis", goerr.V("addr", opts.Addr), goerr.V("db", opts.DB))
	}

	return &Redis{client: client, prefix: opts.Prefix}, nil
}

func (r *Redis) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := r.client.Get(ctx, r.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, goerr.Wrap(err, "failed to get value from redis", goerr.V("key", key))
	}
	return v, true, nil
}

func (r *Redis) Set(ctx context.Context, key, value string) error {
	if err := r.client.Set(ctx, r.prefix+key, value, 0).Err(); err != nil {
		return goerr.Wrap(err, "failed to set value to redis", goerr.V("key", key))
	}
	return nil
}

func (r *Redis) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.prefix+key).Err(); err != nil {
		return goerr.Wrap(err, "failed to delete value from redis", goerr.V("key", key))
	}
	return nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}
