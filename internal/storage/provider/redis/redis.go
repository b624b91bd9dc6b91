package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/labstack/gommon/log"
	storagetypes "github.com/nckslvrmn/stash/internal/storage/types"
	goredis "github.com/redis/go-redis/v9"
)

const keyPrefix = "stash:secret:"

// RedisAPI defines the subset of the go-redis client we use
type RedisAPI interface {
	SetNX(ctx context.Context, key string, value any, expiration time.Duration) *goredis.BoolCmd
	Get(ctx context.Context, key string) *goredis.StringCmd
	Del(ctx context.Context, keys ...string) *goredis.IntCmd
}

// RedisStore keeps each secret as a JSON string. Keys never expire.
type RedisStore struct {
	client RedisAPI
	closer func() error
}

func NewRedisStore(ctx context.Context, url string) (*RedisStore, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	client := goredis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	log.Infof("Redis store initialized at %s", opts.Addr)
	return &RedisStore{client: client, closer: client.Close}, nil
}

func (r *RedisStore) Write(ctx context.Context, secret *storagetypes.Secret) error {
	data, err := json.Marshal(secret)
	if err != nil {
		return fmt.Errorf("failed to encode secret: %w", err)
	}

	created, err := r.client.SetNX(ctx, keyPrefix+secret.ID, data, 0).Result()
	if err != nil {
		return fmt.Errorf("failed to store secret in redis: %w", err)
	}
	if !created {
		return storagetypes.ErrDuplicate
	}

	return nil
}

func (r *RedisStore) ReadByID(ctx context.Context, id string) (*storagetypes.Secret, error) {
	data, err := r.client.Get(ctx, keyPrefix+id).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get secret from redis: %w", err)
	}

	var secret storagetypes.Secret
	if err := json.Unmarshal(data, &secret); err != nil {
		return nil, fmt.Errorf("invalid secret value: %w", err)
	}

	return &secret, nil
}

func (r *RedisStore) DeleteByID(ctx context.Context, id string) (bool, error) {
	n, err := r.client.Del(ctx, keyPrefix+id).Result()
	if err != nil {
		return false, fmt.Errorf("failed to delete secret from redis: %w", err)
	}
	return n > 0, nil
}

func (r *RedisStore) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer()
}
