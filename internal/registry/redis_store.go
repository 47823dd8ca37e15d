package registry

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// redisStore is the production Store, grounded on the teacher pack's
// go-redis/redis/v8 usage (aldrin-isaac-newtron's SONiC DB clients),
// adapted from raw hash-field gets/sets to hash-plus-TTL records.
type redisStore struct {
	client *redis.Client
}

func newRedisStore(url string) (*redisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("registry: parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("registry: redis ping: %w", err)
	}

	return &redisStore{client: client}, nil
}

func (r *redisStore) Set(ctx context.Context, key string, fields map[string]string, ttl time.Duration) error {
	pipe := r.client.TxPipeline()

	args := make([]interface{}, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, k, v)
	}

	pipe.Del(ctx, key)
	pipe.HSet(ctx, key, args...)
	pipe.Expire(ctx, key, ttl)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("registry: set %q: %w", key, err)
	}

	return nil
}

func (r *redisStore) HGetAll(ctx context.Context, key string) (map[string]string, bool, error) {
	fields, err := r.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, false, fmt.Errorf("registry: hgetall %q: %w", key, err)
	}

	if len(fields) == 0 {
		return nil, false, nil
	}

	return fields, true, nil
}

func (r *redisStore) HSetField(ctx context.Context, key, field, value string) error {
	if err := r.client.HSet(ctx, key, field, value).Err(); err != nil {
		return fmt.Errorf("registry: hset %q.%q: %w", key, field, err)
	}

	return nil
}

func (r *redisStore) Touch(ctx context.Context, key string, ttl time.Duration) error {
	if err := r.client.Expire(ctx, key, ttl).Err(); err != nil {
		return fmt.Errorf("registry: touch %q: %w", key, err)
	}

	return nil
}

func (r *redisStore) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("registry: delete %q: %w", key, err)
	}

	return nil
}

func (r *redisStore) SAdd(ctx context.Context, set, member string) error {
	if err := r.client.SAdd(ctx, set, member).Err(); err != nil {
		return fmt.Errorf("registry: sadd %q: %w", set, err)
	}

	return nil
}

func (r *redisStore) SRem(ctx context.Context, set, member string) error {
	if err := r.client.SRem(ctx, set, member).Err(); err != nil {
		return fmt.Errorf("registry: srem %q: %w", set, err)
	}

	return nil
}

func (r *redisStore) SMembers(ctx context.Context, set string) ([]string, error) {
	members, err := r.client.SMembers(ctx, set).Result()
	if err != nil {
		return nil, fmt.Errorf("registry: smembers %q: %w", set, err)
	}

	return members, nil
}

func (r *redisStore) Close() error {
	return r.client.Close()
}
