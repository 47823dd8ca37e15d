// Package registry implements C2, the ephemeral registry: TTL-backed
// storage for stream advertisements and negotiated sessions, which must
// survive a process restart only as long as Redis does, never the catalog.
package registry

import (
	"context"
	"time"
)

// Store is the five primitives the spec's ephemeral registry needs, plus
// the three index-set primitives used to answer "list all streams of type
// T" and "list all sessions for stream S" without a table scan.
type Store interface {
	Set(ctx context.Context, key string, fields map[string]string, ttl time.Duration) error
	HGetAll(ctx context.Context, key string) (map[string]string, bool, error)
	HSetField(ctx context.Context, key, field, value string) error
	Touch(ctx context.Context, key string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error

	SAdd(ctx context.Context, set, member string) error
	SRem(ctx context.Context, set, member string) error
	SMembers(ctx context.Context, set string) ([]string, error)

	Close() error
}

// New returns a Redis-backed Store when redisURL is non-empty, otherwise
// the in-process map + sweeper fallback (§9: "any map + sweeper suffices"
// when no external Redis is configured).
func New(redisURL string) (Store, error) {
	if redisURL == "" {
		return newMemStore(), nil
	}

	return newRedisStore(redisURL)
}
