package gparedis

import (
	"context"

	"github.com/go-redis/redis/v8"
	"github.com/lemmego/gpadmin"
)

// DefaultKeyPrefix namespaces sequence keys
const DefaultKeyPrefix = "gpadmin:order:"

// SequenceAllocator hands out order positions from a Redis counter per
// resource. The counter is seeded from the entity count the first time a
// sequence is used, so positions continue after existing rows and two
// concurrent creations never share one.
type SequenceAllocator struct {
	client redis.Cmdable
	prefix string
}

// NewSequenceAllocator creates an allocator on client. An empty prefix uses
// DefaultKeyPrefix.
func NewSequenceAllocator(client redis.Cmdable, prefix string) *SequenceAllocator {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &SequenceAllocator{client: client, prefix: prefix}
}

// Key returns the Redis key of sequence
func (a *SequenceAllocator) Key(sequence string) string {
	return a.prefix + sequence
}

// Next returns the next position of sequence: the entity count on first
// use, then one more on every call.
func (a *SequenceAllocator) Next(ctx context.Context, sequence string, count gpadmin.CountFunc) (int64, error) {
	key := a.Key(sequence)

	exists, err := a.client.Exists(ctx, key).Result()
	if err != nil {
		return 0, convertRedisError(err)
	}
	if exists == 0 {
		n, err := count(ctx)
		if err != nil {
			return 0, err
		}
		// A concurrent seeder may win; either seed equals the count
		if err := a.client.SetNX(ctx, key, n-1, 0).Err(); err != nil {
			return 0, convertRedisError(err)
		}
	}

	next, err := a.client.Incr(ctx, key).Result()
	return next, convertRedisError(err)
}

// Reset forgets sequence so the next call reseeds it from the entity count
func (a *SequenceAllocator) Reset(ctx context.Context, sequence string) error {
	return convertRedisError(a.client.Del(ctx, a.Key(sequence)).Err())
}

var _ gpadmin.OrderAllocator = (*SequenceAllocator)(nil)
