package presence

import (
	"context"

	"github.com/redis/go-redis/v9"
)

const scanCount = 100

// RedisStore implements SetStore on a Redis server.
type RedisStore struct {
	rdb redis.Cmdable
}

// NewRedisStore returns a SetStore backed by rdb.
func NewRedisStore(rdb redis.Cmdable) *RedisStore {
	return &RedisStore{rdb: rdb}
}

// SAdd runs SADD key member.
func (s *RedisStore) SAdd(ctx context.Context, key, member string) error {
	return s.rdb.SAdd(ctx, key, member).Err()
}

// SRem runs SREM key member.
func (s *RedisStore) SRem(ctx context.Context, key, member string) error {
	return s.rdb.SRem(ctx, key, member).Err()
}

// SCard runs SCARD key.
func (s *RedisStore) SCard(ctx context.Context, key string) (int64, error) {
	return s.rdb.SCard(ctx, key).Result()
}

// SIsMember runs SISMEMBER key member.
func (s *RedisStore) SIsMember(ctx context.Context, key, member string) (bool, error) {
	return s.rdb.SIsMember(ctx, key, member).Result()
}

// SMembers runs SMEMBERS key and sorts the result.
func (s *RedisStore) SMembers(ctx context.Context, key string) ([]string, error) {
	return s.rdb.SMembers(ctx, key).Result()
}

// ScanKeys walks the keyspace with SCAN rather than KEYS so a large
// keyspace never blocks the server.
func (s *RedisStore) ScanKeys(ctx context.Context, pattern string) ([]string, error) {
	var (
		keys   []string
		cursor uint64
	)
	for {
		batch, next, err := s.rdb.Scan(ctx, cursor, pattern, scanCount).Result()
		if err != nil {
			return nil, err
		}
		keys = append(keys, batch...)
		if next == 0 {
			return keys, nil
		}
		cursor = next
	}
}

// HIncrBy runs HINCRBY key field incr.
func (s *RedisStore) HIncrBy(ctx context.Context, key, field string, incr int64) (int64, error) {
	return s.rdb.HIncrBy(ctx, key, field, incr).Result()
}

// HDel runs HDEL key field.
func (s *RedisStore) HDel(ctx context.Context, key, field string) error {
	return s.rdb.HDel(ctx, key, field).Err()
}
