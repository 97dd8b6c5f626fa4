package redisStore

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

func (s *Store) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	return s.client.Set(ctx, key, value, expiration).Err()
}

func (s *Store) Get(ctx context.Context, key string) (string, error) {
	return s.client.Get(ctx, key).Result()
}

func (s *Store) Del(ctx context.Context, keys ...string) error {
	return s.client.Del(ctx, keys...).Err()
}

func (s *Store) IsNil(err error) bool {
	return errors.Is(err, redis.Nil)
}

func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	count, err := s.client.Exists(ctx, key).Result()
	return count > 0, err
}

// ListAppend pushes values to the tail of key and refreshes the ttl of every
// key in touch, all in one round trip.
func (s *Store) ListAppend(ctx context.Context, key string, ttl time.Duration, values []interface{}, touch ...string) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, key, values...)
		for _, k := range append([]string{key}, touch...) {
			pipe.Expire(ctx, k, ttl)
		}
		return nil
	})
	return err
}

// ListTail returns the last n entries of key, oldest first. n <= 0 returns
// the whole list.
func (s *Store) ListTail(ctx context.Context, key string, n int64) ([]string, error) {
	start := int64(0)
	if n > 0 {
		start = -n
	}
	return s.client.LRange(ctx, key, start, -1).Result()
}
