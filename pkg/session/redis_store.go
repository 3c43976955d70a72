package session

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultPrefix = "session:"

// RedisStore keeps each session as a Redis hash with a sliding expiry.
type RedisStore struct {
	client redis.Cmdable
	prefix string
}

// NewRedisStore constructs a store; an empty prefix falls back to "session:".
func NewRedisStore(client redis.Cmdable, prefix string) *RedisStore {
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) key(id string) string {
	return s.prefix + id
}

// Load fetches every attribute of the session.
func (s *RedisStore) Load(ctx context.Context, id string) (map[string]string, error) {
	if id == "" {
		return nil, ErrSessionNotFound
	}
	values, err := s.client.HGetAll(ctx, s.key(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if len(values) == 0 {
		return nil, ErrSessionNotFound
	}
	return values, nil
}

// Save replaces the stored attributes and refreshes the expiry.
func (s *RedisStore) Save(ctx context.Context, id string, values map[string]string, ttl time.Duration) error {
	key := s.key(id)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		if len(values) == 0 {
			return nil
		}
		args := make([]interface{}, 0, len(values)*2)
		for k, v := range values {
			args = append(args, k, v)
		}
		pipe.HSet(ctx, key, args...)
		if ttl > 0 {
			pipe.Expire(ctx, key, ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// Touch extends the expiry without rewriting attributes.
func (s *RedisStore) Touch(ctx context.Context, id string, ttl time.Duration) error {
	if err := s.client.Expire(ctx, s.key(id), ttl).Err(); err != nil {
		return fmt.Errorf("touch session: %w", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, s.key(id)).Err(); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}
