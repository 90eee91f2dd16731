package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/maltedev/tramite-watcher/internal/models"
)

// RedisKV is the subset of the redis client used by RedisStore.
type RedisKV interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// RedisStore keeps the status under a single key. SET replaces the value atomically.
type RedisStore struct {
	client RedisKV
	key    string
}

func NewRedisStore(client RedisKV, key string) *RedisStore {
	return &RedisStore{client: client, key: key}
}

func (s *RedisStore) Load(ctx context.Context) (string, bool, error) {
	status, err := s.client.Get(ctx, s.key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("%w: redis get %s: %w", models.ErrPersistence, s.key, err)
	}
	status = strings.TrimSpace(status)
	return status, status != "", nil
}

func (s *RedisStore) Save(ctx context.Context, status string) error {
	if err := s.client.Set(ctx, s.key, strings.TrimSpace(status), 0).Err(); err != nil {
		return fmt.Errorf("%w: redis set %s: %w", models.ErrPersistence, s.key, err)
	}
	return nil
}
