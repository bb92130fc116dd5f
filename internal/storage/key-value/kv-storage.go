package key_value

import (
	"context"
	"errors"
	"fmt"

	"github.com/iamvkosarev/car-assistant-chat/internal/model"
	"github.com/redis/go-redis/v9"
)

type KVStorage struct {
	rdb       *redis.Client
	keyPrefix string
}

func NewKVStorage(rdb *redis.Client, keyPrefix string) *KVStorage {
	return &KVStorage{
		rdb:       rdb,
		keyPrefix: keyPrefix,
	}
}

func (s *KVStorage) Get(ctx context.Context, key string) (string, error) {
	value, err := s.rdb.Get(ctx, s.prefixed(key)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", model.ErrKeyNotFound
		}
		return "", fmt.Errorf("failed to get %s: %w", key, err)
	}
	return value, nil
}

func (s *KVStorage) Set(ctx context.Context, key string, value string) error {
	if err := s.rdb.Set(ctx, s.prefixed(key), value, 0).Err(); err != nil {
		return fmt.Errorf("failed to save %s: %w", key, err)
	}
	return nil
}

func (s *KVStorage) prefixed(key string) string {
	return fmt.Sprintf("%s%s", s.keyPrefix, key)
}
