package in_memory

import (
	"context"
	"sync"

	"github.com/iamvkosarev/car-assistant-chat/internal/model"
)

type KVStorage struct {
	mu     sync.RWMutex
	values map[string]string
}

func NewKVStorage() *KVStorage {
	return &KVStorage{
		values: make(map[string]string),
	}
}

func (s *KVStorage) Get(_ context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, ok := s.values[key]
	if !ok {
		return "", model.ErrKeyNotFound
	}
	return value, nil
}

func (s *KVStorage) Set(_ context.Context, key string, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}
