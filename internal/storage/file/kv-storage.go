package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/iamvkosarev/car-assistant-chat/internal/model"
)

// KVStorage keeps every key in one JSON object on disk. The file is read on
// first access and rewritten on every Set.
type KVStorage struct {
	mu     sync.Mutex
	path   string
	values map[string]string
}

func NewKVStorage(path string) *KVStorage {
	return &KVStorage{
		path: path,
	}
}

func (s *KVStorage) Get(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.load(); err != nil {
		return "", err
	}
	value, ok := s.values[key]
	if !ok {
		return "", model.ErrKeyNotFound
	}
	return value, nil
}

func (s *KVStorage) Set(_ context.Context, key string, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.load(); err != nil {
		return err
	}
	next := make(map[string]string, len(s.values)+1)
	for k, v := range s.values {
		next[k] = v
	}
	next[key] = value
	if err := s.save(next); err != nil {
		return err
	}
	s.values = next
	return nil
}

func (s *KVStorage) load() error {
	if s.values != nil {
		return nil
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.values = make(map[string]string)
			return nil
		}
		return fmt.Errorf("failed to read state file: %w", err)
	}
	values := make(map[string]string)
	if err = json.Unmarshal(data, &values); err != nil {
		return fmt.Errorf("failed to parse state file %s: %w", s.path, err)
	}
	s.values = values
	return nil
}

// save replaces the file with values. The cache is left to the caller so a
// failed write never shows up in later reads.
func (s *KVStorage) save(values map[string]string) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}
	data, err := json.MarshalIndent(values, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp state file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err = tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write state file: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("failed to close state file: %w", err)
	}
	if err = os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("failed to replace state file: %w", err)
	}
	return nil
}
