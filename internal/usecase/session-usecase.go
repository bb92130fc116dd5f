package usecase

import (
	"context"
	"errors"
	"sync"

	"github.com/iamvkosarev/car-assistant-chat/internal/model"
	"go.uber.org/zap"
)

const SessionKey = "session_id"

type KVStorage interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string) error
}

type SessionUsecaseDeps struct {
	Storage KVStorage
	Logger  *zap.Logger
}

// SessionUsecase owns the session token issued by the assistant service.
// When the storage fails it keeps the token in memory for the rest of its
// life and never touches the storage again.
type SessionUsecase struct {
	SessionUsecaseDeps
	key string

	mu       sync.Mutex
	token    string
	degraded bool
}

// NewSessionUsecase reads the token stored under key once.
func NewSessionUsecase(ctx context.Context, deps SessionUsecaseDeps, key string) *SessionUsecase {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	s := &SessionUsecase{
		SessionUsecaseDeps: deps,
		key:                key,
	}
	token, err := deps.Storage.Get(ctx, key)
	switch {
	case err == nil:
		s.token = token
	case errors.Is(err, model.ErrKeyNotFound):
	default:
		s.degrade(err)
	}
	return s
}

func (s *SessionUsecase) CurrentToken() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token, s.token != ""
}

func (s *SessionUsecase) SetToken(ctx context.Context, token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if token == "" || token == s.token {
		return
	}
	s.token = token
	if s.degraded {
		return
	}
	if err := s.Storage.Set(ctx, s.key, token); err != nil {
		s.degrade(err)
	}
}

// Durable reports whether the token is still being written to storage.
func (s *SessionUsecase) Durable() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.degraded
}

func (s *SessionUsecase) degrade(err error) {
	s.degraded = true
	s.Logger.Warn("session storage unavailable, keeping token in memory", zap.String("key", s.key), zap.Error(err))
}
