package usecase

import (
	"context"
	"errors"
	"sync"

	"github.com/iamvkosarev/car-assistant-chat/internal/model"
	"go.uber.org/zap"
)

const ThemeKey = "theme"

type PreferenceUsecaseDeps struct {
	Storage KVStorage
	Logger  *zap.Logger
}

// PreferenceUsecase holds the light/dark display flag. It shares the storage
// with the session token but nothing else.
type PreferenceUsecase struct {
	PreferenceUsecaseDeps

	mu       sync.Mutex
	theme    model.Theme
	degraded bool
}

func NewPreferenceUsecase(ctx context.Context, deps PreferenceUsecaseDeps) *PreferenceUsecase {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	p := &PreferenceUsecase{
		PreferenceUsecaseDeps: deps,
		theme:                 model.ThemeLight,
	}
	raw, err := deps.Storage.Get(ctx, ThemeKey)
	switch {
	case err == nil:
		p.theme = model.ParseTheme(raw)
	case errors.Is(err, model.ErrKeyNotFound):
	default:
		p.degrade(err)
	}
	return p
}

func (p *PreferenceUsecase) Theme() model.Theme {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.theme
}

func (p *PreferenceUsecase) SetTheme(ctx context.Context, theme model.Theme) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.theme = theme
	if p.degraded {
		return
	}
	if err := p.Storage.Set(ctx, ThemeKey, string(theme)); err != nil {
		p.degrade(err)
	}
}

func (p *PreferenceUsecase) ToggleTheme(ctx context.Context) model.Theme {
	next := p.Theme().Toggle()
	p.SetTheme(ctx, next)
	return next
}

func (p *PreferenceUsecase) degrade(err error) {
	p.degraded = true
	p.Logger.Warn("preference storage unavailable, keeping theme in memory", zap.Error(err))
}
