package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	api "github.com/OvyFlash/telegram-bot-api"
	"github.com/iamvkosarev/car-assistant-chat/config"
	"github.com/iamvkosarev/car-assistant-chat/internal/conversation"
	"github.com/iamvkosarev/car-assistant-chat/internal/model"
	"github.com/iamvkosarev/car-assistant-chat/internal/storage/file"
	in_memory "github.com/iamvkosarev/car-assistant-chat/internal/storage/in-memory"
	key_value "github.com/iamvkosarev/car-assistant-chat/internal/storage/key-value"
	"github.com/iamvkosarev/car-assistant-chat/internal/tui"
	"github.com/iamvkosarev/car-assistant-chat/internal/usecase"
	"github.com/iamvkosarev/car-assistant-chat/pkg/local"
	"github.com/redis/go-redis/v9"
	"github.com/sourcegraph/conc"
	"go.uber.org/zap"
)

var (
	ErrMissingTelegramToken = errors.New("telegram api token is not set")
	ErrEmptyMessage         = errors.New("message is empty")
)

// App holds the wiring shared by every command.
type App struct {
	Logger    *zap.Logger
	Storage   usecase.KVStorage
	Assistant *usecase.AssistantUsecase

	cfg      *config.Config
	language local.Language
	close    func() error
}

func New(cfg *config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	storage, closeStorage, err := newStorage(cfg.Storage)
	if err != nil {
		return nil, err
	}
	assistant, err := usecase.NewAssistantUsecase(cfg.Assistant, nil)
	if err != nil {
		_ = closeStorage()
		return nil, fmt.Errorf("failed to create assistant client: %w", err)
	}
	language, _ := local.ParseLanguage(cfg.Assistant.Language)

	logger.Debug(
		"app configured",
		zap.String("storage", cfg.Storage.Backend),
		zap.String("assistant", cfg.Assistant.BaseURL),
		zap.String("language", string(language)),
	)
	return &App{
		Logger:    logger,
		Storage:   storage,
		Assistant: assistant,
		cfg:       cfg,
		language:  language,
		close:     closeStorage,
	}, nil
}

func (a *App) Close() error {
	return a.close()
}

func newStorage(cfg config.Storage) (usecase.KVStorage, func() error, error) {
	noop := func() error { return nil }
	switch cfg.Backend {
	case config.StorageBackendFile:
		path, err := cfg.StateFilePath()
		if err != nil {
			return nil, nil, fmt.Errorf("failed to resolve state file: %w", err)
		}
		return file.NewKVStorage(path), noop, nil
	case config.StorageBackendRedis:
		rdb := redis.NewClient(
			&redis.Options{
				Addr:     cfg.Redis.Endpoint,
				Password: cfg.Redis.Password,
				DB:       cfg.Redis.DB,
			},
		)
		return key_value.NewKVStorage(rdb, cfg.Redis.KeyPrefix), rdb.Close, nil
	case config.StorageBackendMemory:
		return in_memory.NewKVStorage(), noop, nil
	default:
		return nil, nil, fmt.Errorf("%w: %q", config.ErrUnknownStorageBackend, cfg.Backend)
	}
}

func (a *App) Session(ctx context.Context) *usecase.SessionUsecase {
	return usecase.NewSessionUsecase(
		ctx, usecase.SessionUsecaseDeps{
			Storage: a.Storage,
			Logger:  a.Logger,
		}, usecase.SessionKey,
	)
}

func (a *App) Preferences(ctx context.Context) *usecase.PreferenceUsecase {
	return usecase.NewPreferenceUsecase(
		ctx, usecase.PreferenceUsecaseDeps{
			Storage: a.Storage,
			Logger:  a.Logger,
		},
	)
}

func (a *App) effects(ctx context.Context) *conversation.Effects {
	return conversation.NewEffects(
		conversation.EffectsDeps{
			Assistant: a.Assistant,
			Session:   a.Session(ctx),
			Logger:    a.Logger,
		},
	)
}

func (a *App) RunTUI(ctx context.Context) error {
	exportPath, err := a.cfg.TUI.ExportFile()
	if err != nil {
		return fmt.Errorf("failed to resolve export file: %w", err)
	}
	return tui.Run(
		ctx, tui.Deps{
			Effects:     a.effects(ctx),
			Preferences: a.Preferences(ctx),
			Logger:      a.Logger,
			ExportPath:  exportPath,
		}, a.language,
	)
}

func (a *App) RunTelegram(ctx context.Context) error {
	if a.cfg.Telegram.TelegramAPIToken == "" {
		return ErrMissingTelegramToken
	}
	bot, err := api.NewBotAPI(a.cfg.Telegram.TelegramAPIToken)
	if err != nil {
		return fmt.Errorf("failed to create new bot: %w", err)
	}
	a.Logger.Info("authorized on telegram", zap.String("account", bot.Self.UserName))

	telegramUsecase, err := usecase.NewTelegramUsecase(
		a.cfg.Telegram, a.language, usecase.TelegramUsecaseDeps{
			Assistant: a.Assistant,
			Storage:   a.Storage,
			Bot:       bot,
			Logger:    a.Logger,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to create telegram usecase: %w", err)
	}
	return telegramUsecase.Run(ctx)
}

// Send runs a single turn through a conversation driver and returns the entry
// that answered it: a bot message, or an error message.
func (a *App) Send(ctx context.Context, text string) (model.Message, error) {
	if strings.TrimSpace(text) == "" {
		return model.Message{}, ErrEmptyMessage
	}

	driver := conversation.NewDriver(a.effects(ctx), a.language)
	answered := make(chan model.Message, 1)
	driver.Subscribe(
		func(state conversation.State) {
			if state.Pending() {
				return
			}
			last, ok := state.Transcript.Last()
			if !ok || last.Kind == model.MessageKindUser {
				return
			}
			select {
			case answered <- last:
			default:
			}
		},
	)

	runCtx, cancel := context.WithCancel(ctx)
	wg := conc.NewWaitGroup()
	wg.Go(
		func() {
			if err := driver.Run(runCtx); err != nil {
				a.Logger.Error("conversation driver stopped", zap.Error(err))
			}
		},
	)
	defer func() {
		cancel()
		wg.Wait()
	}()

	driver.Submit(text)
	select {
	case msg := <-answered:
		return msg, nil
	case <-ctx.Done():
		return model.Message{}, ctx.Err()
	}
}

// Greeting fetches the greeting once. A failure is logged and reported as no
// greeting.
func (a *App) Greeting(ctx context.Context) (string, bool) {
	text, err := a.Assistant.FetchGreeting(ctx)
	if err != nil {
		a.Logger.Warn("failed to fetch greeting", zap.Error(err))
		return "", false
	}
	return text, text != ""
}

// NewLogger builds a production zap logger at cfg.Level. Output goes to path,
// or to stderr when path is empty.
func NewLogger(cfg config.Log, path string) (*zap.Logger, error) {
	zapCfg := zap.NewProductionConfig()
	level, err := zap.ParseAtomicLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("failed to parse log level: %w", err)
	}
	zapCfg.Level = level
	if path != "" {
		if err = os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create log dir: %w", err)
		}
		zapCfg.OutputPaths = []string{path}
		zapCfg.ErrorOutputPaths = []string{path}
	}
	logger, err := zapCfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger, nil
}
