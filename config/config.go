package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"github.com/iamvkosarev/car-assistant-chat/pkg/local"
	"github.com/ilyakaznacheev/cleanenv"
)

const (
	StorageBackendFile   = "file"
	StorageBackendRedis  = "redis"
	StorageBackendMemory = "memory"

	appDirName       = "car-assistant"
	stateFileName    = "state.json"
	tuiLogFileName   = "car-assistant.log"
	exportFileName   = "transcript.html"
	defaultKeyPrefix = "car_assistant_"
)

var (
	ErrUnknownStorageBackend = errors.New("unknown storage backend")
	ErrInvalidBaseURL        = errors.New("invalid assistant base url")
	ErrUnknownLanguage       = errors.New("unknown assistant language")
)

type Assistant struct {
	BaseURL      string `yaml:"base_url" env:"ASSISTANT_BASE_URL" env-default:"http://127.0.0.1:8000"`
	GreetingPath string `yaml:"greeting_path" env:"ASSISTANT_GREETING_PATH" env-default:"/api/greeting"`
	ChatPath     string `yaml:"chat_path" env:"ASSISTANT_CHAT_PATH" env-default:"/chat"`
	Language     string `yaml:"language" env:"ASSISTANT_LANGUAGE"`
}

type Redis struct {
	Endpoint  string `yaml:"endpoint" env:"REDIS_ENDPOINT" env-default:"localhost:6379"`
	Password  string `yaml:"password" env:"REDIS_PASSWORD"`
	DB        int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
	KeyPrefix string `yaml:"key_prefix" env:"REDIS_KEY_PREFIX" env-default:"car_assistant_"`
}

type Storage struct {
	Backend  string `yaml:"backend" env:"STORAGE_BACKEND" env-default:"file"`
	FilePath string `yaml:"file_path" env:"STORAGE_FILE"`
	Redis    Redis  `yaml:"redis"`
}

type Telegram struct {
	TelegramAPIToken  string  `yaml:"api_token" env:"TELEGRAM_APITOKEN"`
	AllowedTelegramID []int64 `yaml:"allowed_ids" env:"ALLOWED_TELEGRAM_ID" env-separator:","`
}

type Log struct {
	Level string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
	File  string `yaml:"file" env:"LOG_FILE"`
}

type TUI struct {
	ExportPath string `yaml:"export_path" env:"TUI_EXPORT_PATH"`
}

type Config struct {
	Assistant Assistant `yaml:"assistant"`
	Storage   Storage   `yaml:"storage"`
	Telegram  Telegram  `yaml:"telegram"`
	Log       Log       `yaml:"log"`
	TUI       TUI       `yaml:"tui"`
}

// LoadConfig reads cfgPath (yaml) and then the environment. An empty cfgPath
// reads the environment only.
func LoadConfig(cfgPath string) (*Config, error) {
	var cfg Config
	if cfgPath != "" {
		if err := cleanenv.ReadConfig(cfgPath, &cfg); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", cfgPath, err)
		}
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("failed to read env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case StorageBackendFile, StorageBackendRedis, StorageBackendMemory:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownStorageBackend, c.Storage.Backend)
	}
	u, err := url.Parse(c.Assistant.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%w: %q", ErrInvalidBaseURL, c.Assistant.BaseURL)
	}
	if _, ok := local.ParseLanguage(c.Assistant.Language); !ok {
		return fmt.Errorf("%w: %q", ErrUnknownLanguage, c.Assistant.Language)
	}
	if c.Storage.Redis.KeyPrefix == "" {
		c.Storage.Redis.KeyPrefix = defaultKeyPrefix
	}
	return nil
}

// StateFilePath is the file backing the "file" storage backend.
func (s Storage) StateFilePath() (string, error) {
	if s.FilePath != "" {
		return s.FilePath, nil
	}
	dir, err := appDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, stateFileName), nil
}

// TUILogFile is where the terminal UI writes its log when no log file is
// configured, so log lines never land on the screen.
func (l Log) TUILogFile() (string, error) {
	if l.File != "" {
		return l.File, nil
	}
	dir, err := appDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, tuiLogFileName), nil
}

// ExportFile is where ctrl+s in the terminal UI writes the HTML transcript.
func (t TUI) ExportFile() (string, error) {
	if t.ExportPath != "" {
		return t.ExportPath, nil
	}
	dir, err := appDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, exportFileName), nil
}

func appDir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve user config dir: %w", err)
	}
	return filepath.Join(base, appDirName), nil
}
