package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/iamvkosarev/car-assistant-chat/config"
	"github.com/iamvkosarev/car-assistant-chat/internal/app"
	"github.com/iamvkosarev/car-assistant-chat/internal/model"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	cfgPath string
	envFile string

	cfg *config.Config

	errTurnFailed   = errors.New("the assistant did not answer")
	errUnknownTheme = errors.New("unknown theme")
)

var rootCmd = &cobra.Command{
	Use:   "car-assistant",
	Short: "Chat with the Mousaid car assistant",
	Long: `car-assistant is a chat client for the Mousaid car assistant service.

Run without arguments to start the interactive terminal chat.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := loadEnvFile(envFile); err != nil {
			return err
		}
		var err error
		cfg, err = config.LoadConfig(cfgPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		return nil
	},
	RunE: runChat,
}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start the interactive terminal chat",
	Args:  cobra.NoArgs,
	RunE:  runChat,
}

var telegramCmd = &cobra.Command{
	Use:   "telegram",
	Short: "Serve the assistant to Telegram chats",
	Args:  cobra.NoArgs,
	RunE:  runTelegram,
}

var sendCmd = &cobra.Command{
	Use:   "send <text...>",
	Short: "Send one message and print the answer",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSend,
}

var greetingCmd = &cobra.Command{
	Use:   "greeting",
	Short: "Print the assistant greeting",
	Args:  cobra.NoArgs,
	RunE:  runGreeting,
}

var themeCmd = &cobra.Command{
	Use:       "theme [light|dark|toggle]",
	Short:     "Print or change the display theme",
	Args:      cobra.MaximumNArgs(1),
	ValidArgs: []string{"light", "dark", "toggle"},
	RunE:      runTheme,
}

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Print the stored session token",
	Args:  cobra.NoArgs,
	RunE:  runSession,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "path to a yaml config file")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "path to a .env file (default .env if present)")

	rootCmd.AddCommand(chatCmd, telegramCmd, sendCmd, greetingCmd, themeCmd, sessionCmd)
}

// loadEnvFile loads path, or ./.env when path is empty and the file exists.
func loadEnvFile(path string) error {
	if path == "" {
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load .env: %w", err)
		}
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
}

// withApp builds the app with a logger writing to logPath (stderr when empty)
// and closes both after fn returns.
func withApp(logPath string, fn func(a *app.App) error) error {
	logger, err := app.NewLogger(cfg.Log, logPath)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	a, err := app.New(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Warn("failed to close storage", zap.Error(err))
		}
	}()
	return fn(a)
}

func runChat(cmd *cobra.Command, args []string) error {
	logPath, err := cfg.Log.TUILogFile()
	if err != nil {
		return err
	}
	ctx, cancel := signalContext(cmd)
	defer cancel()
	return withApp(logPath, func(a *app.App) error {
		return a.RunTUI(ctx)
	})
}

func runTelegram(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext(cmd)
	defer cancel()
	return withApp(cfg.Log.File, func(a *app.App) error {
		return a.RunTelegram(ctx)
	})
}

func runSend(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext(cmd)
	defer cancel()
	return withApp(cfg.Log.File, func(a *app.App) error {
		msg, err := a.Send(ctx, strings.Join(args, " "))
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), msg.Content)
		if msg.Kind == model.MessageKindError {
			return errTurnFailed
		}
		return nil
	})
}

func runGreeting(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext(cmd)
	defer cancel()
	return withApp(cfg.Log.File, func(a *app.App) error {
		if text, ok := a.Greeting(ctx); ok {
			fmt.Fprintln(cmd.OutOrStdout(), text)
		}
		return nil
	})
}

func runTheme(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	return withApp(cfg.Log.File, func(a *app.App) error {
		prefs := a.Preferences(ctx)
		if len(args) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), prefs.Theme())
			return nil
		}
		switch args[0] {
		case "toggle":
			fmt.Fprintln(cmd.OutOrStdout(), prefs.ToggleTheme(ctx))
		case string(model.ThemeLight), string(model.ThemeDark):
			theme := model.ParseTheme(args[0])
			prefs.SetTheme(ctx, theme)
			fmt.Fprintln(cmd.OutOrStdout(), theme)
		default:
			return fmt.Errorf("%w: %q", errUnknownTheme, args[0])
		}
		return nil
	})
}

func runSession(cmd *cobra.Command, args []string) error {
	return withApp(cfg.Log.File, func(a *app.App) error {
		token, ok := a.Session(cmd.Context()).CurrentToken()
		if !ok {
			fmt.Fprintln(cmd.OutOrStdout(), "no session")
			return nil
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	})
}
