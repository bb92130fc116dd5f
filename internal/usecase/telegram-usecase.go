package usecase

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"unicode/utf16"
	"unicode/utf8"

	api "github.com/OvyFlash/telegram-bot-api"
	"github.com/iamvkosarev/car-assistant-chat/config"
	"github.com/iamvkosarev/car-assistant-chat/internal/conversation"
	"github.com/iamvkosarev/car-assistant-chat/internal/model"
	"github.com/iamvkosarev/car-assistant-chat/pkg/local"
	"github.com/sourcegraph/conc"
	"go.uber.org/zap"
)

const (
	MessageUserNoAccess           = "You are not allowed to use this bot"
	MessageCommandHelp            = "Ask me anything about your car. Use /language to choose the reply language."
	MessageCommandUnknown         = "I don't know that command"
	MessageSelectLanguage         = "Select the reply language"
	MessageSelectedLanguageFormat = "Reply language: %s"
	MessageUnknownLanguage        = "Unknown language"
	MessageEmptyReply             = "(empty reply)"

	CommandStart    = "start"
	CommandHelp     = "help"
	CommandLanguage = "language"

	callbackLanguagePrefix = "lang:"
	sessionKeyFormat       = "telegram_%d_session_id"
	// Telegram counts the limit in UTF-16 code units.
	maxMessageLength = 4096
)

// TelegramBot is the part of *api.BotAPI the bridge uses.
type TelegramBot interface {
	Send(c api.Chattable) (api.Message, error)
	Request(c api.Chattable) (*api.APIResponse, error)
	GetUpdatesChan(config api.UpdateConfig) api.UpdatesChannel
	StopReceivingUpdates()
}

type TelegramUsecaseDeps struct {
	Assistant conversation.Assistant
	Storage   KVStorage
	Bot       TelegramBot
	Logger    *zap.Logger
}

// TelegramUsecase bridges Telegram chats to the assistant service. Every chat
// gets its own conversation driver and its own session token.
type TelegramUsecase struct {
	TelegramUsecaseDeps
	language     local.Language
	allowedUsers map[int64]struct{}

	mu       sync.Mutex
	sessions map[int64]*chatSession
	wg       *conc.WaitGroup
}

type chatSession struct {
	driver *conversation.Driver

	mu           sync.Mutex
	sent         int
	typing       bool
	wantGreeting bool
}

func NewTelegramUsecase(cfg config.Telegram, language local.Language, deps TelegramUsecaseDeps) (
	*TelegramUsecase,
	error,
) {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	allowedUsers := make(map[int64]struct{}, len(cfg.AllowedTelegramID))
	for _, id := range cfg.AllowedTelegramID {
		allowedUsers[id] = struct{}{}
	}

	_, err := deps.Bot.Request(
		api.NewSetMyCommands(
			[]api.BotCommand{
				{
					Command:     CommandHelp,
					Description: "Get help",
				},
				{
					Command:     CommandLanguage,
					Description: "Choose the reply language",
				},
			}...,
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to set bot commands: %w", err)
	}

	return &TelegramUsecase{
		TelegramUsecaseDeps: deps,
		language:            language,
		allowedUsers:        allowedUsers,
		sessions:            make(map[int64]*chatSession),
		wg:                  conc.NewWaitGroup(),
	}, nil
}

func SessionKeyForChat(chatID int64) string {
	return fmt.Sprintf(sessionKeyFormat, chatID)
}

// Run polls updates until ctx is done, then waits for every chat driver to
// stop.
func (t *TelegramUsecase) Run(ctx context.Context) error {
	u := api.NewUpdate(0)
	u.Timeout = 60

	updates := t.Bot.GetUpdatesChan(u)
	defer t.wg.Wait()

	for {
		select {
		case <-ctx.Done():
			t.Bot.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			t.handleUpdate(ctx, update)
		}
	}
}

func (t *TelegramUsecase) handleUpdate(ctx context.Context, update api.Update) {
	if update.Message != nil {
		if err := t.handleMessage(ctx, update); err != nil {
			t.Logger.Error("error handling message", zap.Error(err))
		}
	}
	if update.CallbackQuery != nil {
		if err := t.handleCallbackQuery(ctx, update); err != nil {
			t.Logger.Error("error handling callback query", zap.Error(err))
		}
	}
}

func (t *TelegramUsecase) handleMessage(ctx context.Context, update api.Update) error {
	chatID := update.Message.Chat.ID

	if !t.allowed(chatID) {
		t.sendMessageAndHandleErr(chatID, MessageUserNoAccess)
		return nil
	}

	if update.Message.IsCommand() {
		return t.handleCommand(ctx, chatID, update.Message.Command())
	}
	t.handleText(ctx, chatID, update.Message.Text)
	return nil
}

func (t *TelegramUsecase) handleCommand(ctx context.Context, chatID int64, command string) error {
	switch command {
	case CommandStart:
		t.sendGreeting(t.session(ctx, chatID), chatID)
	case CommandHelp:
		t.sendMessageAndHandleErr(chatID, MessageCommandHelp)
	case CommandLanguage:
		if err := t.sendSelectLanguageKeyboard(chatID); err != nil {
			return fmt.Errorf("failed to send select language keyboard: %w", err)
		}
	default:
		t.sendMessageAndHandleErr(chatID, MessageCommandUnknown)
	}
	return nil
}

// handleText submits one turn. While a turn is pending the driver drops the
// submission and the user gets no answer.
func (t *TelegramUsecase) handleText(ctx context.Context, chatID int64, text string) {
	t.session(ctx, chatID).driver.Submit(text)
}

func (t *TelegramUsecase) handleCallbackQuery(ctx context.Context, update api.Update) error {
	chatID := update.CallbackQuery.Message.Chat.ID
	callbackQueryID := update.CallbackQuery.ID
	data := update.CallbackQuery.Data
	callback := api.NewCallback(callbackQueryID, data)
	if _, err := t.Bot.Request(callback); err != nil {
		return fmt.Errorf("failed to request callback: %w", err)
	}
	if !t.allowed(chatID) {
		t.sendMessageAndHandleErr(chatID, MessageUserNoAccess)
		return nil
	}
	t.selectLanguage(ctx, chatID, data)
	return nil
}

func (t *TelegramUsecase) selectLanguage(ctx context.Context, chatID int64, data string) {
	code, ok := strings.CutPrefix(data, callbackLanguagePrefix)
	if !ok {
		t.sendMessageAndHandleErr(chatID, MessageUnknownLanguage)
		return
	}
	language, ok := local.ParseLanguage(code)
	if !ok {
		t.sendMessageAndHandleErr(chatID, MessageUnknownLanguage)
		return
	}
	t.session(ctx, chatID).driver.SelectLanguage(language)
	t.sendMessageAndHandleErr(chatID, fmt.Sprintf(MessageSelectedLanguageFormat, language.Label()))
}

func (t *TelegramUsecase) allowed(chatID int64) bool {
	if len(t.allowedUsers) == 0 {
		return true
	}
	_, ok := t.allowedUsers[chatID]
	return ok
}

// session returns the chat's driver, starting it on first use.
func (t *TelegramUsecase) session(ctx context.Context, chatID int64) *chatSession {
	t.mu.Lock()
	defer t.mu.Unlock()
	if s, ok := t.sessions[chatID]; ok {
		return s
	}

	logger := t.Logger.With(zap.Int64("chat_id", chatID))
	tokens := NewSessionUsecase(
		ctx, SessionUsecaseDeps{
			Storage: t.Storage,
			Logger:  logger,
		}, SessionKeyForChat(chatID),
	)
	effects := conversation.NewEffects(
		conversation.EffectsDeps{
			Assistant: t.Assistant,
			Session:   tokens,
			Logger:    logger,
		},
	)
	s := &chatSession{driver: conversation.NewDriver(effects, t.language)}
	s.driver.Subscribe(
		func(state conversation.State) {
			t.publish(chatID, s, state)
		},
	)
	t.sessions[chatID] = s
	t.wg.Go(
		func() {
			if err := s.driver.Run(ctx); err != nil {
				logger.Error("conversation driver stopped", zap.Error(err))
			}
		},
	)
	return s
}

// publish mirrors new transcript entries into the chat. User entries are
// skipped: Telegram already shows what the user typed.
func (t *TelegramUsecase) publish(chatID int64, s *chatSession, state conversation.State) {
	s.mu.Lock()
	fresh := state.Transcript.Since(s.sent)
	s.sent = state.Transcript.Len()
	startTyping := state.Pending() && !s.typing
	s.typing = state.Pending()
	var greeting string
	if s.wantGreeting && state.Greeting != "" {
		greeting = state.Greeting
		s.wantGreeting = false
	}
	s.mu.Unlock()

	if greeting != "" {
		t.sendText(chatID, greeting)
	}
	for _, msg := range fresh {
		if msg.Kind == model.MessageKindUser {
			continue
		}
		t.sendText(chatID, msg.Content)
	}
	if startTyping {
		if _, err := t.Bot.Request(api.NewChatAction(chatID, api.ChatTyping)); err != nil {
			t.Logger.Warn("failed to send chat action", zap.Int64("chat_id", chatID), zap.Error(err))
		}
	}
}

// sendGreeting answers /start with the greeting, or arranges for it to be
// sent once the fetch completes. A failed fetch sends nothing.
func (t *TelegramUsecase) sendGreeting(s *chatSession, chatID int64) {
	s.mu.Lock()
	greeting := s.driver.State().Greeting
	if greeting == "" {
		s.wantGreeting = true
	}
	s.mu.Unlock()
	if greeting != "" {
		t.sendText(chatID, greeting)
	}
}

func (t *TelegramUsecase) sendSelectLanguageKeyboard(chatID int64) error {
	msg := api.NewMessage(chatID, MessageSelectLanguage)
	const maxButtonsInRow = 3
	inlineRows := make([][]api.InlineKeyboardButton, 0)
	inlineButtons := make([]api.InlineKeyboardButton, 0)
	for _, option := range local.Options() {
		if len(inlineButtons) >= maxButtonsInRow {
			inlineRows = append(inlineRows, inlineButtons)
			inlineButtons = make([]api.InlineKeyboardButton, 0)
		}
		inlineButtons = append(
			inlineButtons,
			api.NewInlineKeyboardButtonData(option.Label, callbackLanguagePrefix+string(option.Language)),
		)
	}
	inlineRows = append(inlineRows, inlineButtons)
	msg.ReplyMarkup = api.NewInlineKeyboardMarkup(inlineRows...)
	if _, err := t.Bot.Send(msg); err != nil {
		return fmt.Errorf("failed to send message to bot: %w", err)
	}
	return nil
}

// sendText sends assistant text in as many messages as the length limit
// requires. Telegram rejects blank messages, so blank text is replaced.
func (t *TelegramUsecase) sendText(chatID int64, text string) {
	chunks := splitMessage(text, maxMessageLength)
	if len(chunks) == 0 {
		chunks = []string{MessageEmptyReply}
	}
	for _, chunk := range chunks {
		t.sendMessageAndHandleErr(chatID, chunk)
	}
}

// splitMessage cuts text into chunks of at most limit UTF-16 code units,
// preferring to cut after a newline. Blank chunks are dropped.
func splitMessage(text string, limit int) []string {
	var chunks []string
	for text != "" {
		cut, units := len(text), 0
		for i, r := range text {
			n := utf16.RuneLen(r)
			if n < 1 {
				n = 1
			}
			if units+n > limit {
				cut = i
				break
			}
			units += n
		}
		if cut < len(text) {
			if nl := strings.LastIndexByte(text[:cut], '\n'); nl > 0 {
				cut = nl + 1
			}
		}
		if cut == 0 {
			_, cut = utf8.DecodeRuneInString(text)
		}
		if chunk := text[:cut]; strings.TrimSpace(chunk) != "" {
			chunks = append(chunks, chunk)
		}
		text = text[cut:]
	}
	return chunks
}

func (t *TelegramUsecase) sendMessageAndHandleErr(chatID int64, message string) api.Message {
	msg, err := t.sendMessage(chatID, message)
	if err != nil {
		t.Logger.Warn("failed to send new message to bot", zap.Int64("chat_id", chatID), zap.Error(err))
	}
	return msg
}

func (t *TelegramUsecase) sendMessage(chatID int64, message string) (api.Message, error) {
	return t.sendToBot(api.NewMessage(chatID, message))
}

func (t *TelegramUsecase) sendToBot(c api.Chattable) (api.Message, error) {
	return t.Bot.Send(c)
}
