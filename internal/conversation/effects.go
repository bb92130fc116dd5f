package conversation

import (
	"context"

	"github.com/iamvkosarev/car-assistant-chat/internal/model"
	"go.uber.org/zap"
)

type Assistant interface {
	FetchGreeting(ctx context.Context) (string, error)
	SendTurn(ctx context.Context, turn model.Turn) (model.Reply, error)
}

type TokenStore interface {
	CurrentToken() (string, bool)
	SetToken(ctx context.Context, token string)
}

type EffectsDeps struct {
	Assistant Assistant
	Session   TokenStore
	Logger    *zap.Logger
}

// Effects performs the commands emitted by Apply.
type Effects struct {
	EffectsDeps
}

func NewEffects(deps EffectsDeps) *Effects {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &Effects{EffectsDeps: deps}
}

// Run executes cmd and returns the event that reports its outcome, or nil
// when the command has no outcome for the state machine.
func (e *Effects) Run(ctx context.Context, cmd Command) Event {
	switch cmd := cmd.(type) {
	case SendTurn:
		turn := model.Turn{Text: cmd.Text, Language: cmd.Language}
		if token, ok := e.Session.CurrentToken(); ok {
			turn.SessionID = token
		}
		r, err := e.Assistant.SendTurn(ctx, turn)
		if err != nil {
			return RequestFailed{Err: err}
		}
		return ReplyReceived{Reply: r}
	case FetchGreeting:
		text, err := e.Assistant.FetchGreeting(ctx)
		if err != nil {
			return GreetingFailed{Err: err}
		}
		return GreetingLoaded{Text: text}
	case StoreSessionToken:
		e.Session.SetToken(ctx, cmd.Token)
		return nil
	case ReportDiagnostic:
		e.Logger.Warn(cmd.Message, zap.Error(cmd.Err))
		return nil
	default:
		return nil
	}
}
