// Package conversation is the client-side chat state machine. Apply is pure;
// the network and storage work it asks for is returned as commands and run by
// Effects, and the results come back as events.
package conversation

import (
	"errors"
	"strings"

	"github.com/iamvkosarev/car-assistant-chat/internal/model"
	"github.com/iamvkosarev/car-assistant-chat/internal/transcript"
	"github.com/iamvkosarev/car-assistant-chat/pkg/local"
)

const (
	MessageRateLimitFallback = "You have exceeded your daily quota for the Gemini API. Please try again tomorrow or upgrade your plan."
	MessageConnectionFailed  = "Error: Could not connect to the chatbot. Please ensure the backend is running."
)

var (
	ErrStaleOutcome = errors.New("outcome received while no turn is pending")
)

type Phase string

const (
	PhaseIdle             = Phase("idle")
	PhaseAwaitingResponse = Phase("awaiting_response")
)

type State struct {
	Phase      Phase
	Transcript transcript.Transcript
	// Greeting is empty until the greeting fetch succeeds.
	Greeting string
	Language local.Language
}

func (s State) Pending() bool {
	return s.Phase == PhaseAwaitingResponse
}

// Init returns the starting state and the one-shot greeting fetch.
func Init(language local.Language) (State, []Command) {
	return State{
		Phase:    PhaseIdle,
		Language: language,
	}, []Command{FetchGreeting{}}
}

func Apply(s State, ev Event) (State, []Command) {
	switch ev := ev.(type) {
	case Submitted:
		return submit(s, ev.Text)
	case ReplyReceived:
		if !s.Pending() {
			return s, []Command{ReportDiagnostic{Message: "dropping reply", Err: ErrStaleOutcome}}
		}
		return reply(s, ev.Reply)
	case RequestFailed:
		if !s.Pending() {
			return s, []Command{ReportDiagnostic{Message: "dropping failure", Err: ErrStaleOutcome}}
		}
		s.Transcript = s.Transcript.Append(model.Message{Kind: model.MessageKindError, Content: MessageConnectionFailed})
		s.Phase = PhaseIdle
		return s, []Command{ReportDiagnostic{Message: "chat request failed", Err: ev.Err}}
	case GreetingLoaded:
		if s.Greeting == "" {
			s.Greeting = ev.Text
		}
		return s, nil
	case GreetingFailed:
		return s, []Command{ReportDiagnostic{Message: "failed to fetch greeting", Err: ev.Err}}
	case LanguageSelected:
		s.Language = ev.Language
		return s, nil
	default:
		return s, nil
	}
}

func submit(s State, text string) (State, []Command) {
	if strings.TrimSpace(text) == "" || s.Pending() {
		return s, nil
	}
	s.Transcript = s.Transcript.Append(model.Message{Kind: model.MessageKindUser, Content: text})
	s.Phase = PhaseAwaitingResponse
	return s, []Command{SendTurn{Text: text, Language: s.Language}}
}

func reply(s State, r model.Reply) (State, []Command) {
	var cmds []Command
	if r.SessionID != "" {
		cmds = append(cmds, StoreSessionToken{Token: r.SessionID})
	}
	msg := model.Message{Kind: model.MessageKindBot, Content: r.Text}
	if r.RateLimited {
		msg.Kind = model.MessageKindError
		if !r.HasText || r.Text == "" {
			msg.Content = MessageRateLimitFallback
		}
	}
	s.Transcript = s.Transcript.Append(msg)
	s.Phase = PhaseIdle
	return s, cmds
}
