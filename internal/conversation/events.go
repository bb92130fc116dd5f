package conversation

import (
	"github.com/iamvkosarev/car-assistant-chat/internal/model"
	"github.com/iamvkosarev/car-assistant-chat/pkg/local"
)

// Event is an input to Apply.
type Event interface {
	isEvent()
}

type Submitted struct {
	Text string
}

// ReplyReceived carries both successful and rate-limited replies; the
// distinction is Reply.RateLimited.
type ReplyReceived struct {
	Reply model.Reply
}

type RequestFailed struct {
	Err error
}

type GreetingLoaded struct {
	Text string
}

type GreetingFailed struct {
	Err error
}

type LanguageSelected struct {
	Language local.Language
}

func (Submitted) isEvent()        {}
func (ReplyReceived) isEvent()    {}
func (RequestFailed) isEvent()    {}
func (GreetingLoaded) isEvent()   {}
func (GreetingFailed) isEvent()   {}
func (LanguageSelected) isEvent() {}

// Command is a side effect requested by Apply. Commands are executed outside
// the state machine, see Effects.
type Command interface {
	isCommand()
}

type SendTurn struct {
	Text     string
	Language local.Language
}

type StoreSessionToken struct {
	Token string
}

type FetchGreeting struct{}

type ReportDiagnostic struct {
	Message string
	Err     error
}

func (SendTurn) isCommand()          {}
func (StoreSessionToken) isCommand() {}
func (FetchGreeting) isCommand()     {}
func (ReportDiagnostic) isCommand()  {}
