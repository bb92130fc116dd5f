package model

import (
	"errors"

	"github.com/google/uuid"
	"github.com/iamvkosarev/car-assistant-chat/pkg/local"
)

var (
	ErrKeyNotFound = errors.New("key not found")
)

type MessageKind string

const (
	MessageKindUser  = MessageKind("user")
	MessageKindBot   = MessageKind("bot")
	MessageKindError = MessageKind("error")
	// MessageKindGreeting is synthetic: it is rendered before the transcript
	// and never stored in it.
	MessageKindGreeting = MessageKind("greeting")
)

type Message struct {
	ID       uuid.UUID
	Kind     MessageKind
	Content  string
	Sequence int
}

// Turn is one outbound chat request.
type Turn struct {
	Text      string
	SessionID string
	Language  local.Language
}

// Reply is the assistant's answer to a Turn. HasText distinguishes an empty
// response from a rate-limited reply that carried no text at all.
type Reply struct {
	Text        string
	HasText     bool
	SessionID   string
	RateLimited bool
}
