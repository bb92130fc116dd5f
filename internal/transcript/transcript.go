// Package transcript holds the ordered, append-only log of chat messages.
package transcript

import (
	"slices"

	"github.com/google/uuid"
	"github.com/iamvkosarev/car-assistant-chat/internal/model"
)

// Transcript is an immutable value. Append returns a new Transcript and never
// touches the receiver, so older values stay valid snapshots.
type Transcript struct {
	messages []model.Message
}

func (t Transcript) Append(msg model.Message) Transcript {
	if msg.Kind == model.MessageKindGreeting {
		return t
	}
	if msg.ID == uuid.Nil {
		msg.ID = uuid.New()
	}
	msg.Sequence = len(t.messages)
	// Clip forces append to reallocate instead of writing into a backing
	// array shared with an older snapshot.
	return Transcript{messages: append(slices.Clip(t.messages), msg)}
}

func (t Transcript) All() []model.Message {
	return slices.Clone(t.messages)
}

func (t Transcript) Len() int {
	return len(t.messages)
}

func (t Transcript) Last() (model.Message, bool) {
	if len(t.messages) == 0 {
		return model.Message{}, false
	}
	return t.messages[len(t.messages)-1], true
}

// Since returns the messages with Sequence >= seq.
func (t Transcript) Since(seq int) []model.Message {
	if seq < 0 {
		seq = 0
	}
	if seq >= len(t.messages) {
		return nil
	}
	return slices.Clone(t.messages[seq:])
}
