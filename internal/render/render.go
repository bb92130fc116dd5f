// Package render turns conversation state into a display list that a surface
// can draw without knowing anything about the state machine.
package render

import (
	"github.com/google/uuid"
	"github.com/iamvkosarev/car-assistant-chat/internal/model"
)

const LoadingText = "Loading..."

type BlockKind string

const (
	BlockKindGreeting = BlockKind("greeting")
	BlockKindUser     = BlockKind("user")
	BlockKindBot      = BlockKind("bot")
	BlockKindError    = BlockKind("error")
	BlockKindLoading  = BlockKind("loading")
)

type Align string

const (
	AlignLeft   = Align("left")
	AlignRight  = Align("right")
	AlignCenter = Align("center")
)

type Block struct {
	// ID is the message identity; it is nil for the greeting and the loading
	// placeholder.
	ID      uuid.UUID
	Kind    BlockKind
	Align   Align
	Content string
	// Markup is true when Content is markup source rather than plain text.
	Markup bool
}

// Project is a pure function of its inputs. The greeting comes first when
// present, then every message in order, then the loading placeholder while a
// turn is pending.
func Project(greeting string, messages []model.Message, pending bool) []Block {
	blocks := make([]Block, 0, len(messages)+2)
	if greeting != "" {
		blocks = append(blocks, Block{
			Kind:    BlockKindGreeting,
			Align:   AlignLeft,
			Content: greeting,
			Markup:  true,
		})
	}
	for _, msg := range messages {
		block, ok := messageBlock(msg)
		if !ok {
			continue
		}
		blocks = append(blocks, block)
	}
	if pending {
		blocks = append(blocks, Block{
			Kind:    BlockKindLoading,
			Align:   AlignLeft,
			Content: LoadingText,
		})
	}
	return blocks
}

func messageBlock(msg model.Message) (Block, bool) {
	block := Block{ID: msg.ID, Content: msg.Content}
	switch msg.Kind {
	case model.MessageKindUser:
		block.Kind = BlockKindUser
		block.Align = AlignRight
	case model.MessageKindBot:
		block.Kind = BlockKindBot
		block.Align = AlignLeft
		block.Markup = true
	case model.MessageKindError:
		block.Kind = BlockKindError
		block.Align = AlignCenter
		block.Markup = true
	default:
		return Block{}, false
	}
	return block, true
}
