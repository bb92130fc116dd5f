package conversation_test

import (
	"errors"
	"testing"

	"github.com/iamvkosarev/car-assistant-chat/internal/conversation"
	"github.com/iamvkosarev/car-assistant-chat/internal/model"
	"github.com/iamvkosarev/car-assistant-chat/pkg/local"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func idle(t *testing.T) conversation.State {
	t.Helper()
	s, cmds := conversation.Init(local.Auto)
	require.Equal(t, []conversation.Command{conversation.FetchGreeting{}}, cmds)
	return s
}

func kinds(s conversation.State) []model.MessageKind {
	var out []model.MessageKind
	for _, m := range s.Transcript.All() {
		out = append(out, m.Kind)
	}
	return out
}

func TestSubmitBlankIsRefused(t *testing.T) {
	for _, text := range []string{"", " ", "\t\n  "} {
		s := idle(t)
		next, cmds := conversation.Apply(s, conversation.Submitted{Text: text})

		assert.Empty(t, cmds, "text %q", text)
		assert.Equal(t, 0, next.Transcript.Len())
		assert.Equal(t, conversation.PhaseIdle, next.Phase)
	}
}

func TestSubmitWhilePendingIsIgnored(t *testing.T) {
	s, _ := conversation.Apply(idle(t), conversation.Submitted{Text: "first"})
	require.True(t, s.Pending())

	next, cmds := conversation.Apply(s, conversation.Submitted{Text: "second"})

	assert.Empty(t, cmds)
	assert.Equal(t, 1, next.Transcript.Len())
	assert.Equal(t, conversation.PhaseAwaitingResponse, next.Phase)
}

func TestHelloScenario(t *testing.T) {
	s, cmds := conversation.Apply(idle(t), conversation.Submitted{Text: "Hello"})

	require.Equal(t, []conversation.Command{conversation.SendTurn{Text: "Hello", Language: local.Auto}}, cmds)
	assert.Equal(t, conversation.PhaseAwaitingResponse, s.Phase)
	require.Equal(t, []model.MessageKind{model.MessageKindUser}, kinds(s))

	s, cmds = conversation.Apply(s, conversation.ReplyReceived{
		Reply: model.Reply{Text: "Hi!", HasText: true, SessionID: "abc"},
	})

	assert.Equal(t, []conversation.Command{conversation.StoreSessionToken{Token: "abc"}}, cmds)
	assert.Equal(t, conversation.PhaseIdle, s.Phase)
	msgs := s.Transcript.All()
	require.Len(t, msgs, 2)
	assert.Equal(t, model.MessageKindUser, msgs[0].Kind)
	assert.Equal(t, "Hello", msgs[0].Content)
	assert.Equal(t, model.MessageKindBot, msgs[1].Kind)
	assert.Equal(t, "Hi!", msgs[1].Content)
}

func TestReplyWithoutTokenStoresNothing(t *testing.T) {
	s, _ := conversation.Apply(idle(t), conversation.Submitted{Text: "Hello"})
	s, cmds := conversation.Apply(s, conversation.ReplyReceived{Reply: model.Reply{Text: "Hi!", HasText: true}})

	assert.Empty(t, cmds)
	assert.Equal(t, []model.MessageKind{model.MessageKindUser, model.MessageKindBot}, kinds(s))
}

func TestRateLimitedWithoutBodyUsesFallback(t *testing.T) {
	s, _ := conversation.Apply(idle(t), conversation.Submitted{Text: "test"})
	s, _ = conversation.Apply(s, conversation.ReplyReceived{Reply: model.Reply{RateLimited: true}})

	last, ok := s.Transcript.Last()
	require.True(t, ok)
	assert.Equal(t, model.MessageKindError, last.Kind)
	assert.Equal(t, conversation.MessageRateLimitFallback, last.Content)
	assert.Equal(t, conversation.PhaseIdle, s.Phase)
	assert.Equal(t, 2, s.Transcript.Len())
}

func TestRateLimitedUsesServiceText(t *testing.T) {
	s, _ := conversation.Apply(idle(t), conversation.Submitted{Text: "test"})
	s, cmds := conversation.Apply(s, conversation.ReplyReceived{
		Reply: model.Reply{RateLimited: true, HasText: true, Text: "slow down", SessionID: "s1"},
	})

	last, _ := s.Transcript.Last()
	assert.Equal(t, model.MessageKindError, last.Kind)
	assert.Equal(t, "slow down", last.Content)
	assert.Equal(t, []conversation.Command{conversation.StoreSessionToken{Token: "s1"}}, cmds)
}

func TestFailureUsesFixedText(t *testing.T) {
	causes := []error{errors.New("dial tcp: connection refused"), errors.New("unexpected status 500")}
	for _, cause := range causes {
		s, _ := conversation.Apply(idle(t), conversation.Submitted{Text: "Hello"})
		s, cmds := conversation.Apply(s, conversation.RequestFailed{Err: cause})

		msgs := s.Transcript.All()
		require.Len(t, msgs, 2)
		assert.Equal(t, model.MessageKindError, msgs[1].Kind)
		assert.Equal(t, conversation.MessageConnectionFailed, msgs[1].Content)
		assert.NotContains(t, msgs[1].Content, cause.Error())
		assert.Equal(t, conversation.PhaseIdle, s.Phase)
		require.Len(t, cmds, 1)
		diag, ok := cmds[0].(conversation.ReportDiagnostic)
		require.True(t, ok)
		assert.ErrorIs(t, diag.Err, cause)
	}
}

func TestStaleOutcomesAreIgnored(t *testing.T) {
	s := idle(t)

	next, cmds := conversation.Apply(s, conversation.ReplyReceived{Reply: model.Reply{Text: "late", HasText: true}})
	assert.Equal(t, 0, next.Transcript.Len())
	require.Len(t, cmds, 1)
	assert.ErrorIs(t, cmds[0].(conversation.ReportDiagnostic).Err, conversation.ErrStaleOutcome)

	next, _ = conversation.Apply(s, conversation.RequestFailed{Err: errors.New("boom")})
	assert.Equal(t, 0, next.Transcript.Len())
}

func TestTurnsAlternateWithoutInterleaving(t *testing.T) {
	s := idle(t)
	for i := 0; i < 5; i++ {
		s, _ = conversation.Apply(s, conversation.Submitted{Text: "question"})
		s, _ = conversation.Apply(s, conversation.Submitted{Text: "ignored"})
		if i%2 == 0 {
			s, _ = conversation.Apply(s, conversation.ReplyReceived{Reply: model.Reply{Text: "answer", HasText: true}})
		} else {
			s, _ = conversation.Apply(s, conversation.RequestFailed{Err: errors.New("x")})
		}
	}

	msgs := s.Transcript.All()
	require.Len(t, msgs, 10)
	for i, m := range msgs {
		assert.Equal(t, i, m.Sequence)
		if i%2 == 0 {
			assert.Equal(t, model.MessageKindUser, m.Kind)
			assert.Equal(t, "question", m.Content)
		} else {
			assert.NotEqual(t, model.MessageKindUser, m.Kind)
		}
	}
}

func TestGreetingDoesNotTouchTranscript(t *testing.T) {
	s, _ := conversation.Apply(idle(t), conversation.Submitted{Text: "Hello"})

	failed, cmds := conversation.Apply(s, conversation.GreetingFailed{Err: errors.New("offline")})
	assert.Empty(t, failed.Greeting)
	assert.Equal(t, 1, failed.Transcript.Len())
	assert.Equal(t, conversation.PhaseAwaitingResponse, failed.Phase)
	require.Len(t, cmds, 1)
	assert.IsType(t, conversation.ReportDiagnostic{}, cmds[0])

	loaded, cmds := conversation.Apply(s, conversation.GreetingLoaded{Text: "Welcome"})
	assert.Empty(t, cmds)
	assert.Equal(t, "Welcome", loaded.Greeting)
	assert.Equal(t, 1, loaded.Transcript.Len())
	assert.True(t, loaded.Pending())

	again, _ := conversation.Apply(loaded, conversation.GreetingLoaded{Text: "Other"})
	assert.Equal(t, "Welcome", again.Greeting)
}

func TestLanguageSelectionAppliesToNextTurn(t *testing.T) {
	s, _ := conversation.Apply(idle(t), conversation.LanguageSelected{Language: local.Fra})
	_, cmds := conversation.Apply(s, conversation.Submitted{Text: "Bonjour"})

	assert.Equal(t, []conversation.Command{conversation.SendTurn{Text: "Bonjour", Language: local.Fra}}, cmds)
}

func TestSubmitKeepsTextAsTyped(t *testing.T) {
	s, cmds := conversation.Apply(idle(t), conversation.Submitted{Text: "  Hello  "})

	last, _ := s.Transcript.Last()
	assert.Equal(t, "  Hello  ", last.Content)
	assert.Equal(t, "  Hello  ", cmds[0].(conversation.SendTurn).Text)
}
