package conversation_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/iamvkosarev/car-assistant-chat/internal/conversation"
	"github.com/iamvkosarev/car-assistant-chat/internal/model"
	"github.com/iamvkosarev/car-assistant-chat/pkg/local"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeAssistant struct {
	mu          sync.Mutex
	greeting    string
	greetingErr error
	replies     []model.Reply
	errs        []error
	turns       []model.Turn
	block       chan struct{}
}

func (f *fakeAssistant) FetchGreeting(ctx context.Context) (string, error) {
	return f.greeting, f.greetingErr
}

func (f *fakeAssistant) SendTurn(ctx context.Context, turn model.Turn) (model.Reply, error) {
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return model.Reply{}, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	i := len(f.turns)
	f.turns = append(f.turns, turn)
	var err error
	if i < len(f.errs) {
		err = f.errs[i]
	}
	var r model.Reply
	if i < len(f.replies) {
		r = f.replies[i]
	}
	return r, err
}

func (f *fakeAssistant) sent() []model.Turn {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.Turn(nil), f.turns...)
}

type fakeTokens struct {
	mu    sync.Mutex
	token string
}

func (f *fakeTokens) CurrentToken() (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.token, f.token != ""
}

func (f *fakeTokens) SetToken(ctx context.Context, token string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.token = token
}

type harness struct {
	driver  *conversation.Driver
	changes chan conversation.State
	cancel  context.CancelFunc
	done    chan error
	once    sync.Once
}

func startDriver(t *testing.T, assistant *fakeAssistant, tokens *fakeTokens) *harness {
	t.Helper()
	effects := conversation.NewEffects(conversation.EffectsDeps{Assistant: assistant, Session: tokens})
	h := &harness{
		driver:  conversation.NewDriver(effects, local.Auto),
		changes: make(chan conversation.State, 64),
		done:    make(chan error, 1),
	}
	h.driver.Subscribe(func(s conversation.State) { h.changes <- s })
	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	go func() { h.done <- h.driver.Run(ctx) }()
	t.Cleanup(h.stop)
	return h
}

func (h *harness) stop() {
	h.once.Do(func() {
		h.cancel()
		<-h.done
	})
}

func (h *harness) waitFor(t *testing.T, pred func(conversation.State) bool) conversation.State {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case s := <-h.changes:
			if pred(s) {
				return s
			}
		case <-timeout:
			t.Fatalf("state never reached, last %+v", h.driver.State())
		}
	}
}

func TestDriverTurnUpdatesToken(t *testing.T) {
	assistant := &fakeAssistant{
		greeting: "Welcome",
		replies: []model.Reply{
			{Text: "Hi!", HasText: true, SessionID: "abc"},
			{Text: "Again", HasText: true},
		},
	}
	tokens := &fakeTokens{}
	h := startDriver(t, assistant, tokens)

	h.driver.Submit("Hello")
	h.waitFor(t, func(s conversation.State) bool { return s.Transcript.Len() == 2 })

	token, ok := tokens.CurrentToken()
	require.True(t, ok)
	assert.Equal(t, "abc", token)

	h.driver.Submit("Second")
	s := h.waitFor(t, func(s conversation.State) bool { return s.Transcript.Len() == 4 })
	assert.Equal(t, conversation.PhaseIdle, s.Phase)

	turns := assistant.sent()
	require.Len(t, turns, 2)
	assert.Empty(t, turns[0].SessionID)
	assert.Equal(t, "abc", turns[1].SessionID)

	token, _ = tokens.CurrentToken()
	assert.Equal(t, "abc", token)
}

func TestDriverLoadsGreeting(t *testing.T) {
	h := startDriver(t, &fakeAssistant{greeting: "Welcome"}, &fakeTokens{})

	s := h.waitFor(t, func(s conversation.State) bool { return s.Greeting != "" })
	assert.Equal(t, "Welcome", s.Greeting)
	assert.Equal(t, 0, s.Transcript.Len())
}

func TestDriverGreetingFailureIsSilent(t *testing.T) {
	assistant := &fakeAssistant{
		greetingErr: errors.New("offline"),
		replies:     []model.Reply{{Text: "ok", HasText: true}},
	}
	h := startDriver(t, assistant, &fakeTokens{})

	h.driver.Submit("Hello")
	s := h.waitFor(t, func(s conversation.State) bool { return s.Transcript.Len() == 2 })
	assert.Empty(t, s.Greeting)
	last, _ := s.Transcript.Last()
	assert.Equal(t, model.MessageKindBot, last.Kind)
}

func TestDriverIgnoresSubmitWhilePending(t *testing.T) {
	assistant := &fakeAssistant{
		replies: []model.Reply{{Text: "ok", HasText: true}},
		block:   make(chan struct{}),
	}
	h := startDriver(t, assistant, &fakeTokens{})

	h.driver.Submit("first")
	h.waitFor(t, func(s conversation.State) bool { return s.Pending() })
	h.driver.Submit("second")
	h.waitFor(t, func(s conversation.State) bool { return s.Pending() && s.Transcript.Len() == 1 })

	close(assistant.block)
	s := h.waitFor(t, func(s conversation.State) bool { return !s.Pending() })
	assert.Equal(t, 2, s.Transcript.Len())
	assert.Len(t, assistant.sent(), 1)
}

func TestDriverStopDropsInFlightRequest(t *testing.T) {
	assistant := &fakeAssistant{block: make(chan struct{})}
	h := startDriver(t, assistant, &fakeTokens{})

	h.driver.Submit("Hello")
	h.waitFor(t, func(s conversation.State) bool { return s.Pending() })
	h.stop()

	s := h.driver.State()
	assert.True(t, s.Pending())
	assert.Equal(t, 1, s.Transcript.Len())

	// Submitting after stop must not block.
	h.driver.Submit("late")
}
