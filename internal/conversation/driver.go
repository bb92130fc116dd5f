package conversation

import (
	"context"
	"sync"

	"github.com/iamvkosarev/car-assistant-chat/pkg/local"
	"github.com/sourcegraph/conc"
)

const eventBufferSize = 16

// Suspends reports whether cmd waits on the network. Such commands run in the
// background; the others run inline on the loop so a stored token is always
// visible to the next turn.
func Suspends(cmd Command) bool {
	switch cmd.(type) {
	case SendTurn, FetchGreeting:
		return true
	default:
		return false
	}
}

// Driver owns a State on a single goroutine and feeds it events in arrival
// order. It is used by surfaces that have no event loop of their own.
type Driver struct {
	effects  *Effects
	language local.Language

	events chan Event
	done   chan struct{}

	mu          sync.RWMutex
	state       State
	subscribers []func(State)
}

func NewDriver(effects *Effects, language local.Language) *Driver {
	return &Driver{
		effects:  effects,
		language: language,
		events:   make(chan Event, eventBufferSize),
		done:     make(chan struct{}),
		state:    State{Phase: PhaseIdle, Language: language},
	}
}

// Subscribe registers fn to be called on the loop goroutine after every
// applied event, once the inline commands of that event have run. Call it
// before Run.
func (d *Driver) Subscribe(fn func(State)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.subscribers = append(d.subscribers, fn)
}

func (d *Driver) State() State {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.state
}

func (d *Driver) Submit(text string) {
	d.post(Submitted{Text: text})
}

func (d *Driver) SelectLanguage(language local.Language) {
	d.post(LanguageSelected{Language: language})
}

// Run processes events until ctx is done. Outcomes of requests still in flight
// at that point are dropped.
func (d *Driver) Run(ctx context.Context) error {
	wg := conc.NewWaitGroup()
	defer wg.Wait()
	defer close(d.done)

	state, cmds := Init(d.language)
	d.dispatch(ctx, wg, cmds)
	d.commit(state)

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-d.events:
			state, cmds = Apply(d.State(), ev)
			d.dispatch(ctx, wg, cmds)
			d.commit(state)
		}
	}
}

func (d *Driver) post(ev Event) {
	select {
	case d.events <- ev:
	case <-d.done:
	}
}

func (d *Driver) commit(state State) {
	d.mu.Lock()
	d.state = state
	subscribers := d.subscribers
	d.mu.Unlock()
	for _, fn := range subscribers {
		fn(state)
	}
}

func (d *Driver) dispatch(ctx context.Context, wg *conc.WaitGroup, cmds []Command) {
	for _, cmd := range cmds {
		if !Suspends(cmd) {
			d.effects.Run(ctx, cmd)
			continue
		}
		wg.Go(
			func() {
				ev := d.effects.Run(ctx, cmd)
				if ev == nil {
					return
				}
				select {
				case d.events <- ev:
				case <-ctx.Done():
				}
			},
		)
	}
}
