// Package tui is the interactive terminal surface. The bubbletea update loop
// owns the conversation state; network commands run as tea.Cmds and come back
// as messages.
package tui

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/iamvkosarev/car-assistant-chat/internal/conversation"
	"github.com/iamvkosarev/car-assistant-chat/internal/model"
	"github.com/iamvkosarev/car-assistant-chat/internal/render"
	"github.com/iamvkosarev/car-assistant-chat/pkg/local"
	"go.uber.org/zap"
)

const (
	defaultWidth  = 80
	defaultHeight = 24

	headerHeight = 1
	footerHeight = 1
	inputHeight  = 3
	// top and bottom border of the input box
	inputChrome = 2

	helpText = "enter send • alt+enter newline • ctrl+t theme • ctrl+l language • ctrl+s export • esc quit"
)

var (
	ErrNoExportPath = errors.New("no export path configured")
)

type Preferences interface {
	Theme() model.Theme
	ToggleTheme(ctx context.Context) model.Theme
}

type Deps struct {
	Effects     *conversation.Effects
	Preferences Preferences
	Logger      *zap.Logger
	// ExportPath is where ctrl+s writes the sanitized HTML transcript.
	ExportPath string
}

type eventMsg struct {
	event conversation.Event
}

type exportedMsg struct {
	path string
	err  error
}

type Model struct {
	Deps
	ctx context.Context

	state   conversation.State
	initCmd tea.Cmd

	textarea textarea.Model
	viewport viewport.Model
	spinner  spinner.Model
	styles   Styles
	renderer *glamour.TermRenderer

	width  int
	height int
	status string

	// shown is what the viewport was last scrolled to the bottom for.
	shown shownContent
}

type shownContent struct {
	messages    int
	pending     bool
	hasGreeting bool
}

func New(ctx context.Context, deps Deps, language local.Language) Model {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	ta := textarea.New()
	ta.Placeholder = "Type your message..."
	ta.ShowLineNumbers = false
	ta.Prompt = ""
	ta.SetHeight(inputHeight)
	ta.SetWidth(defaultWidth - 4)
	ta.KeyMap.InsertNewline = key.NewBinding(key.WithKeys("alt+enter", "ctrl+j"))
	ta.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	m := Model{
		Deps:     deps,
		ctx:      ctx,
		textarea: ta,
		viewport: viewport.New(defaultWidth, defaultHeight-headerHeight-footerHeight-inputHeight-inputChrome),
		spinner:  sp,
		styles:   NewStyles(deps.Preferences.Theme()),
		width:    defaultWidth,
		height:   defaultHeight,
	}
	m.renderer = m.newRenderer()

	state, cmds := conversation.Init(language)
	m.state = state
	m.initCmd = m.commands(cmds)
	m.refresh()
	return m
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, m.initCmd)
}

// State returns the conversation state as of the last processed message.
func (m Model) State() conversation.State {
	return m.state
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case eventMsg:
		return m, m.apply(msg.event)

	case exportedMsg:
		if msg.err != nil {
			m.Logger.Error("failed to export transcript", zap.String("path", msg.path), zap.Error(msg.err))
			m.status = "export failed"
		} else {
			m.status = "exported to " + msg.path
		}
		return m, nil

	case spinner.TickMsg:
		if !m.state.Pending() {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		m.refresh()
		return m, cmd
	}

	var cmd tea.Cmd
	m.textarea, cmd = m.textarea.Update(msg)
	return m, cmd
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC, tea.KeyEsc:
		return m, tea.Quit

	case tea.KeyEnter:
		if msg.Alt || msg.Paste {
			break
		}
		if m.state.Pending() {
			return m, nil
		}
		text := m.textarea.Value()
		if strings.TrimSpace(text) == "" {
			return m, nil
		}
		m.textarea.Reset()
		cmd := m.apply(conversation.Submitted{Text: text})
		return m, tea.Batch(cmd, m.spinner.Tick)

	case tea.KeyCtrlT:
		theme := m.Preferences.ToggleTheme(m.ctx)
		m.styles = NewStyles(theme)
		m.renderer = m.newRenderer()
		m.status = "theme: " + string(theme)
		m.refresh()
		return m, nil

	case tea.KeyCtrlL:
		next := m.state.Language.Next()
		m.status = "language: " + next.Label()
		return m, m.apply(conversation.LanguageSelected{Language: next})

	case tea.KeyCtrlS:
		return m, m.export()

	case tea.KeyPgUp, tea.KeyPgDown:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.textarea, cmd = m.textarea.Update(msg)
	return m, cmd
}

// apply runs one event through the state machine on the update loop.
func (m *Model) apply(ev conversation.Event) tea.Cmd {
	state, cmds := conversation.Apply(m.state, ev)
	cmd := m.commands(cmds)
	m.state = state
	m.refresh()
	return cmd
}

// commands runs the inline commands now and turns the suspending ones into
// tea.Cmds whose result is fed back through Update.
func (m *Model) commands(cmds []conversation.Command) tea.Cmd {
	var out []tea.Cmd
	for _, cmd := range cmds {
		if !conversation.Suspends(cmd) {
			m.Effects.Run(m.ctx, cmd)
			continue
		}
		effects, ctx := m.Effects, m.ctx
		out = append(out, func() tea.Msg {
			ev := effects.Run(ctx, cmd)
			if ev == nil {
				return nil
			}
			return eventMsg{event: ev}
		})
	}
	switch len(out) {
	case 0:
		return nil
	case 1:
		return out[0]
	default:
		return tea.Batch(out...)
	}
}

func (m Model) export() tea.Cmd {
	path := m.ExportPath
	doc := render.HTML(m.blocks())
	return func() tea.Msg {
		if path == "" {
			return exportedMsg{err: ErrNoExportPath}
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return exportedMsg{path: path, err: fmt.Errorf("failed to create export dir: %w", err)}
		}
		if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
			return exportedMsg{path: path, err: fmt.Errorf("failed to write export: %w", err)}
		}
		return exportedMsg{path: path}
	}
}

func (m *Model) resize(width, height int) {
	if width < 1 {
		width = 1
	}
	if height < 1 {
		height = 1
	}
	m.width, m.height = width, height

	vpHeight := height - headerHeight - footerHeight - inputHeight - inputChrome
	if vpHeight < 1 {
		vpHeight = 1
	}
	m.viewport.Width = width
	m.viewport.Height = vpHeight

	inputWidth := width - 4
	if inputWidth < 1 {
		inputWidth = 1
	}
	m.textarea.SetWidth(inputWidth)

	m.renderer = m.newRenderer()
	m.refresh()
}

func (m Model) newRenderer() *glamour.TermRenderer {
	wrap := m.width - 4
	if wrap < 10 {
		wrap = 10
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(m.styles.Glamour),
		glamour.WithWordWrap(wrap),
	)
	if err != nil {
		m.Logger.Warn("failed to create markdown renderer", zap.Error(err))
		return nil
	}
	return r
}

func (m Model) blocks() []render.Block {
	return render.Project(m.state.Greeting, m.state.Transcript.All(), m.state.Pending())
}

// refresh redraws the history. It only scrolls to the bottom when an entry,
// the greeting or the loading placeholder appeared or went away, so spinner
// ticks do not undo manual scrolling.
func (m *Model) refresh() {
	m.viewport.SetContent(m.renderHistory())
	current := shownContent{
		messages:    m.state.Transcript.Len(),
		pending:     m.state.Pending(),
		hasGreeting: m.state.Greeting != "",
	}
	if current != m.shown {
		m.shown = current
		m.viewport.GotoBottom()
	}
}

func (m Model) renderHistory() string {
	blocks := m.blocks()
	parts := make([]string, 0, len(blocks))
	for _, block := range blocks {
		parts = append(parts, m.renderBlock(block))
	}
	return strings.Join(parts, "\n")
}

// renderBlock strips terminal control sequences from the content before any
// styling, since it comes from the service or the user.
func (m Model) renderBlock(block render.Block) string {
	width := m.viewport.Width
	block.Content = sanitize(block.Content)
	switch block.Kind {
	case render.BlockKindUser:
		return lipgloss.PlaceHorizontal(width, lipgloss.Right, m.styles.User.Render(block.Content))
	case render.BlockKindError:
		text := strings.TrimSpace(m.markdown(block.Content))
		return lipgloss.PlaceHorizontal(width, lipgloss.Center, m.styles.Error.Render(text))
	case render.BlockKindLoading:
		return m.styles.Loading.Render(m.spinner.View() + " " + block.Content)
	default:
		return m.styles.Bot.Render(strings.TrimRight(m.markdown(block.Content), "\n"))
	}
}

// markdown renders through glamour and falls back to the raw source when the
// renderer is missing or fails.
func (m Model) markdown(src string) (out string) {
	if m.renderer == nil {
		return src
	}
	defer func() {
		if r := recover(); r != nil {
			m.Logger.Warn("markdown renderer panicked", zap.Any("panic", r))
			out = src
		}
	}()
	rendered, err := m.renderer.Render(src)
	if err != nil {
		return src
	}
	return rendered
}

func (m Model) View() string {
	header := m.styles.Header.Render(
		fmt.Sprintf("Mousaid car assistant  •  %s  •  %s", m.state.Language.Label(), m.Preferences.Theme()),
	)
	footer := helpText
	if m.status != "" {
		footer = m.status + "  •  " + helpText
	}
	return lipgloss.JoinVertical(
		lipgloss.Left,
		header,
		m.viewport.View(),
		m.styles.Input.Render(m.textarea.View()),
		m.styles.Footer.Render(footer),
	)
}

// Run starts the program on the alternate screen and blocks until the user
// quits.
func Run(ctx context.Context, deps Deps, language local.Language) error {
	p := tea.NewProgram(
		New(ctx, deps, language),
		tea.WithAltScreen(),
		tea.WithContext(ctx),
	)
	if _, err := p.Run(); err != nil {
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("failed to run terminal ui: %w", err)
	}
	return nil
}
