package tui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/iamvkosarev/car-assistant-chat/internal/model"
)

var (
	LightBackground = lipgloss.Color("#f4f5f6")
	LightForeground = lipgloss.Color("#101F38")
	LightPrimary    = lipgloss.Color("#101F38")
	LightMuted      = lipgloss.Color("#8a93a3")
	LightUser       = lipgloss.Color("#e1e4e8")

	DarkBackground = lipgloss.Color("#141d2b")
	DarkForeground = lipgloss.Color("#f2f2f2")
	DarkPrimary    = lipgloss.Color("#8BC34A")
	DarkMuted      = lipgloss.Color("#6b7a93")
	DarkUser       = lipgloss.Color("#1e2a3d")

	Destructive = lipgloss.Color("#e53935")
)

type Palette struct {
	Background lipgloss.Color
	Foreground lipgloss.Color
	Primary    lipgloss.Color
	Muted      lipgloss.Color
	User       lipgloss.Color
}

type Styles struct {
	Palette Palette
	// Glamour is the standard glamour style name matching the palette.
	Glamour string

	Header  lipgloss.Style
	Footer  lipgloss.Style
	User    lipgloss.Style
	Bot     lipgloss.Style
	Error   lipgloss.Style
	Loading lipgloss.Style
	Input   lipgloss.Style
}

func NewStyles(theme model.Theme) Styles {
	p := Palette{
		Background: LightBackground,
		Foreground: LightForeground,
		Primary:    LightPrimary,
		Muted:      LightMuted,
		User:       LightUser,
	}
	glamourStyle := "light"
	if theme.IsDark() {
		p = Palette{
			Background: DarkBackground,
			Foreground: DarkForeground,
			Primary:    DarkPrimary,
			Muted:      DarkMuted,
			User:       DarkUser,
		}
		glamourStyle = "dark"
	}

	return Styles{
		Palette: p,
		Glamour: glamourStyle,
		Header: lipgloss.NewStyle().
			Bold(true).
			Foreground(p.Primary).
			Padding(0, 1),
		Footer: lipgloss.NewStyle().
			Foreground(p.Muted).
			Padding(0, 1),
		User: lipgloss.NewStyle().
			Foreground(p.Foreground).
			Background(p.User).
			Padding(0, 1),
		Bot: lipgloss.NewStyle(),
		Error: lipgloss.NewStyle().
			Foreground(Destructive).
			Bold(true),
		Loading: lipgloss.NewStyle().
			Foreground(p.Muted).
			Italic(true).
			Padding(0, 1),
		Input: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(p.Muted),
	}
}
