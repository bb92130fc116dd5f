package tui

import (
	"strings"

	"github.com/charmbracelet/x/ansi"
)

// sanitize removes escape sequences and control characters, keeping newlines
// and tabs.
func sanitize(s string) string {
	s = ansi.Strip(s)
	return strings.Map(
		func(r rune) rune {
			switch {
			case r == '\n', r == '\t':
				return r
			case r < 0x20, r == 0x7f, r >= 0x80 && r <= 0x9f:
				return -1
			default:
				return r
			}
		}, s,
	)
}
