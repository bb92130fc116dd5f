package model

type Theme string

const (
	ThemeLight = Theme("light")
	ThemeDark  = Theme("dark")
)

func ParseTheme(s string) Theme {
	switch s {
	case "dark":
		return ThemeDark
	default:
		return ThemeLight
	}
}

func (t Theme) Toggle() Theme {
	if t == ThemeDark {
		return ThemeLight
	}
	return ThemeDark
}

func (t Theme) IsDark() bool {
	return t == ThemeDark
}
