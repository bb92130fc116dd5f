package local

type Language string

const (
	Auto   = Language("")
	Eng    = Language("en")
	Fra    = Language("fr")
	Ara    = Language("ar")
	Darija = Language("darija")
)

type Option struct {
	Language Language
	Label    string
}

var options = []Option{
	{Language: Auto, Label: "🌐 Choose language"},
	{Language: Eng, Label: "English"},
	{Language: Fra, Label: "Francais"},
	{Language: Ara, Label: "العربية"},
	{Language: Darija, Label: "Darija (Moroccan Arabic)"},
}

// Options returns the selectable reply languages in display order. Auto lets
// the assistant detect the language from the user's message.
func Options() []Option {
	out := make([]Option, len(options))
	copy(out, options)
	return out
}

func ParseLanguage(s string) (Language, bool) {
	for _, option := range options {
		if string(option.Language) == s {
			return option.Language, true
		}
	}
	return Auto, false
}

func (l Language) Label() string {
	for _, option := range options {
		if option.Language == l {
			return option.Label
		}
	}
	return string(l)
}

// Next cycles through Options, wrapping around to Auto.
func (l Language) Next() Language {
	for i, option := range options {
		if option.Language == l {
			return options[(i+1)%len(options)].Language
		}
	}
	return Auto
}
