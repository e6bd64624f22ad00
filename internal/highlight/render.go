package highlight

import (
	"github.com/muesli/termenv"
)

// Styler renders a span of text with a color and style
type Styler interface {
	Style(text string, c Color, s Style) string
}

// PlainStyler leaves text untouched
type PlainStyler struct{}

func (PlainStyler) Style(text string, _ Color, _ Style) string {
	return text
}

type styleKey struct {
	color Color
	style Style
}

// TermStyler wraps each span in a single SGR sequence and one reset, so a
// match stays contiguous for the rules applied after it. All styles are
// built up front so Style is read-only.
type TermStyler struct {
	profile termenv.Profile
	styles  map[styleKey]termenv.Style
}

// NewTermStyler builds styles for a terminal color profile
func NewTermStyler(p termenv.Profile) *TermStyler {
	styles := make(map[styleKey]termenv.Style, len(colorNames)*len(styleNames))
	for c := range colorNames {
		for s := range styleNames {
			st := p.String().Foreground(p.Color(c.ansi()))
			switch s {
			case Bold:
				st = st.Bold()
			case Italic:
				st = st.Italic()
			case Underline:
				st = st.Underline()
			}
			styles[styleKey{c, s}] = st
		}
	}

	return &TermStyler{profile: p, styles: styles}
}

func (t *TermStyler) Style(text string, c Color, s Style) string {
	st, ok := t.styles[styleKey{c, s}]
	if !ok || t.profile == termenv.Ascii {
		return text
	}
	return st.Styled(text)
}
