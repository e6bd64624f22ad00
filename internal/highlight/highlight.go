package highlight

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	ErrUnknownColor = errors.New("unknown highlight color")
	ErrUnknownStyle = errors.New("unknown highlight style")
)

// Color is a terminal foreground color
type Color int

const (
	Red Color = iota
	BrightRed
	Green
	Yellow
	Blue
	Magenta
	Cyan
	White
)

var colorNames = map[Color]string{
	Red:       "red",
	BrightRed: "bright_red",
	Green:     "green",
	Yellow:    "yellow",
	Blue:      "blue",
	Magenta:   "magenta",
	Cyan:      "cyan",
	White:     "white",
}

// ansi returns the 16-color palette index
func (c Color) ansi() string {
	switch c {
	case Red:
		return "1"
	case BrightRed:
		return "9"
	case Green:
		return "2"
	case Yellow:
		return "3"
	case Blue:
		return "4"
	case Magenta:
		return "5"
	case Cyan:
		return "6"
	default:
		return "7"
	}
}

func (c Color) String() string {
	if name, ok := colorNames[c]; ok {
		return name
	}
	return fmt.Sprintf("color(%d)", int(c))
}

// ParseColor parses names such as "bright_red" or "bright-red"
func ParseColor(s string) (Color, error) {
	name := normalize(s)
	for c, n := range colorNames {
		if n == name {
			return c, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownColor, s)
}

// Style is a text attribute applied together with a color
type Style int

const (
	Normal Style = iota
	Bold
	Italic
	Underline
)

var styleNames = map[Style]string{
	Normal:    "normal",
	Bold:      "bold",
	Italic:    "italic",
	Underline: "underline",
}

func (s Style) String() string {
	if name, ok := styleNames[s]; ok {
		return name
	}
	return fmt.Sprintf("style(%d)", int(s))
}

// ParseStyle parses a style name; empty means Normal
func ParseStyle(s string) (Style, error) {
	name := normalize(s)
	if name == "" {
		return Normal, nil
	}
	for st, n := range styleNames {
		if n == name {
			return st, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownStyle, s)
}

func normalize(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_")
}

// Rule styles every match of Pattern
type Rule struct {
	Name    string
	Pattern *regexp.Regexp
	Color   Color
	Style   Style
}

// RuleSpec is the configured form of a Rule. Words are matched literally;
// Pattern is a raw regular expression. Exactly one of them must be set.
type RuleSpec struct {
	Name    string   `yaml:"name" toml:"name"`
	Words   []string `yaml:"words,omitempty" toml:"words,omitempty"`
	Pattern string   `yaml:"pattern,omitempty" toml:"pattern,omitempty"`
	Color   string   `yaml:"color" toml:"color"`
	Style   string   `yaml:"style,omitempty" toml:"style,omitempty"`
}

// DefaultRuleSpecs returns the built-in severity rules. Order matters:
// critical words are styled first, then warnings, then informational words.
func DefaultRuleSpecs() []RuleSpec {
	return []RuleSpec{
		{Name: "critical", Words: []string{"foo", "bar"}, Color: "bright_red", Style: "bold"},
		{Name: "warn", Words: []string{"warning"}, Color: "yellow", Style: "underline"},
		{Name: "info", Words: []string{"info", "success"}, Color: "cyan", Style: "normal"},
	}
}

// BuildRules compiles specs in the order given
func BuildRules(specs []RuleSpec) ([]Rule, error) {
	rules := make([]Rule, 0, len(specs))
	for i, spec := range specs {
		rule, err := spec.compile()
		if err != nil {
			name := spec.Name
			if name == "" {
				name = fmt.Sprintf("#%d", i)
			}
			return nil, fmt.Errorf("highlight rule %s: %w", name, err)
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

func (s RuleSpec) compile() (Rule, error) {
	color, err := ParseColor(s.Color)
	if err != nil {
		return Rule{}, err
	}
	style, err := ParseStyle(s.Style)
	if err != nil {
		return Rule{}, err
	}

	var expr string
	switch {
	case s.Pattern != "" && len(s.Words) > 0:
		return Rule{}, fmt.Errorf("set either words or pattern, not both")
	case s.Pattern != "":
		expr = s.Pattern
	case len(s.Words) > 0:
		quoted := make([]string, len(s.Words))
		for i, w := range s.Words {
			if w == "" {
				return Rule{}, fmt.Errorf("empty word")
			}
			quoted[i] = regexp.QuoteMeta(w)
		}
		expr = strings.Join(quoted, "|")
	default:
		return Rule{}, fmt.Errorf("no words or pattern")
	}

	re, err := regexp.Compile(expr)
	if err != nil {
		return Rule{}, fmt.Errorf("compile %q: %w", expr, err)
	}

	return Rule{Name: s.Name, Pattern: re, Color: color, Style: style}, nil
}

// Annotate applies each rule in order to the output of the previous one.
// Later rules see the styling inserted by earlier ones and may match inside
// it; this mirrors plain repeated substitution.
func Annotate(line string, rules []Rule, styler Styler) string {
	for _, rule := range rules {
		if rule.Pattern == nil || !rule.Pattern.MatchString(line) {
			continue
		}
		line = rule.Pattern.ReplaceAllStringFunc(line, func(match string) string {
			return styler.Style(match, rule.Color, rule.Style)
		})
	}
	return line
}

// Highlighter binds an ordered rule set to a Styler. It is immutable and
// safe for concurrent use when the Styler is.
type Highlighter struct {
	rules  []Rule
	styler Styler
}

// New creates a Highlighter; a nil styler means PlainStyler
func New(rules []Rule, styler Styler) *Highlighter {
	if styler == nil {
		styler = PlainStyler{}
	}
	return &Highlighter{rules: rules, styler: styler}
}

// Annotate styles a single line
func (h *Highlighter) Annotate(line string) string {
	return Annotate(line, h.rules, h.styler)
}

// Rules returns the rule set in evaluation order
func (h *Highlighter) Rules() []Rule {
	return h.rules
}
