// Package debug renders the startup summary printed with --debug.
package debug

import (
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/therealutkarshpriyadarshi/logwatch/pkg/types"
)

const ruleWidth = 40

// Summary describes the effective configuration of a run. Include and
// Exclude must be the same compiled patterns the filter uses.
type Summary struct {
	Sources []string
	Include *regexp.Regexp
	Exclude *regexp.Regexp
	Mode    types.RunMode
}

// Render draws the summary block. A nil renderer uses lipgloss defaults.
func (s Summary) Render(r *lipgloss.Renderer) string {
	if r == nil {
		r = lipgloss.DefaultRenderer()
	}

	accent := lipgloss.Color("6")
	rule := r.NewStyle().Foreground(accent).Render(strings.Repeat("=", ruleWidth))
	title := r.NewStyle().Foreground(accent).Bold(true).Render("  DEBUG INFO")
	label := r.NewStyle().Bold(true)

	field := func(name, value string) string {
		return fmt.Sprintf("%s: %s", label.Render(name), value)
	}

	lines := []string{
		"",
		rule,
		title,
		rule,
		field("Log files", strings.Join(s.Sources, ", ")),
		field("Mode", s.Mode.String()),
		field("Include Regex", patternString(s.Include)),
		field("Exclude Regex", patternString(s.Exclude)),
		rule,
		"",
	}
	return strings.Join(lines, "\n") + "\n"
}

func patternString(re *regexp.Regexp) string {
	if re == nil {
		return "None"
	}
	return re.String()
}

// Print writes the rendered summary to w
func Print(w io.Writer, r *lipgloss.Renderer, s Summary) error {
	_, err := io.WriteString(w, s.Render(r))
	return err
}
