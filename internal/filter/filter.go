// Package filter decides which log lines are displayed.
//
// Word lists are keyword sets: by default every word is matched literally,
// with regular expression metacharacters escaped. Setting Options.Regex
// switches every list (include, exclude and preset) to raw RE2 patterns.
package filter

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrInvalidPattern is returned when a word cannot be turned into a pattern
var ErrInvalidPattern = errors.New("invalid filter pattern")

// Verdict is the outcome of filtering a single line
type Verdict int

const (
	Admitted Verdict = iota
	Excluded
	NotIncluded
)

func (v Verdict) String() string {
	switch v {
	case Excluded:
		return "exclude"
	case NotIncluded:
		return "include"
	default:
		return "admitted"
	}
}

// Options holds the word lists a Filter is built from
type Options struct {
	Include               []string
	Exclude               []string
	PresetExcludes        []string
	DisablePresetExcludes bool
	Regex                 bool
}

// DefaultPresetExcludes returns the exclude words applied unless disabled
func DefaultPresetExcludes() []string {
	return []string{"aaa", "bbb", "ccc"}
}

// Filter holds the compiled include and exclude patterns. It is immutable
// and safe for concurrent use.
type Filter struct {
	include *regexp.Regexp
	exclude *regexp.Regexp
}

// New compiles both filters
func New(opts Options) (*Filter, error) {
	include, err := CompileInclude(opts.Include, opts.Regex)
	if err != nil {
		return nil, fmt.Errorf("include words: %w", err)
	}

	exclude, err := CompileExclude(opts.Exclude, opts.PresetExcludes, !opts.DisablePresetExcludes, opts.Regex)
	if err != nil {
		return nil, fmt.Errorf("exclude words: %w", err)
	}

	return &Filter{include: include, exclude: exclude}, nil
}

// CompileInclude builds the include pattern. An empty list yields nil.
func CompileInclude(words []string, regex bool) (*regexp.Regexp, error) {
	return compileWords(words, regex)
}

// CompileExclude builds the exclude pattern from the user words followed by
// the preset words when usePreset is set. Both empty yields nil.
func CompileExclude(words, preset []string, usePreset, regex bool) (*regexp.Regexp, error) {
	all := make([]string, 0, len(words)+len(preset))
	all = append(all, words...)
	if usePreset {
		all = append(all, preset...)
	}
	return compileWords(all, regex)
}

func compileWords(words []string, regex bool) (*regexp.Regexp, error) {
	if len(words) == 0 {
		return nil, nil
	}

	patterns := make([]string, 0, len(words))
	for _, word := range words {
		if word == "" {
			return nil, fmt.Errorf("%w: empty word", ErrInvalidPattern)
		}
		if !regex {
			patterns = append(patterns, regexp.QuoteMeta(word))
			continue
		}
		if _, err := regexp.Compile(word); err != nil {
			return nil, fmt.Errorf("%w: %q: %v", ErrInvalidPattern, word, err)
		}
		patterns = append(patterns, "(?:"+word+")")
	}

	re, err := regexp.Compile(strings.Join(patterns, "|"))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPattern, err)
	}
	return re, nil
}

// Admit reports whether a line passes both filters. A nil filter always passes.
func Admit(line string, include, exclude *regexp.Regexp) bool {
	return decide(line, include, exclude) == Admitted
}

func decide(line string, include, exclude *regexp.Regexp) Verdict {
	if exclude != nil && exclude.MatchString(line) {
		return Excluded
	}
	if include != nil && !include.MatchString(line) {
		return NotIncluded
	}
	return Admitted
}

// Admit reports whether the line should be displayed
func (f *Filter) Admit(line string) bool {
	return f.Decide(line) == Admitted
}

// Decide returns the verdict for a line, exclusion taking precedence
func (f *Filter) Decide(line string) Verdict {
	return decide(line, f.include, f.exclude)
}

// Include returns the compiled include pattern, or nil
func (f *Filter) Include() *regexp.Regexp {
	return f.include
}

// Exclude returns the compiled exclude pattern, or nil
func (f *Filter) Exclude() *regexp.Regexp {
	return f.exclude
}
