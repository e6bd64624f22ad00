package filter

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var preset = DefaultPresetExcludes()

func TestCompileEmptyListsYieldNoFilter(t *testing.T) {
	include, err := CompileInclude(nil, false)
	require.NoError(t, err)
	assert.Nil(t, include)

	exclude, err := CompileExclude(nil, preset, false, false)
	require.NoError(t, err)
	assert.Nil(t, exclude)

	exclude, err = CompileExclude([]string{}, nil, true, false)
	require.NoError(t, err)
	assert.Nil(t, exclude)
}

func TestCompileExcludeOrder(t *testing.T) {
	re, err := CompileExclude([]string{"temp"}, preset, true, false)
	require.NoError(t, err)
	assert.Equal(t, "temp|aaa|bbb|ccc", re.String())

	re, err = CompileExclude([]string{"temp"}, preset, false, false)
	require.NoError(t, err)
	assert.Equal(t, "temp", re.String())
}

func TestLiteralWordsAreEscaped(t *testing.T) {
	re, err := CompileInclude([]string{"a.b", "[x]"}, false)
	require.NoError(t, err)

	assert.True(t, re.MatchString("value a.b here"))
	assert.False(t, re.MatchString("value axb here"))
	assert.True(t, re.MatchString("got [x]"))
	assert.False(t, re.MatchString("got x"))
}

func TestRegexOptIn(t *testing.T) {
	re, err := CompileInclude([]string{"err(or)?", "^boot"}, true)
	require.NoError(t, err)

	assert.True(t, re.MatchString("an err happened"))
	assert.True(t, re.MatchString("boot sequence"))
	assert.False(t, re.MatchString("reboot"))
}

func TestInvalidPatterns(t *testing.T) {
	tests := []struct {
		name  string
		words []string
		regex bool
	}{
		{"empty literal word", []string{"ok", ""}, false},
		{"empty regex word", []string{""}, true},
		{"unbalanced regex", []string{"foo("}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := CompileInclude(tt.words, tt.regex)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidPattern))

			_, err = New(Options{Exclude: tt.words, Regex: tt.regex})
			assert.ErrorIs(t, err, ErrInvalidPattern)
		})
	}
}

func TestUnbalancedLiteralIsFine(t *testing.T) {
	f, err := New(Options{Include: []string{"foo("}})
	require.NoError(t, err)
	assert.True(t, f.Admit("call foo(1)"))
}

func TestAdmit(t *testing.T) {
	tests := []struct {
		name string
		opts Options
		line string
		want bool
	}{
		{
			name: "include match",
			opts: Options{Include: []string{"success"}, DisablePresetExcludes: true},
			line: "operation was a success",
			want: true,
		},
		{
			name: "include miss",
			opts: Options{Include: []string{"success"}, DisablePresetExcludes: true},
			line: "operation failed",
			want: false,
		},
		{
			name: "include is case sensitive",
			opts: Options{Include: []string{"success"}, DisablePresetExcludes: true},
			line: "SUCCESS",
			want: false,
		},
		{
			name: "exclude wins over include",
			opts: Options{Include: []string{"file"}, Exclude: []string{"temp"}, DisablePresetExcludes: true},
			line: "this is a temp file",
			want: false,
		},
		{
			name: "preset applies by default",
			opts: Options{PresetExcludes: preset},
			line: "this is an aaa message",
			want: false,
		},
		{
			name: "preset disabled",
			opts: Options{PresetExcludes: preset, DisablePresetExcludes: true},
			line: "this is an aaa message",
			want: true,
		},
		{
			name: "no filters",
			opts: Options{PresetExcludes: preset, DisablePresetExcludes: true},
			line: "anything at all",
			want: true,
		},
		{
			name: "empty line with no filters",
			opts: Options{},
			line: "",
			want: true,
		},
		{
			name: "invalid utf8",
			opts: Options{Include: []string{"ok"}},
			line: "ok \xff\xfe",
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := New(tt.opts)
			require.NoError(t, err)
			assert.Equal(t, tt.want, f.Admit(tt.line))
			assert.Equal(t, tt.want, Admit(tt.line, f.Include(), f.Exclude()))
		})
	}
}

func TestDecideReasons(t *testing.T) {
	f, err := New(Options{Include: []string{"keep"}, Exclude: []string{"drop"}})
	require.NoError(t, err)

	assert.Equal(t, Admitted, f.Decide("keep me"))
	assert.Equal(t, Excluded, f.Decide("keep but drop"))
	assert.Equal(t, NotIncluded, f.Decide("other"))
	assert.Equal(t, "exclude", Excluded.String())
	assert.Equal(t, "include", NotIncluded.String())
}

func TestAdmitNilFilters(t *testing.T) {
	for _, line := range []string{"", "x", "\x00\xff", "aaa"} {
		assert.True(t, Admit(line, nil, nil))
	}
}

func TestAnyExcludeWordRejects(t *testing.T) {
	words := []string{"temp", "debug", "noise"}
	f, err := New(Options{Exclude: words, DisablePresetExcludes: true})
	require.NoError(t, err)

	for _, w := range words {
		assert.False(t, f.Admit("prefix "+w+" suffix"), w)
		assert.False(t, f.Admit(w), w)
	}
	assert.True(t, f.Admit("clean line"))
}
