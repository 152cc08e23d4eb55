package testutils

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/hexops/gotextdiff"
	"github.com/hexops/gotextdiff/myers"
	"github.com/mcuadros/go-defaults"
)

// TestingT is the part of testing.T the asserters need.
type TestingT interface {
	Errorf(format string, args ...interface{})
}

// TextAssertOptions controls how multi-line output is normalized before it
// is compared.
type TextAssertOptions struct {
	// TrimSpace trims the whole text before splitting it into lines.
	TrimSpace bool `default:"true"`
	// TrimLines trims trailing whitespace from every line.
	TrimLines bool `default:"true"`
	// Colors renders the diff in color with visible whitespace.
	Colors bool `default:"false"`
}

// TextOption adjusts TextAssertOptions.
type TextOption func(*TextAssertOptions)

// WithColors enables colored diffs.
func WithColors() TextOption {
	return func(o *TextAssertOptions) { o.Colors = true }
}

// Exact disables all normalization.
func Exact() TextOption {
	return func(o *TextAssertOptions) {
		o.TrimSpace = false
		o.TrimLines = false
	}
}

// TextAsserter compares rendered blocks such as LocalInfo output and
// reports a unified diff on mismatch.
type TextAsserter struct {
	t       TestingT
	options TextAssertOptions
}

// NewTextAsserter creates an asserter with the default options.
func NewTextAsserter(t TestingT, opts ...TextOption) *TextAsserter {
	o := TextAssertOptions{}
	defaults.SetDefaults(&o)
	for _, opt := range opts {
		opt(&o)
	}
	return &TextAsserter{t: t, options: o}
}

// Options returns the effective options.
func (ta *TextAsserter) Options() TextAssertOptions {
	return ta.options
}

// Assert fails the test when actual differs from expected after
// normalization. It returns whether the texts matched.
func (ta *TextAsserter) Assert(actual, expected string) bool {
	if d := ta.Diff(actual, expected); d != "" {
		ta.t.Errorf("Text assertion failed - unified diff:\n%s", d)
		return false
	}
	return true
}

// Diff returns the unified diff from expected to actual, or "" if they
// match.
func (ta *TextAsserter) Diff(actual, expected string) string {
	a, e := ta.normalize(actual), ta.normalize(expected)
	if a == e {
		return ""
	}

	edits := myers.ComputeEdits("", e, a)
	unified := fmt.Sprint(gotextdiff.ToUnified("expected", "actual", e, edits))
	if !ta.options.Colors {
		return unified
	}
	return colorize(unified)
}

func (ta *TextAsserter) normalize(text string) string {
	if ta.options.TrimSpace {
		text = strings.TrimSpace(text)
	}
	if !ta.options.TrimLines {
		return text
	}
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, " \t\r")
	}
	return strings.Join(lines, "\n")
}

func colorize(diff string) string {
	header := color.New(color.FgYellow)
	hunk := color.New(color.FgCyan)
	del := color.New(color.FgRed)
	add := color.New(color.FgGreen)
	for _, c := range []*color.Color{header, hunk, del, add} {
		c.EnableColor()
	}

	lines := strings.Split(diff, "\n")
	for i, line := range lines {
		switch {
		case strings.HasPrefix(line, "---"), strings.HasPrefix(line, "+++"):
			lines[i] = header.Sprint(line)
		case strings.HasPrefix(line, "@@"):
			lines[i] = hunk.Sprint(line)
		case strings.HasPrefix(line, "-"):
			lines[i] = del.Sprint(visibleWhitespace(line))
		case strings.HasPrefix(line, "+"):
			lines[i] = add.Sprint(visibleWhitespace(line))
		}
	}
	return strings.Join(lines, "\n")
}

func visibleWhitespace(line string) string {
	return strings.NewReplacer(" ", "·", "\t", "→").Replace(line)
}
