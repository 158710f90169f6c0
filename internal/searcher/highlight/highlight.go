// Package highlight marks query matches in display text.
package highlight

import (
	"regexp"
	"strings"
)

const (
	DefaultTag       = "mark"
	DefaultClassName = "search-highlight"
)

// Options controls the markup produced by Matches.
type Options struct {
	Tag           string
	ClassName     string
	CaseSensitive bool
	// Escape, when set, is applied to the text between and inside matches
	// before markup is inserted. Matching always runs on the raw text.
	Escape func(string) string
}

// DefaultOptions returns <mark class="search-highlight"> markup with
// case-insensitive matching.
func DefaultOptions() Options {
	return Options{Tag: DefaultTag, ClassName: DefaultClassName}
}

// Matches wraps every occurrence of query in text with the configured tag.
// The query is matched literally. Empty text or query returns text as is,
// escaped when Escape is set.
func Matches(text, query string, opts Options) string {
	if text == "" || query == "" {
		if opts.Escape != nil {
			return opts.Escape(text)
		}
		return text
	}
	if opts.Tag == "" {
		opts.Tag = DefaultTag
	}
	if opts.ClassName == "" {
		opts.ClassName = DefaultClassName
	}
	pattern := regexp.QuoteMeta(query)
	if !opts.CaseSensitive {
		pattern = "(?i)" + pattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return text
	}
	escape := opts.Escape
	if escape == nil {
		escape = func(s string) string { return s }
	}
	spans := re.FindAllStringIndex(text, -1)
	if len(spans) == 0 {
		return escape(text)
	}
	open := "<" + opts.Tag + ` class="` + opts.ClassName + `">`
	closing := "</" + opts.Tag + ">"
	var b strings.Builder
	last := 0
	for _, sp := range spans {
		b.WriteString(escape(text[last:sp[0]]))
		b.WriteString(open)
		b.WriteString(escape(text[sp[0]:sp[1]]))
		b.WriteString(closing)
		last = sp[1]
	}
	b.WriteString(escape(text[last:]))
	return b.String()
}
