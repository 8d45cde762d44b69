// Package interpret turns free-form provider text into typed profiles.
//
// Each field owns an ordered list of matchers, from the explicit
// "Label: value" lines the provider was asked to emit down to loose
// natural-language phrasing. The first non-empty capture wins; otherwise
// the field's documented default is used. Parsing never fails.
package interpret

import (
	"regexp"
	"strings"
)

// Matcher extracts a raw value for one field from provider text.
type Matcher interface {
	Match(text string) (string, bool)
}

// MatcherFunc adapts a function to Matcher.
type MatcherFunc func(text string) (string, bool)

// Match calls f.
func (f MatcherFunc) Match(text string) (string, bool) {
	return f(text)
}

// Field is a named target with its matcher cascade.
type Field struct {
	Name     string
	Matchers []Matcher
}

// Extract runs the cascade and returns the first non-empty capture.
func (f Field) Extract(text string) (string, bool) {
	for _, m := range f.Matchers {
		if v, ok := m.Match(text); ok {
			if v = clean(v); v != "" {
				return v, true
			}
		}
	}
	return "", false
}

// labelPattern builds a line-anchored "Label: value" regexp. Markdown bullets,
// headings and bold markers around the label are tolerated.
func labelPattern(names []string) string {
	alts := make([]string, len(names))
	for i, n := range names {
		alts[i] = strings.ReplaceAll(regexp.QuoteMeta(n), " ", `[ \t_-]*`)
	}
	return `(?im)^[ \t>*#•-]*(?:` + strings.Join(alts, "|") + `)[ \t]*\**[ \t]*[:=][ \t]*\**[ \t]*(.*?)[ \t]*$`
}

// Label matches a single "Label: value" line.
func Label(names ...string) Matcher {
	re := regexp.MustCompile(labelPattern(names))
	return MatcherFunc(func(text string) (string, bool) {
		m := re.FindStringSubmatch(text)
		if m == nil || strings.TrimSpace(m[1]) == "" {
			return "", false
		}
		return m[1], true
	})
}

var bulletLine = regexp.MustCompile(`^\s*(?:[-*•]|\d+[.)])\s+`)

// Section matches a label and the bullet lines that follow it, joined by
// newlines. The value on the label line itself is included when present.
func Section(names ...string) Matcher {
	re := regexp.MustCompile(labelPattern(names))
	return MatcherFunc(func(text string) (string, bool) {
		lines := strings.Split(text, "\n")
		for i, line := range lines {
			m := re.FindStringSubmatch(line)
			if m == nil {
				continue
			}
			var parts []string
			if v := strings.TrimSpace(m[1]); v != "" {
				parts = append(parts, v)
			}
			for _, next := range lines[i+1:] {
				if !bulletLine.MatchString(next) {
					break
				}
				parts = append(parts, next)
			}
			if len(parts) == 0 {
				continue
			}
			return strings.Join(parts, "\n"), true
		}
		return "", false
	})
}

// Phrase matches a free-text pattern and returns its first capture group.
func Phrase(pattern string) Matcher {
	re := regexp.MustCompile(pattern)
	return MatcherFunc(func(text string) (string, bool) {
		m := re.FindStringSubmatch(text)
		if len(m) < 2 {
			return "", false
		}
		return m[1], true
	})
}

func clean(v string) string {
	return strings.Trim(strings.TrimSpace(v), " *_\"'`")
}
