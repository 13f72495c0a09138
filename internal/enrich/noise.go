package enrich

import (
	"regexp"
	"strings"
	"unicode"
)

// NoiseFilter flags low-value titles (tutorials, course lists, roadmaps)
// before any reasoning call is made.
type NoiseFilter struct {
	re *regexp.Regexp
}

// NewNoiseFilter compiles keywords into one case-insensitive pattern.
// Keywords that start or end with a word character are anchored on word
// boundaries, and a trailing plural "s"/"es" is tolerated, so "learn" does
// not match "machine learning" while "tutorial" matches "Tutorials".
func NewNoiseFilter(keywords []string) *NoiseFilter {
	parts := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw == "" {
			continue
		}
		pattern := regexp.QuoteMeta(kw)
		runes := []rune(kw)
		if isWordRune(runes[0]) {
			pattern = `\b` + pattern
		}
		if isWordRune(runes[len(runes)-1]) {
			pattern += `(?:s|es)?\b`
		}
		parts = append(parts, pattern)
	}
	if len(parts) == 0 {
		return &NoiseFilter{}
	}
	return &NoiseFilter{re: regexp.MustCompile(`(?i)(?:` + strings.Join(parts, "|") + `)`)}
}

// Match returns the first noise keyword found in title.
func (f *NoiseFilter) Match(title string) (string, bool) {
	if f == nil || f.re == nil {
		return "", false
	}
	hit := f.re.FindString(title)
	return hit, hit != ""
}

func isWordRune(r rune) bool {
	return r == '_' || (r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)))
}
