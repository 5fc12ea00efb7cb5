package text

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

// PolarityNormalizer removes negation and polarity markers so that a
// statement and its negated twin reduce to nearly the same string.
type PolarityNormalizer struct {
	markers []string
}

// NewPolarityNormalizer creates a normalizer. Markers are applied longest
// first so that compound markers win over their suffixes.
func NewPolarityNormalizer(markers []string) *PolarityNormalizer {
	sorted := make([]string, 0, len(markers))
	for _, m := range markers {
		if m = strings.TrimSpace(m); m != "" {
			sorted = append(sorted, m)
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		li, lj := utf8.RuneCountInString(sorted[i]), utf8.RuneCountInString(sorted[j])
		if li != lj {
			return li > lj
		}
		return sorted[i] < sorted[j]
	})
	return &PolarityNormalizer{markers: sorted}
}

// Normalize strips every marker, then punctuation, symbols and whitespace
func (p *PolarityNormalizer) Normalize(s string) string {
	for _, m := range p.markers {
		s = strings.ReplaceAll(s, m, "")
	}
	return StripPunctuation(s)
}

// StripPunctuation drops punctuation, symbols and whitespace
func StripPunctuation(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsPunct(r) || unicode.IsSymbol(r) || unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}
