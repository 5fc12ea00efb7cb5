package text

import (
	"strings"
	"unicode"
	"unicode/utf8"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/text/unicode/norm"
)

// KeywordSet is an unordered set of significant tokens
type KeywordSet map[string]struct{}

// Has reports whether the set contains token
func (s KeywordSet) Has(token string) bool {
	_, ok := s[token]
	return ok
}

// script is the writing system a rune belongs to for segmentation
type script int

const (
	scriptNone script = iota
	scriptHan
	scriptKatakana
	scriptHiragana
	scriptWord // Latin, digits and other alphabetic scripts
)

// Tokenizer extracts keyword sets from statements. Japanese has no word
// delimiters, so text is segmented at script boundaries: kanji and katakana
// runs carry the content, hiragana runs are inflection and particles.
type Tokenizer struct {
	stopwords  map[string]struct{}
	minRunes   int
	bigramSpan int // Han runs longer than this also yield overlapping bigrams
	memo       *gocache.Cache
}

// NewTokenizer creates a tokenizer with the given stopwords
func NewTokenizer(stopwords []string) *Tokenizer {
	stops := make(map[string]struct{}, len(stopwords))
	for _, w := range stopwords {
		stops[normalizeToken(w)] = struct{}{}
	}
	return &Tokenizer{
		stopwords:  stops,
		minRunes:   2,
		bigramSpan: 4,
		memo:       gocache.New(gocache.NoExpiration, 0),
	}
}

// ExtractKeywords returns the significant tokens of text. The returned set
// is shared with the tokenizer's memo and must not be modified.
func (t *Tokenizer) ExtractKeywords(text string) KeywordSet {
	if cached, ok := t.memo.Get(text); ok {
		return cached.(KeywordSet)
	}

	set := make(KeywordSet)
	for _, seg := range segment(norm.NFKC.String(text)) {
		t.add(set, seg)
	}

	t.memo.SetDefault(text, set)
	return set
}

func (t *Tokenizer) add(set KeywordSet, seg segmentRun) {
	for _, tok := range t.expand(seg) {
		set[tok] = struct{}{}
	}
}

// expand filters a run and, for long kanji compounds, adds its bigrams
func (t *Tokenizer) expand(seg segmentRun) []string {
	if seg.script == scriptHiragana || seg.script == scriptNone {
		return nil
	}

	word := normalizeToken(seg.text)
	n := utf8.RuneCountInString(word)
	if n < t.minRunes || t.isStopword(word) {
		return nil
	}

	out := []string{word}
	if seg.script == scriptHan && n > t.bigramSpan {
		runes := []rune(word)
		for i := 0; i+1 < len(runes); i++ {
			bg := string(runes[i : i+2])
			if !t.isStopword(bg) {
				out = append(out, bg)
			}
		}
	}
	return out
}

func (t *Tokenizer) isStopword(word string) bool {
	_, ok := t.stopwords[word]
	return ok
}

type segmentRun struct {
	text   string
	script script
}

// segment splits text into maximal runs of a single script. Punctuation,
// symbols and whitespace end a run and are discarded.
func segment(text string) []segmentRun {
	var runs []segmentRun
	var current strings.Builder
	currentScript := scriptNone

	flush := func() {
		if current.Len() > 0 {
			runs = append(runs, segmentRun{text: current.String(), script: currentScript})
			current.Reset()
		}
		currentScript = scriptNone
	}

	for _, r := range text {
		s := classify(r)
		if s == scriptNone {
			flush()
			continue
		}
		if s != currentScript {
			flush()
			currentScript = s
		}
		current.WriteRune(r)
	}
	flush()

	return runs
}

func classify(r rune) script {
	switch {
	case unicode.Is(unicode.Han, r) || r == '々' || r == '〆':
		return scriptHan
	case unicode.Is(unicode.Katakana, r) || r == 'ー':
		return scriptKatakana
	case unicode.Is(unicode.Hiragana, r):
		return scriptHiragana
	case unicode.IsLetter(r) || unicode.IsDigit(r):
		return scriptWord
	default:
		return scriptNone
	}
}

func normalizeToken(s string) string {
	return strings.ToLower(norm.NFKC.String(strings.TrimSpace(s)))
}
