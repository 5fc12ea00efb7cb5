package validate

import (
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/ppiankov/quizlint/internal/rules"
)

// Catalog is the compiled form of the category and deny-list tables
type Catalog struct {
	order      []string // Category names in suggestion order
	categories map[string]*categoryEntry
	deny       []denyMarker
}

type categoryEntry struct {
	name     string
	allowed  []string
	excluded []string
	keywords []string
}

type denyMarker struct {
	marker string
	reason string
}

// NewCatalog compiles a rule set. Markers are NFKC-folded once here so
// matching is a plain substring test.
func NewCatalog(rs *rules.Ruleset) *Catalog {
	c := &Catalog{
		categories: make(map[string]*categoryEntry, len(rs.Categories)),
	}

	for _, cat := range rs.Categories {
		name := strings.TrimSpace(cat.Name)
		c.order = append(c.order, name)
		c.categories[name] = &categoryEntry{
			name:     name,
			allowed:  foldAll(cat.Allowed),
			excluded: foldAll(cat.Excluded),
			keywords: foldAll(cat.Keywords),
		}
	}

	for _, d := range rs.DenyList {
		if m := fold(d.Marker); m != "" {
			c.deny = append(c.deny, denyMarker{marker: m, reason: d.Reason})
		}
	}

	return c
}

// Names returns the closed category set in suggestion order
func (c *Catalog) Names() []string {
	return append([]string(nil), c.order...)
}

// Has reports whether name is a known category
func (c *Catalog) Has(name string) bool {
	_, ok := c.categories[strings.TrimSpace(name)]
	return ok
}

// DenyMatches returns the deny-list entries found in text
func (c *Catalog) DenyMatches(text string) []denyMarker {
	text = fold(text)
	var hits []denyMarker
	for _, d := range c.deny {
		if strings.Contains(text, d.marker) {
			hits = append(hits, d)
		}
	}
	return hits
}

// ExcludedMatches returns the markers excluded for category found in text
func (c *Catalog) ExcludedMatches(category, text string) []string {
	entry, ok := c.categories[strings.TrimSpace(category)]
	if !ok {
		return nil
	}
	return containsAny(fold(text), entry.excluded)
}

// HasAllowedMarker reports whether text carries any of the category's
// topic markers. Categories with no allowed list accept any text.
func (c *Catalog) HasAllowedMarker(category, text string) bool {
	entry, ok := c.categories[strings.TrimSpace(category)]
	if !ok {
		return false
	}
	if len(entry.allowed) == 0 {
		return true
	}
	return len(containsAny(fold(text), entry.allowed)) > 0
}

// Suggest returns the first category, in table order, whose keywords occur
// in text.
func (c *Catalog) Suggest(text string) (string, bool) {
	text = fold(text)
	for _, name := range c.order {
		if len(containsAny(text, c.categories[name].keywords)) > 0 {
			return name, true
		}
	}
	return "", false
}

func containsAny(text string, markers []string) []string {
	var hits []string
	for _, m := range markers {
		if strings.Contains(text, m) {
			hits = append(hits, m)
		}
	}
	return hits
}

func fold(s string) string {
	return strings.ToLower(norm.NFKC.String(strings.TrimSpace(s)))
}

func foldAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if f := fold(s); f != "" {
			out = append(out, f)
		}
	}
	return out
}
