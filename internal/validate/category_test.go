package validate

import (
	"testing"

	"github.com/ppiankov/quizlint/internal/rules"
)

func testRuleset() *rules.Ruleset {
	return &rules.Ruleset{
		DenyList: []rules.DenyEntry{
			{Marker: "Traffic Act", Reason: "out of scope"},
		},
		Categories: []rules.Category{
			{Name: "licensing", Allowed: []string{"licence"}, Excluded: []string{"prize"}, Keywords: []string{"licence", "permit"}},
			{Name: "prizes", Allowed: []string{"prize"}, Keywords: []string{"prize", "permit"}},
			{Name: "open", Keywords: []string{"hours"}},
		},
	}
}

func TestCatalog_Names(t *testing.T) {
	c := NewCatalog(testRuleset())

	names := c.Names()
	if len(names) != 3 || names[0] != "licensing" || names[2] != "open" {
		t.Errorf("unexpected names %v", names)
	}
	if !c.Has(" prizes ") {
		t.Error("expected category lookup to ignore surrounding space")
	}
	if c.Has("history") {
		t.Error("unexpected category")
	}
}

func TestCatalog_Matching(t *testing.T) {
	c := NewCatalog(testRuleset())

	tests := []struct {
		desc     string
		got      bool
		expected bool
	}{
		{"deny marker found case-insensitively", len(c.DenyMatches("under the TRAFFIC ACT")) == 1, true},
		{"deny marker found after NFKC folding", len(c.DenyMatches("Ｔｒａｆｆｉｃ Ａｃｔ")) == 1, true},
		{"no deny marker", len(c.DenyMatches("licence renewal")) == 0, true},
		{"excluded marker for category", len(c.ExcludedMatches("licensing", "a prize draw")) == 1, true},
		{"excluded marker of another category ignored", len(c.ExcludedMatches("prizes", "a prize draw")) == 0, true},
		{"excluded on unknown category", len(c.ExcludedMatches("nope", "a prize draw")) == 0, true},
		{"allowed marker present", c.HasAllowedMarker("licensing", "licence renewal"), true},
		{"allowed marker missing", c.HasAllowedMarker("licensing", "renewal"), false},
		{"empty allowed list accepts anything", c.HasAllowedMarker("open", "anything"), true},
		{"unknown category has no markers", c.HasAllowedMarker("nope", "licence"), false},
	}

	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			if tt.got != tt.expected {
				t.Errorf("Expected %v, got %v", tt.expected, tt.got)
			}
		})
	}
}

func TestCatalog_SuggestFirstMatchWins(t *testing.T) {
	c := NewCatalog(testRuleset())

	// "permit" is a keyword of both licensing and prizes; table order decides
	for i := 0; i < 10; i++ {
		got, ok := c.Suggest("a permit for a prize")
		if !ok || got != "licensing" {
			t.Fatalf("run %d: expected licensing, got %q (%v)", i, got, ok)
		}
	}

	if got, ok := c.Suggest("opening hours"); !ok || got != "open" {
		t.Errorf("expected open, got %q", got)
	}
	if _, ok := c.Suggest("nothing relevant"); ok {
		t.Error("expected no suggestion")
	}
}
