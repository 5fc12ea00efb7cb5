// Package rules loads the domain tables the pipeline is parameterised with:
// categories and their markers, the out-of-scope deny-list, polarity
// markers, citation patterns and the quality rule table.
package rules

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultYAML []byte

// Ruleset is the complete injected configuration
type Ruleset struct {
	Stopwords        []string      `yaml:"stopwords"`
	PolarityMarkers  []string      `yaml:"polarity_markers"`
	CitationPatterns []string      `yaml:"citation_patterns"`
	DenyList         []DenyEntry   `yaml:"deny_list"`
	Categories       []Category    `yaml:"categories"`
	QualityRules     []QualityRule `yaml:"quality_rules"`
}

// DenyEntry is an out-of-scope domain marker
type DenyEntry struct {
	Marker string `yaml:"marker"`
	Reason string `yaml:"reason"`
}

// Category is one member of the closed category set. Keywords drive
// category suggestion; categories are tried in file order.
type Category struct {
	Name     string   `yaml:"name"`
	Allowed  []string `yaml:"allowed"`
	Excluded []string `yaml:"excluded"`
	Keywords []string `yaml:"keywords"`
}

// QualityRule is one row of the quality scorer's rule table
type QualityRule struct {
	Kind     string   `yaml:"kind"`
	Severity string   `yaml:"severity"`
	Penalty  int      `yaml:"penalty"`
	Match    string   `yaml:"match"` // pattern, min_length, max_length, missing_citation
	Terms    []string `yaml:"terms,omitempty"`
	Patterns []string `yaml:"patterns,omitempty"`
	Message  string   `yaml:"message"`
}

// Match kinds understood by the quality scorer
const (
	MatchPattern         = "pattern"
	MatchMinLength       = "min_length"
	MatchMaxLength       = "max_length"
	MatchMissingCitation = "missing_citation"
)

// Default returns the built-in rule table
func Default() (*Ruleset, error) {
	return Parse(defaultYAML)
}

// DefaultYAML returns a copy of the built-in rule table source
func DefaultYAML() []byte {
	return append([]byte(nil), defaultYAML...)
}

// Load reads a rule table from a YAML file
func Load(path string) (*Ruleset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules: %w", err)
	}
	rs, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return rs, nil
}

// LoadOrDefault loads path, or the built-in table when path is empty
func LoadOrDefault(path string) (*Ruleset, error) {
	if path == "" {
		return Default()
	}
	return Load(path)
}

// Parse decodes and checks a rule table
func Parse(data []byte) (*Ruleset, error) {
	var rs Ruleset
	if err := yaml.Unmarshal(data, &rs); err != nil {
		return nil, fmt.Errorf("parse rules: %w", err)
	}
	if err := rs.Check(); err != nil {
		return nil, err
	}
	return &rs, nil
}

// Check reports structural problems in the table
func (rs *Ruleset) Check() error {
	if len(rs.Categories) == 0 {
		return fmt.Errorf("rules: no categories defined")
	}

	seen := make(map[string]bool, len(rs.Categories))
	for i, c := range rs.Categories {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			return fmt.Errorf("rules: category %d has no name", i)
		}
		if seen[name] {
			return fmt.Errorf("rules: duplicate category %q", name)
		}
		seen[name] = true
	}

	for i, d := range rs.DenyList {
		if strings.TrimSpace(d.Marker) == "" {
			return fmt.Errorf("rules: deny_list entry %d has no marker", i)
		}
	}

	for i, q := range rs.QualityRules {
		switch q.Severity {
		case "low", "medium", "high":
		default:
			return fmt.Errorf("rules: quality rule %d (%s): unknown severity %q", i, q.Kind, q.Severity)
		}
		switch q.Match {
		case MatchPattern:
			if len(q.Terms) == 0 && len(q.Patterns) == 0 {
				return fmt.Errorf("rules: quality rule %d (%s): pattern rule needs terms or patterns", i, q.Kind)
			}
		case MatchMinLength, MatchMaxLength, MatchMissingCitation:
		default:
			return fmt.Errorf("rules: quality rule %d (%s): unknown match %q", i, q.Kind, q.Match)
		}
		if q.Penalty < 0 {
			return fmt.Errorf("rules: quality rule %d (%s): negative penalty", i, q.Kind)
		}
	}

	return nil
}
