package evolution

import (
	"strings"

	ahocorasick "github.com/petar-dambovaliev/aho-corasick"
)

// DefaultRole is assigned when no arc tag matches a role rule.
const DefaultRole = "supporting"

// RoleRule maps substring patterns found in arc tags to a narrative role.
type RoleRule struct {
	Role     string   `json:"role" yaml:"role"`
	Patterns []string `json:"patterns" yaml:"patterns"`
}

// DefaultRoleRules lists the built-in role rules, earliest wins.
func DefaultRoleRules() []RoleRule {
	return []RoleRule{
		{Role: "protagonist", Patterns: []string{"protagonist", "lead", "hero"}},
		{Role: "antagonist", Patterns: []string{"antagonist", "villain", "rival"}},
		{Role: "mentor", Patterns: []string{"mentor", "elder", "guide"}},
		{Role: "love-interest", Patterns: []string{"romance", "love"}},
		{Role: "comic-relief", Patterns: []string{"comic", "trickster"}},
	}
}

// RoleMatcher scans arc tags with a single Aho-Corasick automaton.
type RoleMatcher struct {
	ac          ahocorasick.AhoCorasick
	rules       []RoleRule
	patternRule []int // pattern index -> rule index
	empty       bool
}

// NewRoleMatcher compiles rules into a matcher.
func NewRoleMatcher(rules []RoleRule) *RoleMatcher {
	m := &RoleMatcher{rules: rules}

	var patterns []string
	for i, r := range rules {
		for _, p := range r.Patterns {
			p = strings.ToLower(strings.TrimSpace(p))
			if p == "" {
				continue
			}
			patterns = append(patterns, p)
			m.patternRule = append(m.patternRule, i)
		}
	}
	if len(patterns) == 0 {
		m.empty = true
		return m
	}

	builder := ahocorasick.NewAhoCorasickBuilder(ahocorasick.Opts{
		AsciiCaseInsensitive: true,
		MatchOnlyWholeWords:  false,
		MatchKind:            ahocorasick.LeftMostLongestMatch,
	})
	m.ac = builder.Build(patterns)
	return m
}

// Infer returns the role of the earliest rule matched by any tag.
func (m *RoleMatcher) Infer(tags []string) string {
	if m.empty {
		return DefaultRole
	}

	best := len(m.rules)
	for _, tag := range tags {
		for _, match := range m.ac.FindAll(strings.ToLower(tag)) {
			if r := m.patternRule[match.Pattern()]; r < best {
				best = r
			}
		}
	}
	if best == len(m.rules) {
		return DefaultRole
	}
	return m.rules[best].Role
}
