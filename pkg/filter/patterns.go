package filter

import (
	"path/filepath"
	"strings"

	"github.com/moby/patternmatcher"
)

// Patterns matches paths against dockerignore-style globs such as
// "**/cache/**" or "*.tmp.zip". Exclusions with a leading "!" are honoured.
type Patterns struct {
	raw     []string
	matcher *patternmatcher.PatternMatcher
}

// CompilePatterns returns nil, nil when there are no patterns.
func CompilePatterns(patterns []string) (*Patterns, error) {
	if len(patterns) == 0 {
		return nil, nil
	}
	pm, err := patternmatcher.New(patterns)
	if err != nil {
		return nil, err
	}
	return &Patterns{raw: append([]string(nil), patterns...), matcher: pm}, nil
}

// Matches reports whether path, taken relative to root, is excluded.
// A nil receiver matches nothing.
func (p *Patterns) Matches(root, path string) bool {
	if p == nil {
		return false
	}
	rel := path
	if root != "" {
		if r, err := filepath.Rel(root, path); err == nil && !strings.HasPrefix(r, "..") {
			rel = r
		}
	}
	matched, err := p.matcher.MatchesOrParentMatches(filepath.ToSlash(rel))
	if err != nil {
		return false
	}
	return matched
}

// Strings returns the patterns as configured.
func (p *Patterns) Strings() []string {
	if p == nil {
		return nil
	}
	return append([]string(nil), p.raw...)
}
