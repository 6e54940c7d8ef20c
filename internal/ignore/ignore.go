// Package ignore matches relative paths against doublestar patterns.
//
// A pattern containing a slash is matched against the whole forward-slash path.
// A pattern without one is matched against the last path element, so "*.tmp"
// excludes temporary files at any depth.
package ignore

import (
	"path"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/input-output-hk/catalyst-forge-libs/aws/s3deploy/errors"
)

// Matcher reports whether a path is excluded by any of its patterns.
// The zero value and a nil *Matcher match nothing.
type Matcher struct {
	patterns []string
}

// New validates patterns and returns a Matcher for them.
func New(patterns []string) (*Matcher, error) {
	m := &Matcher{patterns: make([]string, 0, len(patterns))}
	for _, p := range patterns {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if !doublestar.ValidatePattern(p) {
			return nil, errors.NewValidationError("bad ignore pattern").WithKey(p)
		}
		m.patterns = append(m.patterns, strings.TrimPrefix(p, "/"))
	}
	return m, nil
}

// Patterns returns the normalized patterns.
func (m *Matcher) Patterns() []string {
	if m == nil {
		return []string{}
	}
	out := make([]string, len(m.patterns))
	copy(out, m.patterns)
	return out
}

// Empty reports whether the matcher has no patterns.
func (m *Matcher) Empty() bool {
	return m == nil || len(m.patterns) == 0
}

// Match reports whether rel is excluded.
func (m *Matcher) Match(rel string) bool {
	if m.Empty() || rel == "" {
		return false
	}
	base := path.Base(rel)
	for _, p := range m.patterns {
		target := rel
		if !strings.Contains(p, "/") {
			target = base
		}
		// patterns were validated in New
		if ok, _ := doublestar.Match(p, target); ok {
			return true
		}
	}
	return false
}
