// Package matchers implements the output predicates applied to a test's
// captured streams. A mismatch is returned as an *Issue, never as an error.
package matchers

import (
	"fmt"
	"regexp"
	"strings"
)

// Kind names a matcher predicate.
type Kind string

const (
	Equals   Kind = "equals"
	Contains Kind = "contains"
	Regex    Kind = "regex"
)

// Kinds lists the matcher keys accepted in test descriptions.
var Kinds = []Kind{Equals, Contains, Regex}

// Matcher is a single predicate with its expected value. Inverse flips the
// outcome, which is how "not" blocks are evaluated.
type Matcher struct {
	Kind     Kind
	Expected string
	Inverse  bool

	re *regexp.Regexp
}

// New builds a matcher. Regex patterns are compiled here so that an
// invalid pattern fails before any test runs.
func New(kind Kind, expected string, inverse bool) (*Matcher, error) {
	m := &Matcher{Kind: kind, Expected: expected, Inverse: inverse}
	switch kind {
	case Equals, Contains:
	case Regex:
		re, err := regexp.Compile(expected)
		if err != nil {
			return nil, fmt.Errorf("regex /%s/: %w", expected, err)
		}
		m.re = re
	default:
		return nil, fmt.Errorf("unknown matcher %q", kind)
	}
	return m, nil
}

// Not returns a copy of m with the opposite polarity.
func (m *Matcher) Not() *Matcher {
	c := *m
	c.Inverse = !m.Inverse
	return &c
}

// Match checks value and returns an issue on mismatch, or nil. stream is
// recorded on the issue.
func (m *Matcher) Match(value, stream string) *Issue {
	var failed bool
	switch m.Kind {
	case Equals:
		failed = value != m.Expected
	case Contains:
		failed = !strings.Contains(value, m.Expected)
	case Regex:
		re := m.re
		if re == nil {
			re = regexp.MustCompile(m.Expected)
		}
		failed = !re.MatchString(value)
	}
	if failed == m.Inverse {
		return nil
	}
	return &Issue{
		Kind:     issueKind(m.Kind),
		Stream:   stream,
		Expected: m.Expected,
		Actual:   value,
		Inverse:  m.Inverse,
	}
}

func (m *Matcher) String() string {
	if m.Inverse {
		return fmt.Sprintf("not %s %q", m.Kind, m.Expected)
	}
	return fmt.Sprintf("%s %q", m.Kind, m.Expected)
}

// Evaluate checks actual against a matcher built from kind and expected.
// Construction failures (unknown kind, invalid pattern) are returned as
// errors; mismatches as an issue.
func Evaluate(kind Kind, expected, actual string, inverse bool) (*Issue, error) {
	m, err := New(kind, expected, inverse)
	if err != nil {
		return nil, err
	}
	return m.Match(actual, ""), nil
}

func issueKind(k Kind) IssueKind {
	switch k {
	case Contains:
		return InvalidContains
	case Regex:
		return InvalidRegex
	default:
		return InvalidEquals
	}
}
