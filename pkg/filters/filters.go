// Package filters implements the string transforms applied to captured
// output (and to templated inputs) before matchers compare them.
//
// A Filter is a pure function string -> string. Filters is an ordered chain
// of filters and is itself a Filter.
package filters

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Filter transforms a string.
type Filter interface {
	Apply(value string) string
	// Name is the configuration key of the filter kind.
	Name() string
}

// Apply folds value through filters left to right.
func Apply(value string, filters ...Filter) string {
	for _, f := range filters {
		value = f.Apply(value)
	}
	return value
}

// Filters is an ordered filter chain.
type Filters []Filter

// Apply runs the chain.
func (fs Filters) Apply(value string) string {
	return Apply(value, fs...)
}

// Name implements Filter.
func (fs Filters) Name() string { return "filters" }

// Extend returns a new chain with other appended. The receiver is never
// modified, so an inherited chain can be extended safely by each child.
func (fs Filters) Extend(other ...Filter) Filters {
	out := make(Filters, 0, len(fs)+len(other))
	out = append(out, fs...)
	return append(out, other...)
}

func (fs Filters) String() string {
	names := make([]string, len(fs))
	for i, f := range fs {
		names[i] = f.Name()
	}
	return "Filters<" + strings.Join(names, ",") + ">"
}

// Uppercase converts to upper case, Unicode-aware and locale-independent.
type Uppercase struct{}

func (Uppercase) Apply(v string) string { return cases.Upper(language.Und).String(v) }
func (Uppercase) Name() string          { return "uppercase" }

// Lowercase converts to lower case, Unicode-aware and locale-independent.
type Lowercase struct{}

func (Lowercase) Apply(v string) string { return cases.Lower(language.Und).String(v) }
func (Lowercase) Name() string          { return "lowercase" }

// Trim removes leading and trailing whitespace.
type Trim struct{}

func (Trim) Apply(v string) string { return strings.TrimSpace(v) }
func (Trim) Name() string          { return "trim" }

// IgnoreSpaces removes every space character.
type IgnoreSpaces struct{}

func (IgnoreSpaces) Apply(v string) string { return strings.ReplaceAll(v, " ", "") }
func (IgnoreSpaces) Name() string          { return "ignorespaces" }

// Replace substitutes every literal, non-overlapping occurrence of Search.
type Replace struct {
	Search      string
	Replacement string
}

func (r Replace) Apply(v string) string {
	if r.Search == "" {
		return v
	}
	return strings.ReplaceAll(v, r.Search, r.Replacement)
}
func (Replace) Name() string { return "replace" }

// Regex substitutes matches of a pattern compiled at construction time.
type Regex struct {
	re          *regexp.Regexp
	replacement string
	all         bool
}

// NewRegex compiles pattern with the given flags. Flags are a subset of
// "gims": i case-insensitive, m multiline, s dot matches newline, g replace
// every match. An empty flag string replaces every match; a non-empty one
// replaces only the first unless it contains g. Replacement refers to
// groups sed-style (\1) or by name (\g<name>); "$" is literal. A reference
// to a group the pattern does not have is an error.
func NewRegex(pattern, replacement, flags string) (*Regex, error) {
	all := flags == ""
	var inline strings.Builder
	for _, f := range flags {
		switch f {
		case 'g':
			all = true
		case 'i', 'm', 's':
			if !strings.ContainsRune(inline.String(), f) {
				inline.WriteRune(f)
			}
		default:
			return nil, fmt.Errorf("regex filter: unknown flag %q", f)
		}
	}
	expr := pattern
	if inline.Len() > 0 {
		expr = "(?" + inline.String() + ")" + pattern
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("regex filter: %w", err)
	}
	repl, err := convertBackrefs(re, replacement)
	if err != nil {
		return nil, fmt.Errorf("regex filter: %w", err)
	}
	return &Regex{re: re, replacement: repl, all: all}, nil
}

func (r *Regex) Apply(v string) string {
	if r.all {
		return r.re.ReplaceAllString(v, r.replacement)
	}
	loc := r.re.FindStringSubmatchIndex(v)
	if loc == nil {
		return v
	}
	dst := r.re.ExpandString(nil, r.replacement, v, loc)
	return v[:loc[0]] + string(dst) + v[loc[1]:]
}

func (*Regex) Name() string { return "regex" }

// Pattern returns the compiled expression.
func (r *Regex) Pattern() string { return r.re.String() }

// convertBackrefs rewrites a sed-style replacement into the template syntax
// of regexp.Expand.
func convertBackrefs(re *regexp.Regexp, s string) (string, error) {
	var b strings.Builder
	group := func(ref string) error {
		if n, err := strconv.Atoi(ref); err == nil {
			if n > re.NumSubexp() {
				return fmt.Errorf("invalid group reference \\%d", n)
			}
		} else if re.SubexpIndex(ref) < 0 {
			return fmt.Errorf("unknown group name %q", ref)
		}
		b.WriteString("${" + ref + "}")
		return nil
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '$':
			b.WriteString("$$")
		case c != '\\' || i+1 == len(s):
			b.WriteByte(c)
		case isDigit(s[i+1]):
			j := i + 1
			for j < len(s) && isDigit(s[j]) {
				j++
			}
			if err := group(s[i+1 : j]); err != nil {
				return "", err
			}
			i = j - 1
		case strings.HasPrefix(s[i+1:], "g<"):
			end := strings.IndexByte(s[i+3:], '>')
			if end < 0 {
				return "", fmt.Errorf("missing '>' in group reference")
			}
			if err := group(s[i+3 : i+3+end]); err != nil {
				return "", err
			}
			i += 3 + end
		case s[i+1] == '\\':
			b.WriteByte('\\')
			i++
		default:
			b.WriteByte(c)
		}
	}
	return b.String(), nil
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }
