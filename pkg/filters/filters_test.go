package filters

import (
	"errors"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func mustRegex(t *testing.T, pattern, repl, flags string) *Regex {
	t.Helper()
	r, err := NewRegex(pattern, repl, flags)
	if err != nil {
		t.Fatalf("NewRegex(%q): %v", pattern, err)
	}
	return r
}

func TestBuiltinFilters(t *testing.T) {
	tests := []struct {
		name   string
		filter Filter
		in     string
		want   string
	}{
		{"uppercase", Uppercase{}, "hello", "HELLO"},
		{"uppercase unicode", Uppercase{}, "élan ça", "ÉLAN ÇA"},
		{"lowercase", Lowercase{}, "HELLO", "hello"},
		{"lowercase unicode", Lowercase{}, "ÉCOLE", "école"},
		{"trim", Trim{}, "  hello \n", "hello"},
		{"trim keeps inner", Trim{}, " a b ", "a b"},
		{"ignorespaces", IgnoreSpaces{}, "hello   world", "helloworld"},
		{"ignorespaces keeps newlines", IgnoreSpaces{}, "a b\nc d", "ab\ncd"},
		{"replace", Replace{Search: "hello", Replacement: "world"}, "hello world", "world world"},
		{"replace non overlapping", Replace{Search: "aa", Replacement: "b"}, "aaa", "ba"},
		{"replace empty search", Replace{Search: "", Replacement: "x"}, "abc", "abc"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.filter.Apply(tt.in); got != tt.want {
				t.Errorf("Apply(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestRegexFilter(t *testing.T) {
	tests := []struct {
		name                 string
		pattern, repl, flags string
		in, want             string
	}{
		{"all by default", "[aeiou]", "-", "", "hello world", "h-ll- w-rld"},
		{"first only without g", "[aeiou]", "-", "i", "hello world", "h-llo world"},
		{"g flag", "[aeiou]", "-", "g", "hello world", "h-ll- w-rld"},
		{"case insensitive", "HELLO", "bye", "gi", "hello Hello", "bye bye"},
		{"sed backrefs", `(\w+)@(\w+)`, `\2 at \1`, "", "me@home", "home at me"},
		{"named backrefs", `(?P<user>\w+)@(?P<host>\w+)`, `\g<host> at \g<user>`, "g", "me@home", "home at me"},
		{"dollar is literal", `\d+`, `$x`, "", "a1", "a$x"},
		{"dollar number is literal", `(\d+)`, `USD$1`, "", "cost 5", "cost USD$1"},
		{"escaped backslash", `-`, `\\`, "", "a-b", `a\b`},
		{"multi-digit group", `(a)(b)(c)(d)(e)(f)(g)(h)(i)(j)`, `\10\1`, "", "abcdefghij", "ja"},
		{"dotall", "a.b", "X", "s", "a\nb", "X"},
		{"multiline", "^x", "y", "mg", "x\nx", "y\ny"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := mustRegex(t, tt.pattern, tt.repl, tt.flags)
			if got := r.Apply(tt.in); got != tt.want {
				t.Errorf("Apply(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestRegexInvalid(t *testing.T) {
	if _, err := NewRegex("(", "", ""); err == nil {
		t.Error("expected error for invalid pattern")
	}
	for _, repl := range []string{`\2`, `\g<nope>`, `\g<1`} {
		if _, err := NewRegex("(a)", repl, ""); err == nil {
			t.Errorf("expected error for replacement %q", repl)
		}
	}
	if _, err := NewRegex("a", "", "x"); err == nil {
		t.Error("expected error for unknown flag")
	}
}

func TestNew(t *testing.T) {
	f, err := New("replace", Params{Search: "a", Replace: "b"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if got := f.Apply("aaa"); got != "bbb" {
		t.Errorf("got %q", got)
	}
	if _, err := New("nope", Params{}); err == nil {
		t.Error("expected error for unknown kind")
	}
	if _, err := New("ignore-spaces", Params{}); err != nil {
		t.Errorf("alias: %v", err)
	}
}

func TestExtendDoesNotAlias(t *testing.T) {
	base := make(Filters, 0, 4)
	base = append(base, Trim{})
	a := base.Extend(Uppercase{})
	b := base.Extend(Lowercase{})
	if got := a.Apply(" Hi "); got != "HI" {
		t.Errorf("a = %q, want HI", got)
	}
	if got := b.Apply(" Hi "); got != "hi" {
		t.Errorf("b = %q, want hi", got)
	}
	if len(base) != 1 {
		t.Errorf("base modified: %v", base)
	}
}

func TestFiltersIsAFilter(t *testing.T) {
	inner := Filters{Trim{}, Uppercase{}}
	outer := Filters{inner, Replace{Search: "O", Replacement: "0"}}
	if got := outer.Apply("  foo "); got != "F00" {
		t.Errorf("got %q, want F00", got)
	}
}

type mapEvaluator map[string]string

func (m mapEvaluator) Evaluate(expr string) (string, error) {
	if v, ok := m[expr]; ok {
		return v, nil
	}
	return "", errors.New("undefined: " + expr)
}

func TestTemplate(t *testing.T) {
	tpl := NewTemplate("", "", mapEvaluator{"a": "1", "b + 1": "3"})
	if got := tpl.Apply("x={{ a }}, y={{b + 1}}"); got != "x=1, y=3" {
		t.Errorf("got %q", got)
	}
	if tpl.ErrorCount() != 0 {
		t.Errorf("unexpected errors: %v", tpl.Errors())
	}

	got := tpl.Apply("z={{ nope }}!")
	if got != "z={{ nope }}!" {
		t.Errorf("failed region should be left untouched, got %q", got)
	}
	if tpl.ErrorCount() != 1 {
		t.Errorf("ErrorCount = %d, want 1", tpl.ErrorCount())
	}
	tpl.ResetErrors()
	if tpl.ErrorCount() != 0 {
		t.Error("ResetErrors did not clear")
	}
}

func TestTemplateCustomDelimiters(t *testing.T) {
	tpl := NewTemplate("<%", "%>", mapEvaluator{"a": "ok"})
	if got := tpl.Apply("{{ a }} <% a %>"); got != "{{ a }} ok" {
		t.Errorf("got %q", got)
	}
	if got := tpl.Apply("unterminated <% a"); got != "unterminated <% a" {
		t.Errorf("got %q", got)
	}
}

func TestComposition(t *testing.T) {
	chains := []Filter{Trim{}, Uppercase{}, Lowercase{}, IgnoreSpaces{}, Replace{Search: "a", Replacement: "bb"}}
	properties := gopter.NewProperties(gopter.DefaultTestParameters())
	properties.Property("apply(apply(v, f1), f2) == apply(v, [f1, f2])", prop.ForAll(
		func(v string, i, j int) bool {
			f1, f2 := chains[i], chains[j]
			return f2.Apply(f1.Apply(v)) == Filters{f1, f2}.Apply(v)
		},
		gen.AnyString(),
		gen.IntRange(0, len(chains)-1),
		gen.IntRange(0, len(chains)-1),
	))
	properties.Property("trim is idempotent", prop.ForAll(
		func(v string) bool {
			once := Trim{}.Apply(v)
			return Trim{}.Apply(once) == once && !strings.HasPrefix(once, " ")
		},
		gen.AnyString(),
	))
	properties.TestingRun(t)
}
