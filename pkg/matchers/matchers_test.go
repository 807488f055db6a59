package matchers

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestEquals(t *testing.T) {
	issue, err := Evaluate(Equals, "hi", "hi", false)
	if err != nil {
		t.Fatal(err)
	}
	if issue != nil {
		t.Errorf("expected pass, got %v", issue)
	}

	m, _ := New(Equals, "bye", false)
	got := m.Match("hi", Stdout)
	want := &Issue{Kind: InvalidEquals, Stream: Stdout, Expected: "bye", Actual: "hi"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("issue mismatch (-want +got):\n%s", diff)
	}
}

func TestContains(t *testing.T) {
	m, _ := New(Contains, "world", false)
	if issue := m.Match("hello world", Stdout); issue != nil {
		t.Errorf("expected pass, got %v", issue)
	}
	issue := m.Match("hello", Stderr)
	if issue == nil || issue.Kind != InvalidContains || issue.Stream != Stderr {
		t.Errorf("got %+v", issue)
	}
}

func TestRegex(t *testing.T) {
	m, err := New(Regex, `^\d+ items?$`, false)
	if err != nil {
		t.Fatal(err)
	}
	if issue := m.Match("3 items", Stdout); issue != nil {
		t.Errorf("expected pass, got %v", issue)
	}
	if issue := m.Match("three items", Stdout); issue == nil || issue.Kind != InvalidRegex {
		t.Errorf("got %+v", issue)
	}
}

func TestNewErrors(t *testing.T) {
	if _, err := New(Regex, "(", false); err == nil {
		t.Error("expected error for invalid regex")
	}
	if _, err := New("startswith", "x", false); err == nil {
		t.Error("expected error for unknown matcher")
	}
	if _, err := Evaluate("startswith", "x", "x", false); err == nil {
		t.Error("Evaluate: expected error for unknown matcher")
	}
}

func TestInverse(t *testing.T) {
	tests := []struct {
		kind     Kind
		expected string
		value    string
		passes   bool
	}{
		{Equals, "hi", "hi", false},
		{Equals, "hi", "bye", true},
		{Contains, "err", "no error", false},
		{Contains, "err", "all good", true},
		{Regex, "^ok", "ok.", false},
		{Regex, "^ok", "ko.", true},
	}
	for _, tt := range tests {
		m, err := New(tt.kind, tt.expected, true)
		if err != nil {
			t.Fatal(err)
		}
		issue := m.Match(tt.value, Stdout)
		if (issue == nil) != tt.passes {
			t.Errorf("not %s %q on %q: issue = %v, want pass=%v", tt.kind, tt.expected, tt.value, issue, tt.passes)
		}
		if issue != nil && !issue.Inverse {
			t.Errorf("issue should be marked inverse: %+v", issue)
		}
	}
}

func TestIssueString(t *testing.T) {
	tests := []struct {
		issue *Issue
		want  string
	}{
		{&Issue{Kind: InvalidEquals, Stream: Stdout, Expected: "bye", Actual: "hi"}, "Output 'hi' does not equal 'bye' on stdout."},
		{&Issue{Kind: InvalidEquals, Stream: Stdout, Expected: "bye"}, "Output (empty) does not equal 'bye' on stdout."},
		{&Issue{Kind: InvalidExitStatus, Stream: Exit, Expected: "2", Actual: "0"}, "Invalid exit status: 0 != 2."},
		{&Issue{Kind: Execution, Message: "exec: not found"}, "exec: not found"},
	}
	for _, tt := range tests {
		if got := tt.issue.String(); got != tt.want {
			t.Errorf("got %q, want %q", got, tt.want)
		}
	}
	long := &Issue{Kind: InvalidContains, Stream: Stdout, Expected: "x", Actual: strings.Repeat("a", 500)}
	if !strings.Contains(long.String(), "...") {
		t.Error("long actual value should be truncated")
	}
}

func TestFatal(t *testing.T) {
	for _, k := range []IssueKind{Timeout, Execution, Denied} {
		if !(&Issue{Kind: k}).Fatal() {
			t.Errorf("%s should be fatal", k)
		}
	}
	for _, k := range []IssueKind{InvalidEquals, InvalidContains, InvalidRegex, InvalidExitStatus, Template} {
		if (&Issue{Kind: k}).Fatal() {
			t.Errorf("%s should not be fatal", k)
		}
	}
}

func TestNegationProperties(t *testing.T) {
	properties := gopter.NewProperties(gopter.DefaultTestParameters())
	kinds := []Kind{Equals, Contains}

	properties.Property("double inverse is identity", prop.ForAll(
		func(i int, expected, value string) bool {
			m, _ := New(kinds[i], expected, false)
			a := m.Match(value, Stdout)
			b := m.Not().Not().Match(value, Stdout)
			return cmp.Equal(a, b)
		},
		gen.IntRange(0, len(kinds)-1),
		gen.AlphaString(),
		gen.AlphaString(),
	))
	properties.Property("not passes iff positive fails", prop.ForAll(
		func(i int, expected, value string) bool {
			m, _ := New(kinds[i], expected, false)
			return (m.Match(value, Stdout) == nil) != (m.Not().Match(value, Stdout) == nil)
		},
		gen.IntRange(0, len(kinds)-1),
		gen.AlphaString(),
		gen.AlphaString(),
	))
	properties.TestingRun(t)
}
