package repl

import (
	"bytes"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func newTest(t *testing.T) (*REPL, *bytes.Buffer) {
	t.Helper()
	var seed int64 = 42
	r := New(&seed, "", "")
	var buf bytes.Buffer
	r.SetOutput(&buf)
	return r, &buf
}

func lines(buf *bytes.Buffer) []string {
	return strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
}

func TestExec_ExpressionsShareScope(t *testing.T) {
	r, buf := newTest(t)
	for _, l := range []string{"x = 2 * 3", "x + 1", "iter(10)", "iter(10)", "Value {{ x }} and {{ iter(10) }}"} {
		if r.Exec(l) {
			t.Fatalf("%q quit the repl", l)
		}
	}
	want := []string{"6", "7", "10", "11", "Value 6 and 12"}
	if diff := cmp.Diff(want, lines(buf)); diff != "" {
		t.Errorf("output (-want +got):\n%s", diff)
	}
	if r.count != 5 {
		t.Errorf("count = %d", r.count)
	}
}

func TestExec_Errors(t *testing.T) {
	r, buf := newTest(t)
	r.Exec("undefined_fn(1)")
	if !strings.HasPrefix(buf.String(), "Error: ") {
		t.Errorf("output = %q", buf.String())
	}

	buf.Reset()
	r.Exec("a {{ nope( }} b")
	got := lines(buf)
	if len(got) != 2 || !strings.HasPrefix(got[0], "Error: ") || got[1] != "a {{ nope( }} b" {
		t.Errorf("output = %q", got)
	}
}

func TestExec_CustomDelimiters(t *testing.T) {
	var buf bytes.Buffer
	r := New(nil, "<%", "%>")
	r.SetOutput(&buf)
	r.Exec("n = 4")
	r.Exec("<% n * n %> {{ n }}")
	if diff := cmp.Diff([]string{"4", "16 {{ n }}"}, lines(&buf)); diff != "" {
		t.Errorf("output (-want +got):\n%s", diff)
	}
}

func TestCommands(t *testing.T) {
	r, buf := newTest(t)
	r.Exec(":vars")
	if !strings.Contains(buf.String(), "No variables defined.") {
		t.Errorf("vars output = %q", buf.String())
	}

	r.Exec("b = 2")
	r.Exec("a = iter(1)")
	buf.Reset()
	r.Exec(":v")
	if diff := cmp.Diff([]string{"  a = 1", "  b = 2"}, lines(buf)); diff != "" {
		t.Errorf("vars (-want +got):\n%s", diff)
	}

	buf.Reset()
	r.Exec(":reset")
	r.Exec("iter(1)")
	if diff := cmp.Diff([]string{"Scope reset.", "1"}, lines(buf)); diff != "" {
		t.Errorf("after reset (-want +got):\n%s", diff)
	}

	buf.Reset()
	r.Exec(":functions")
	for _, fn := range []string{"iter", "randint", "sqrt"} {
		if !strings.Contains(buf.String(), "  "+fn+"\n") {
			t.Errorf("functions missing %q", fn)
		}
	}

	buf.Reset()
	r.Exec(":help")
	for _, c := range commands {
		if !strings.Contains(buf.String(), c.name) {
			t.Errorf("help missing %q", c.name)
		}
	}

	buf.Reset()
	r.Exec(":bogus")
	if !strings.Contains(buf.String(), "Unknown command") {
		t.Errorf("output = %q", buf.String())
	}
}

func TestQuit(t *testing.T) {
	r, _ := newTest(t)
	if r.Exec("1 + 1") || r.Exec("") {
		t.Error("non-quit line quit")
	}
	if !r.Exec(":quit") || !r.Exec(" :q ") {
		t.Error(":quit did not quit")
	}
}

func TestPrompt(t *testing.T) {
	r, _ := newTest(t)
	r.Exec("1")
	if p := r.prompt(); p != "baygon[2]> " {
		t.Errorf("prompt = %q", p)
	}
}
