package trace

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"

	"github.com/heig-tin/baygon/pkg/governance"
	"github.com/heig-tin/baygon/pkg/matchers"
	"github.com/heig-tin/baygon/pkg/runner"
	"github.com/heig-tin/baygon/pkg/suite"
)

func events(t *testing.T, buf *bytes.Buffer) []Event {
	t.Helper()
	var out []Event
	sc := bufio.NewScanner(bytes.NewReader(buf.Bytes()))
	for sc.Scan() {
		var evt Event
		if err := json.Unmarshal(sc.Bytes(), &evt); err != nil {
			t.Fatalf("JSON unmarshal: %v (raw: %s)", err, sc.Text())
		}
		out = append(out, evt)
	}
	return out
}

func TestWriter_Emit(t *testing.T) {
	var buf bytes.Buffer
	tw := NewWriter(&buf, "run-1")
	if err := tw.Emit(EventRunStart, map[string]any{"name": "demo"}); err != nil {
		t.Fatalf("Emit error: %v", err)
	}

	evts := events(t, &buf)
	if len(evts) != 1 {
		t.Fatalf("got %d events", len(evts))
	}
	evt := evts[0]
	if evt.Type != EventRunStart || evt.RunID != "run-1" {
		t.Errorf("event = %+v", evt)
	}
	if evt.PrevHash != genesis {
		t.Errorf("first prev_hash = %q, want genesis", evt.PrevHash)
	}
	if evt.Data["name"] != "demo" {
		t.Errorf("name = %v", evt.Data["name"])
	}
}

func TestWriter_GeneratesRunID(t *testing.T) {
	a := NewWriter(&bytes.Buffer{}, "")
	b := NewWriter(&bytes.Buffer{}, "")
	if a.RunID() == "" || a.RunID() == b.RunID() {
		t.Errorf("run ids = %q, %q", a.RunID(), b.RunID())
	}
}

func TestWriter_HookRedacts(t *testing.T) {
	var buf bytes.Buffer
	tw := NewWriter(&buf, "run-1")
	rules, err := governance.CompileRedactionRules([]governance.RedactionRule{{Pattern: `hunter\d`, Replace: "***"}})
	if err != nil {
		t.Fatal(err)
	}
	p := governance.NewPolicy(nil, nil, []string{"*_TOKEN"})
	p.Redactions = rules
	tw.SetPolicy(p)

	tw.Hook()(suite.Execution{
		TestID:     "2.1",
		TestName:   "login",
		Argv:       []string{"./app", "--password", "hunter2"},
		Env:        map[string]string{"API_TOKEN": "abc", "LANG": "C"},
		Stdout:     "welcome hunter2",
		ExitStatus: 0,
		Elapsed:    15 * time.Millisecond,
		Err:        errors.New("boom"),
	})

	evt := events(t, &buf)[0]
	if evt.Type != EventCommandExecuted {
		t.Fatalf("type = %q", evt.Type)
	}
	d := evt.Data
	if d["command"] != "./app --password ***" || d["stdout"] != "welcome ***" {
		t.Errorf("not redacted: %v / %v", d["command"], d["stdout"])
	}
	env, _ := d["env"].(map[string]any)
	if diff := cmp.Diff(map[string]any{"API_TOKEN": "[REDACTED]", "LANG": "C"}, env); diff != "" {
		t.Errorf("env (-want +got):\n%s", diff)
	}
	if d["test_id"] != "2.1" || d["duration"] != "15ms" || d["error"] != "boom" {
		t.Errorf("data = %v", d)
	}
}

func TestWriter_EmitCase(t *testing.T) {
	var buf bytes.Buffer
	tw := NewWriter(&buf, "run-1")
	if err := tw.EmitCase(runner.Entry{ID: "1", Name: "group", Group: true}); err != nil {
		t.Fatal(err)
	}
	if buf.Len() != 0 {
		t.Fatal("group entries must not be traced")
	}

	pts := decimal.NewFromInt(3)
	err := tw.EmitCase(runner.Entry{
		ID: "1.1", Name: "echo", Status: "failed", DurationMs: 1500, Points: &pts,
		Issues: []*matchers.Issue{{Kind: matchers.InvalidEquals, Stream: matchers.Stdout, Expected: "a", Actual: "b"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	d := events(t, &buf)[0].Data
	if d["status"] != "failed" || d["duration"] != "1.5s" || d["points"] != "3" {
		t.Errorf("data = %v", d)
	}
	if issues, _ := d["issues"].([]any); len(issues) != 1 {
		t.Errorf("issues = %v", d["issues"])
	}
}

func TestWriter_ChainVerifies(t *testing.T) {
	var buf bytes.Buffer
	tw := NewWriter(&buf, "run-1")
	tw.Emit(EventRunStart, nil)
	tw.Hook()(suite.Execution{TestID: "1", Argv: []string{"echo"}})
	tw.EmitCase(runner.Entry{ID: "1", Status: "passed"})
	if err := tw.EmitRunComplete(&runner.Report{Summary: runner.Summary{Total: 1, Passed: 1}}); err != nil {
		t.Fatal(err)
	}

	evts := events(t, &buf)
	last := evts[len(evts)-1]
	if last.Type != EventRunComplete || last.Data["chain_hash"] != last.PrevHash {
		t.Errorf("run_complete = %+v", last)
	}

	res, err := Verify(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatal(err)
	}
	if !res.Valid || res.EventCount != 4 || res.BrokenAt != -1 {
		t.Errorf("result = %+v", res)
	}
}

func TestVerify_DetectsTampering(t *testing.T) {
	var buf bytes.Buffer
	tw := NewWriter(&buf, "run-1")
	tw.EmitCase(runner.Entry{ID: "1", Status: "failed"})
	tw.EmitCase(runner.Entry{ID: "2", Status: "passed"})
	tw.EmitCase(runner.Entry{ID: "3", Status: "passed"})

	tampered := strings.Replace(buf.String(), `"status":"failed"`, `"status":"passed"`, 1)
	res, err := Verify(strings.NewReader(tampered))
	if err != nil {
		t.Fatal(err)
	}
	if res.Valid || res.BrokenAt != 2 {
		t.Errorf("result = %+v", res)
	}
}

func TestNewFileWriter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trace.jsonl")
	for range 2 {
		tw, err := NewFileWriter(path, "")
		if err != nil {
			t.Fatal(err)
		}
		tw.Emit(EventRunStart, nil)
		if err := tw.Close(); err != nil {
			t.Fatal(err)
		}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if n := bytes.Count(data, []byte("\n")); n != 1 {
		t.Errorf("file has %d lines, want 1", n)
	}
	res, err := VerifyFile(path)
	if err != nil || !res.Valid {
		t.Errorf("verify = %+v, %v", res, err)
	}
}

type failingWriter struct{ n int }

func (w *failingWriter) Write(p []byte) (int, error) {
	w.n++
	if w.n > 1 {
		return 0, errors.New("disk full")
	}
	return len(p), nil
}

func TestWriter_HookWriteErrorIsKept(t *testing.T) {
	tw := NewWriter(&failingWriter{}, "run-1")
	if err := tw.Emit(EventRunStart, nil); err != nil {
		t.Fatal(err)
	}
	if tw.Err() != nil {
		t.Fatalf("Err = %v before any failure", tw.Err())
	}

	tw.Hook()(suite.Execution{TestID: "1", Argv: []string{"echo"}})
	first := tw.Err()
	if first == nil || !strings.Contains(first.Error(), "command_executed") {
		t.Fatalf("Err = %v", first)
	}

	if err := tw.EmitCase(runner.Entry{ID: "1", Status: "passed"}); err == nil {
		t.Error("EmitCase should fail")
	}
	if tw.Err() != first {
		t.Errorf("Err = %v, want the first failure %v", tw.Err(), first)
	}
	if err := tw.Close(); !errors.Is(err, first) {
		t.Errorf("Close = %v", err)
	}
}
