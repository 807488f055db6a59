package runner

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"

	"github.com/heig-tin/baygon/pkg/schema"
	"github.com/heig-tin/baygon/pkg/suite"
)

// testdataDir returns the absolute path to the testdata/runner directory.
func testdataDir(t *testing.T) string {
	t.Helper()
	_, file, _, _ := runtime.Caller(0)
	repoRoot := filepath.Join(filepath.Dir(file), "..", "..")
	dir := filepath.Join(repoRoot, "testdata", "runner")
	if _, err := os.Stat(dir); err != nil {
		t.Skipf("testdata directory not found: %s", dir)
	}
	return dir
}

func load(t *testing.T, name string) *suite.Suite {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	path := filepath.Join(testdataDir(t), name)
	cfg, errs := schema.ValidateFile(path)
	if schema.HasErrors(errs) {
		t.Fatalf("validate %s: %v", name, errs)
	}
	s, err := suite.Resolve(cfg, suite.Options{BaseDir: filepath.Dir(path)})
	if err != nil {
		t.Fatalf("resolve %s: %v", name, err)
	}
	return s
}

func TestRunPassAll(t *testing.T) {
	s := load(t, "pass.yml")
	var streamed []string
	r := &Runner{OnEntry: func(e Entry) { streamed = append(streamed, e.ID) }}

	rep, err := r.Run(context.Background(), s)
	if err != nil {
		t.Fatal(err)
	}
	if !rep.OK() {
		t.Errorf("report not ok: %+v", rep.Entries)
	}
	want := Summary{Total: 3, Passed: 3}
	if diff := cmp.Diff(want, rep.Summary); diff != "" {
		t.Errorf("summary (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"1", "2", "2.1", "2.2"}, streamed); diff != "" {
		t.Errorf("streamed entries (-want +got):\n%s", diff)
	}
	if !rep.Entries[1].Group || rep.Entries[2].Depth != 1 {
		t.Errorf("entries = %+v", rep.Entries)
	}
	if rep.Name != "shell basics" || rep.Version != 1 {
		t.Errorf("report header = %q v%d", rep.Name, rep.Version)
	}
}

func TestRunMixedWithScore(t *testing.T) {
	s := load(t, "mixed.yml")
	rep, err := (&Runner{}).Run(context.Background(), s)
	if err != nil {
		t.Fatal(err)
	}
	sum := rep.Summary
	if sum.Total != 5 || sum.Passed != 2 || sum.Failed != 2 || sum.Skipped != 1 {
		t.Errorf("summary = %+v", sum)
	}
	if rep.OK() {
		t.Error("report should not be ok")
	}
	if sum.Points == nil || !sum.Points.Equal(decimal.NewFromInt(10)) {
		t.Errorf("points = %v, want 10", sum.Points)
	}
	if sum.Earned == nil || !sum.Earned.Equal(decimal.NewFromInt(4)) {
		t.Errorf("earned = %v, want 4", sum.Earned)
	}
	for _, e := range rep.Entries {
		if e.Status == "skipped" && e.SkipReason == "" {
			t.Errorf("skipped entry %s has no reason", e.ID)
		}
		if e.Status == "failed" && len(e.Issues) == 0 {
			t.Errorf("failed entry %s has no issues", e.ID)
		}
	}
}

func TestRunLimit(t *testing.T) {
	s := load(t, "mixed.yml")
	rep, err := (&Runner{Limit: 1}).Run(context.Background(), s)
	if err != nil {
		t.Fatal(err)
	}
	if !rep.Stopped {
		t.Error("run should stop at the failure limit")
	}
	if rep.Summary.Failed != 1 || rep.Summary.Total != 2 {
		t.Errorf("summary = %+v", rep.Summary)
	}
}

func TestRunIsRepeatable(t *testing.T) {
	s := load(t, "iter.yml")
	r := &Runner{}
	var stdins [][]string
	for i := 0; i < 2; i++ {
		var got []string
		r.Hook = func(e suite.Execution) { got = append(got, e.Stdin) }
		rep, err := r.Run(context.Background(), s)
		if err != nil {
			t.Fatal(err)
		}
		if !rep.OK() {
			t.Errorf("run %d failed: %+v", i, rep.Entries)
		}
		stdins = append(stdins, got)
	}
	want := []string{"1", "3", "5"}
	for i, got := range stdins {
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("run %d stdin (-want +got):\n%s", i, diff)
		}
	}
}

func TestRunCanceled(t *testing.T) {
	s := load(t, "pass.yml")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rep, err := (&Runner{}).Run(ctx, s)
	if err == nil {
		t.Fatal("expected an error")
	}
	if rep == nil || rep.Summary.Total != 0 {
		t.Errorf("report = %+v", rep)
	}
}
