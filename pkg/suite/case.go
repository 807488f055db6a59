package suite

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/heig-tin/baygon/pkg/eval"
	"github.com/heig-tin/baygon/pkg/executable"
	"github.com/heig-tin/baygon/pkg/filters"
	"github.com/heig-tin/baygon/pkg/governance"
	"github.com/heig-tin/baygon/pkg/matchers"
)

// Check is one entry of a stream's expectations: the filter chain applied
// to the captured output and the matchers evaluated on the result.
type Check struct {
	Filters filters.Filters
	Expect  []*Expectation
}

// Expectation is a matcher whose expected value may be a template. Static
// expectations are compiled once at resolution.
type Expectation struct {
	Kind     matchers.Kind
	Expected string
	Inverse  bool

	site    string
	matcher *matchers.Matcher
}

// TestCase is a leaf of the tree: one program invocation, repeated Repeat
// times, and the checks on its outputs.
type TestCase struct {
	Named
	Target

	Args    []string
	Stdin   *string
	Repeat  int
	Exit    *string
	Stdout  []*Check
	Stderr  []*Check
	Filters filters.Filters

	// SkipReason is set when the case cannot run, e.g. its executable is
	// missing under the skip policy.
	SkipReason string

	scope    *eval.Scope // nil when evaluation is disabled
	start    string
	end      string
	init     []string
	executor executable.Executor
	logger   *zap.Logger

	status Status
	issues []*matchers.Issue
}

// Status returns the status of the last run.
func (tc *TestCase) Status() Status { return tc.status }

// Issues returns the issues of the last run.
func (tc *TestCase) Issues() []*matchers.Issue { return tc.issues }

// Scope returns the evaluation scope of the case, nil when evaluation is
// disabled.
func (tc *TestCase) Scope() *eval.Scope { return tc.scope }

// Reset forgets the last run and reinitializes the evaluation scope.
func (tc *TestCase) Reset() {
	tc.status = Pending
	tc.issues = nil
	if tc.scope != nil {
		tc.scope.Clear()
		if err := tc.scope.Init(tc.init); err != nil {
			tc.logger.Warn("eval init failed", zap.String("test", tc.id.String()), zap.Error(err))
		}
	}
}

// Run executes the case and returns the issues of every repetition. An
// empty list means the case passed. A skipped case returns ErrSkipped.
// Timeouts and spawn failures are reported as fatal issues and stop the
// remaining repetitions; only a canceled ctx is returned as an error.
func (tc *TestCase) Run(ctx context.Context, hook Hook) ([]*matchers.Issue, error) {
	if tc.SkipReason != "" {
		tc.status = Skipped
		tc.issues = nil
		return nil, ErrSkipped
	}
	repeat := max(tc.Repeat, 1)
	var issues []*matchers.Issue
	for i := 0; i < repeat; i++ {
		if err := ctx.Err(); err != nil {
			return issues, err
		}
		found, fatal, err := tc.runOnce(ctx, hook)
		issues = append(issues, found...)
		if err != nil {
			return issues, err
		}
		if fatal {
			break
		}
	}
	for _, is := range issues {
		is.TestID = tc.id.String()
		is.TestName = tc.name
	}
	tc.issues = issues
	tc.status = Passed
	if len(issues) > 0 {
		tc.status = Failed
	}
	return issues, nil
}

func (tc *TestCase) result(ctx context.Context, hook Hook) (*Result, error) {
	issues, err := tc.Run(ctx, hook)
	if err != nil && !errors.Is(err, ErrSkipped) {
		return nil, err
	}
	return &Result{Node: tc, Status: tc.status, Issues: issues}, nil
}

func (tc *TestCase) runOnce(ctx context.Context, hook Hook) (issues []*matchers.Issue, fatal bool, err error) {
	onTemplate := func(field string, errs []error) {
		for _, e := range errs {
			tc.logger.Warn("template evaluation failed",
				zap.String("test", tc.id.String()), zap.String("field", field), zap.Error(e))
			issues = append(issues, &matchers.Issue{
				Kind:    matchers.Template,
				Stream:  field,
				Message: fmt.Sprintf("Template error in %s: %v", field, e),
			})
		}
	}

	args := make([]string, len(tc.Args))
	for i, a := range tc.Args {
		field := fmt.Sprintf("args[%d]", i)
		var errs []error
		args[i], errs = tc.render(field, a)
		onTemplate(field, errs)
	}
	var stdin []byte
	if tc.Stdin != nil {
		s, errs := tc.render("stdin", *tc.Stdin)
		onTemplate("stdin", errs)
		stdin = []byte(s)
	}
	exit, hasExit := 0, false
	if tc.Exit != nil {
		s, errs := tc.render("exit", *tc.Exit)
		onTemplate("exit", errs)
		if len(errs) == 0 {
			n, convErr := strconv.Atoi(strings.TrimSpace(s))
			if convErr != nil {
				issues = append(issues, &matchers.Issue{
					Kind:    matchers.Template,
					Stream:  matchers.Exit,
					Message: fmt.Sprintf("Expected exit status %q is not an integer.", s),
				})
			} else {
				exit, hasExit = n, true
			}
		}
	}

	res, runErr := tc.executor.Run(ctx, executable.Command{
		Path:    tc.Executable,
		Args:    args,
		Stdin:   stdin,
		Env:     tc.Env,
		Dir:     tc.Dir,
		TTY:     tc.TTY,
		Timeout: tc.Timeout,
	})
	if hook != nil {
		ex := Execution{
			TestID:     tc.id.String(),
			TestName:   tc.name,
			Argv:       append([]string{tc.Executable}, args...),
			Dir:        tc.Dir,
			Env:        tc.Env,
			Stdin:      string(stdin),
			ExitStatus: -1,
			Err:        runErr,
		}
		if res != nil {
			ex.Stdout, ex.Stderr = res.Stdout, res.Stderr
			ex.ExitStatus, ex.Elapsed = res.ExitCode, res.Duration
		}
		hook(ex)
	}
	if runErr != nil {
		if ctx.Err() != nil {
			return issues, true, ctx.Err()
		}
		return append(issues, tc.failure(runErr)), true, nil
	}

	issues = append(issues, tc.match(matchers.Stdout, tc.Stdout, res.Stdout)...)
	issues = append(issues, tc.match(matchers.Stderr, tc.Stderr, res.Stderr)...)
	if hasExit && res.ExitCode != exit {
		issues = append(issues, &matchers.Issue{
			Kind:     matchers.InvalidExitStatus,
			Stream:   matchers.Exit,
			Expected: strconv.Itoa(exit),
			Actual:   strconv.Itoa(res.ExitCode),
		})
	}
	return issues, false, nil
}

func (tc *TestCase) failure(err error) *matchers.Issue {
	switch {
	case errors.Is(err, executable.ErrTimeout):
		return &matchers.Issue{
			Kind:    matchers.Timeout,
			Message: fmt.Sprintf("Timeout after %s.", tc.Timeout),
		}
	case errors.Is(err, governance.ErrDenied):
		return &matchers.Issue{Kind: matchers.Denied, Message: err.Error()}
	}
	return &matchers.Issue{Kind: matchers.Execution, Message: err.Error()}
}

func (tc *TestCase) match(stream string, checks []*Check, output string) []*matchers.Issue {
	var issues []*matchers.Issue
	for _, c := range checks {
		value := c.Filters.Apply(output)
		for _, e := range c.Expect {
			m := e.matcher
			if m == nil {
				expected, errs := tc.render(e.site, e.Expected)
				if len(errs) > 0 {
					for _, err := range errs {
						issues = append(issues, &matchers.Issue{
							Kind:     matchers.Template,
							Stream:   stream,
							Expected: e.Expected,
							Actual:   value,
							Message:  fmt.Sprintf("Template error in %s: %v", e.site, err),
						})
					}
					continue
				}
				var err error
				if m, err = matchers.New(e.Kind, expected, e.Inverse); err != nil {
					issues = append(issues, &matchers.Issue{
						Kind:     matchers.Template,
						Stream:   stream,
						Expected: expected,
						Message:  fmt.Sprintf("Rendered %s is not a valid matcher: %v", e.site, err),
					})
					continue
				}
			}
			if is := m.Match(value, stream); is != nil {
				issues = append(issues, is)
			}
		}
	}
	return issues
}

// render evaluates the templates of s. Each field has its own call site so
// that iter() counters in stdin and in an expected value advance
// independently.
func (tc *TestCase) render(field, s string) (string, []error) {
	if tc.scope == nil {
		return s, nil
	}
	t := filters.NewTemplate(tc.start, tc.end, tc.scope.At(tc.id.String()+":"+field))
	return t.Render(s)
}

func (tc *TestCase) templated(s string) bool {
	if tc.scope == nil {
		return false
	}
	return strings.Contains(s, tc.start)
}
