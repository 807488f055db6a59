// Package report renders run reports for humans (console) and machines
// (canonical JSON).
package report

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/heig-tin/baygon/pkg/runner"
	"github.com/heig-tin/baygon/pkg/suite"
)

// Console writes one line per group and test case, aligned on a status
// column:
//
//	Test 1: echo ............ PASSED
//	Test 2: streams
//	  Test 2.1: stderr ...... FAILED
//	    - Output 'x' does not contain 'oops' on stderr.
type Console struct {
	w       io.Writer
	st      styles
	align   int
	Verbose int
}

// NewConsole returns a console writing to w, aligned for the names of s.
func NewConsole(w io.Writer, s *suite.Suite) *Console {
	c := &Console{w: w, st: newStyles(w)}
	suite.Walk(s.TestGroup, func(n suite.Node) bool {
		if n != suite.Node(s.TestGroup) {
			c.align = max(c.align, labelWidth(n.ID().Len()-1, n.ID().String(), n.Name()))
		}
		return true
	})
	c.align += 6
	return c
}

func label(depth int, id, name string) string {
	return strings.Repeat("  ", depth) + "Test " + id + ": " + name
}

func labelWidth(depth int, id, name string) int {
	return runewidth.StringWidth(label(depth, id, name))
}

// Entry prints one report entry. It can be used as runner.Runner.OnEntry.
func (c *Console) Entry(e runner.Entry) {
	prefix := strings.Repeat("  ", e.Depth)
	head := c.st.id.Render(prefix+"Test "+e.ID+":") + " " + e.Name
	if e.Group {
		fmt.Fprintln(c.w, head)
		return
	}

	n := c.align - labelWidth(e.Depth, e.ID, e.Name)
	pad := " " + c.st.pad.Render(strings.Repeat(".", max(n, 1))) + " "

	var status string
	switch e.Status {
	case string(suite.Passed):
		status = c.st.passed.Render("PASSED")
	case string(suite.Failed):
		status = c.st.failed.Render("FAILED")
	default:
		status = c.st.skipped.Render("SKIPPED")
	}
	line := head + pad + status
	if e.Points != nil {
		earned := "0"
		if e.Earned != nil {
			earned = e.Earned.String()
		}
		line += " " + c.st.points.Render(fmt.Sprintf("[%s/%s]", earned, e.Points.String()))
	}
	fmt.Fprintln(c.w, line)

	indent := prefix + "  "
	if e.Status == string(suite.Skipped) && e.SkipReason != "" && c.Verbose > 0 {
		fmt.Fprintln(c.w, c.st.skipped.Render(indent+"- "+e.SkipReason))
	}
	for _, is := range e.Issues {
		fmt.Fprintln(c.w, c.st.issue.Render(indent+"- "+is.String()))
	}
}

// Summary prints the totals of a run.
func (c *Console) Summary(rep *runner.Report) {
	s := rep.Summary
	seconds := float64(rep.DurationMs) / 1000
	fmt.Fprintln(c.w)
	fmt.Fprintln(c.w, c.st.summary.Render(fmt.Sprintf("Ran %d tests in %ss.", s.Total, formatFloat(seconds))))

	if rep.Stopped {
		fmt.Fprintln(c.w, c.st.warn.Render("Stopped after reaching the failure limit."))
	}
	if s.Failed > 0 {
		ratio := 100 - float64(s.Failed)/float64(s.Failed+s.Passed)*100
		fmt.Fprintln(c.w, c.st.warn.Render(fmt.Sprintf("%d failed, %d passed (%s%% ok).", s.Failed, s.Passed, formatFloat(ratio))))
	}
	if s.Points != nil && s.Earned != nil {
		fmt.Fprintln(c.w, c.st.summary.Render(fmt.Sprintf("Points: %s/%s", s.Earned.String(), s.Points.String())))
	}
	if s.Failed > 0 {
		fmt.Fprintln(c.w, "\n"+c.st.failed.Render("fail."))
	} else {
		fmt.Fprintln(c.w, "\n"+c.st.passed.Render("ok."))
	}
	if s.Skipped > 0 {
		fmt.Fprintln(c.w, c.st.skipped.Render(fmt.Sprintf("%d test(s) skipped, some executables may be missing.", s.Skipped)))
	}
}

// formatFloat rounds to two decimals and drops trailing zeros.
func formatFloat(f float64) string {
	return strconv.FormatFloat(math.Round(f*100)/100, 'f', -1, 64)
}
