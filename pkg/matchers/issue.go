package matchers

import (
	"fmt"
	"strings"
)

// IssueKind classifies an issue. Content mismatches and execution failures
// are reported differently.
type IssueKind string

const (
	InvalidEquals     IssueKind = "InvalidEquals"
	InvalidContains   IssueKind = "InvalidContains"
	InvalidRegex      IssueKind = "InvalidRegex"
	InvalidExitStatus IssueKind = "InvalidExitStatus"

	// Template marks a comparison whose inputs went through a failed
	// template evaluation.
	Template IssueKind = "TemplateError"

	Timeout   IssueKind = "Timeout"
	Execution IssueKind = "ExecutionError"
	Denied    IssueKind = "DeniedCommand"
)

// Stream names.
const (
	Stdout = "stdout"
	Stderr = "stderr"
	Exit   = "exit"
)

// Issue describes one failed check of a test case.
type Issue struct {
	Kind     IssueKind `json:"kind"`
	Stream   string    `json:"stream,omitempty"`
	Expected string    `json:"expected,omitempty"`
	Actual   string    `json:"actual,omitempty"`
	Inverse  bool      `json:"inverse,omitempty"`
	Message  string    `json:"message,omitempty"`

	TestID   string `json:"test_id,omitempty"`
	TestName string `json:"test_name,omitempty"`
}

// Fatal reports whether the issue comes from a failed execution rather
// than a content mismatch.
func (i *Issue) Fatal() bool {
	switch i.Kind {
	case Timeout, Execution, Denied:
		return true
	}
	return false
}

func (i *Issue) Error() string { return i.String() }

func (i *Issue) String() string {
	if i.Message != "" {
		return i.Message
	}
	on := i.Stream
	if on == "" {
		on = "output"
	}
	switch i.Kind {
	case InvalidExitStatus:
		return fmt.Sprintf("Invalid exit status: %s != %s.", i.Actual, i.Expected)
	case InvalidEquals:
		if i.Inverse {
			return fmt.Sprintf("Output on %s equals '%s' (unexpected).", on, i.Expected)
		}
		return fmt.Sprintf("Output %s does not equal '%s' on %s.", quoteOrEmpty(i.Actual), i.Expected, on)
	case InvalidContains:
		if i.Inverse {
			return fmt.Sprintf("Output %s contains %s (unexpected). Found %q.", on, i.Expected, truncate(i.Actual, 200))
		}
		return fmt.Sprintf("Output %s does not contain %s. Found %q instead.", on, i.Expected, truncate(i.Actual, 200))
	case InvalidRegex:
		if i.Inverse {
			return fmt.Sprintf("Output '%s' matches /%s/ (unexpected) on %q.", on, i.Expected, truncate(i.Actual, 200))
		}
		return fmt.Sprintf("Output '%s' does not match /%s/ on %q.", on, i.Expected, truncate(i.Actual, 200))
	case Timeout:
		return fmt.Sprintf("Timeout after %s.", i.Expected)
	default:
		return fmt.Sprintf("%s on %s: expected %q, got %q", i.Kind, on, i.Expected, truncate(i.Actual, 200))
	}
}

func quoteOrEmpty(s string) string {
	if s == "" {
		return "(empty)"
	}
	return "'" + truncate(s, 200) + "'"
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return strings.ToValidUTF8(s[:maxLen], "") + "..."
}
