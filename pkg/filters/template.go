package filters

import (
	"strings"
)

// Evaluator evaluates the expression found between template delimiters.
type Evaluator interface {
	Evaluate(expr string) (string, error)
}

// Default template delimiters.
const (
	DefaultStart = "{{"
	DefaultEnd   = "}}"
)

// Template replaces every Start...End region with the evaluation of the
// enclosed expression. A failed evaluation leaves the region untouched and
// is recorded, so callers can surface it instead of silently comparing
// against a half-rendered string.
type Template struct {
	Start     string
	End       string
	Evaluator Evaluator

	errs []error
}

// NewTemplate builds a template filter. Empty delimiters fall back to the
// defaults.
func NewTemplate(start, end string, ev Evaluator) *Template {
	if start == "" {
		start = DefaultStart
	}
	if end == "" {
		end = DefaultEnd
	}
	return &Template{Start: start, End: end, Evaluator: ev}
}

func (*Template) Name() string { return "eval" }

// Apply implements Filter. Errors are recorded, see Errors.
func (t *Template) Apply(v string) string {
	out, errs := t.Render(v)
	t.errs = append(t.errs, errs...)
	return out
}

// Render evaluates v and returns the evaluation errors instead of
// recording them.
func (t *Template) Render(v string) (string, []error) {
	if t.Evaluator == nil || !strings.Contains(v, t.Start) {
		return v, nil
	}
	var (
		b    strings.Builder
		errs []error
	)
	rest := v
	for {
		i := strings.Index(rest, t.Start)
		if i < 0 {
			break
		}
		j := strings.Index(rest[i+len(t.Start):], t.End)
		if j < 0 {
			break
		}
		j += i + len(t.Start)
		b.WriteString(rest[:i])
		expr := strings.TrimSpace(rest[i+len(t.Start) : j])
		res, err := t.Evaluator.Evaluate(expr)
		if err != nil {
			errs = append(errs, err)
			b.WriteString(rest[i : j+len(t.End)])
		} else {
			b.WriteString(res)
		}
		rest = rest[j+len(t.End):]
	}
	b.WriteString(rest)
	return b.String(), errs
}

// Errors returns the errors recorded by Apply.
func (t *Template) Errors() []error {
	return t.errs
}

// ErrorCount is the number of failed evaluations recorded by Apply.
func (t *Template) ErrorCount() int {
	return len(t.errs)
}

// ResetErrors clears the recorded errors.
func (t *Template) ResetErrors() {
	t.errs = nil
}
