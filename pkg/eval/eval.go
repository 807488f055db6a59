// Package eval implements the restricted expression language used inside
// template regions of test descriptions ("{{ i = iter(0) }}").
//
// Expressions are compiled with expr-lang against a closed environment: the
// scope variables, the constants pi and e, and a fixed allow-list of
// functions. Statements of the form "name = expr" evaluate expr, store the
// value in the scope and yield it.
package eval

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/expr-lang/expr"
)

var assignment = regexp.MustCompile(`(?s)^([A-Za-z_][A-Za-z0-9_]*)\s*=([^=].*)$`)

// Scope holds the variables of one evaluation context (a test case). All
// scopes of a suite share the same State, which owns the iter counters and
// the random source.
type Scope struct {
	state *State
	site  string
	vars  map[string]any
}

// NewScope creates an empty scope. site identifies the call site (typically
// the test identifier) and keys iter counters that do not name a context.
func NewScope(state *State, site string) *Scope {
	if state == nil {
		state = NewState(nil)
	}
	return &Scope{state: state, site: site, vars: make(map[string]any)}
}

// State returns the shared state.
func (s *Scope) State() *State { return s.state }

// Init runs each statement in order, stopping at the first failure.
func (s *Scope) Init(stmts []string) error {
	for _, stmt := range stmts {
		if _, err := s.Eval(stmt); err != nil {
			return fmt.Errorf("init %q: %w", stmt, err)
		}
	}
	return nil
}

// Evaluate runs a statement and stringifies its result. It implements
// filters.Evaluator.
func (s *Scope) Evaluate(code string) (string, error) {
	v, err := s.Eval(code)
	if err != nil {
		return "", err
	}
	return Format(v), nil
}

// Eval runs a statement and returns its raw result.
func (s *Scope) Eval(code string) (any, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, fmt.Errorf("empty expression")
	}
	name := ""
	if m := assignment.FindStringSubmatch(code); m != nil {
		name, code = m[1], strings.TrimSpace(m[2])
	}

	env := s.env()
	program, err := expr.Compile(code, append([]expr.Option{expr.Env(env)}, s.functions()...)...)
	if err != nil {
		return nil, fmt.Errorf("compile %q: %w", code, err)
	}
	out, err := expr.Run(program, env)
	if err != nil {
		return nil, fmt.Errorf("eval %q: %w", code, err)
	}
	if name != "" {
		s.vars[name] = out
	}
	return out, nil
}

// Get returns a variable of the scope.
func (s *Scope) Get(name string) (any, bool) {
	v, ok := s.vars[name]
	return v, ok
}

// Set assigns a variable.
func (s *Scope) Set(name string, v any) {
	s.vars[name] = v
}

// Vars returns a copy of the scope variables.
func (s *Scope) Vars() map[string]any {
	out := make(map[string]any, len(s.vars))
	for k, v := range s.vars {
		out[k] = v
	}
	return out
}

// Clear drops every variable. Views created with At see the change.
func (s *Scope) Clear() {
	clear(s.vars)
}

// At returns a view of the scope bound to another call site. Variables are
// shared with s; iter counters without an explicit context are not.
func (s *Scope) At(site string) *Scope {
	return &Scope{state: s.state, site: site, vars: s.vars}
}

// Site returns the call site of the scope.
func (s *Scope) Site() string { return s.site }

func (s *Scope) env() map[string]any {
	env := map[string]any{
		"pi": math.Pi,
		"e":  math.E,
	}
	for k, v := range s.vars {
		env[k] = v
	}
	return env
}

// Format stringifies an evaluation result. Integral floats print without a
// fractional part so that "{{ 10 / 2 }}" renders as "5".
func Format(v any) string {
	switch n := v.(type) {
	case nil:
		return ""
	case string:
		return n
	case int:
		return strconv.Itoa(n)
	case int64:
		return strconv.FormatInt(n, 10)
	case float64:
		return strconv.FormatFloat(n, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(n), 'f', -1, 32)
	case bool:
		return strconv.FormatBool(n)
	default:
		return fmt.Sprint(v)
	}
}
