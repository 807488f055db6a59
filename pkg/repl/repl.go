// Package repl is an interactive shell for the template language: each line
// is rendered in one persistent scope, so iter counters and assignments
// carry over from line to line.
package repl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/chzyer/readline"

	"github.com/heig-tin/baygon/pkg/eval"
	"github.com/heig-tin/baygon/pkg/filters"
)

const site = "repl"

// REPL evaluates template lines against a single scope.
type REPL struct {
	scope  *eval.Scope
	tmpl   *filters.Template
	output io.Writer
	count  int
	rl     *readline.Instance
}

// New creates a REPL. A nil seed draws one from the clock. Empty delimiters
// fall back to the defaults.
func New(seed *int64, start, end string) *REPL {
	scope := eval.NewScope(eval.NewState(seed), site)
	return &REPL{
		scope:  scope,
		tmpl:   filters.NewTemplate(start, end, scope),
		output: os.Stdout,
	}
}

// SetOutput redirects what the REPL prints.
func (r *REPL) SetOutput(w io.Writer) { r.output = w }

// Run starts the interactive loop. It returns on :quit, end of input,
// interrupt or context cancellation.
func (r *REPL) Run(ctx context.Context) error {
	completer := readline.NewPrefixCompleter()
	for _, cmd := range commands {
		completer.Children = append(completer.Children, readline.PcItem(cmd.name))
	}
	for _, fn := range eval.Functions() {
		completer.Children = append(completer.Children, readline.PcItem(fn+"("))
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          r.prompt(),
		AutoComplete:    completer,
		InterruptPrompt: "^C",
		EOFPrompt:       ":quit",
	})
	if err != nil {
		return fmt.Errorf("init readline: %w", err)
	}
	r.rl = rl
	defer rl.Close()

	fmt.Fprintf(r.output, "baygon repl, delimiters %s %s\n", r.tmpl.Start, r.tmpl.End)
	fmt.Fprintf(r.output, "Type an expression, a template line, or ':help'.\n\n")

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		rl.SetPrompt(r.prompt())
		line, err := rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		if r.Exec(line) {
			return nil
		}
	}
}

func (r *REPL) prompt() string {
	return fmt.Sprintf("baygon[%d]> ", r.count+1)
}

// Exec runs one line and reports whether the REPL should exit.
//
// Lines starting with ':' are commands. A line holding the start delimiter
// is rendered as a template; any other line is evaluated as a bare
// expression.
func (r *REPL) Exec(line string) (quit bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}
	if strings.HasPrefix(line, ":") {
		return r.command(strings.Fields(line))
	}

	r.count++
	if strings.Contains(line, r.tmpl.Start) {
		out, errs := r.tmpl.Render(line)
		for _, err := range errs {
			fmt.Fprintf(r.output, "Error: %v\n", err)
		}
		fmt.Fprintln(r.output, out)
		return false
	}
	out, err := r.scope.Evaluate(line)
	if err != nil {
		fmt.Fprintf(r.output, "Error: %v\n", err)
		return false
	}
	fmt.Fprintln(r.output, out)
	return false
}
