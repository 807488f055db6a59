package repl

import (
	"fmt"
	"sort"

	"github.com/heig-tin/baygon/pkg/eval"
)

type command struct {
	name  string
	alias string
	help  string
}

var commands = []command{
	{":vars", ":v", "Show the scope variables"},
	{":reset", ":r", "Drop variables and restart iter counters"},
	{":functions", ":f", "List the available functions"},
	{":help", ":?", "Show this help"},
	{":quit", ":q", "Exit"},
}

func (r *REPL) command(parts []string) bool {
	switch parts[0] {
	case ":vars", ":v":
		r.handleVars()
	case ":reset", ":r":
		r.scope.Clear()
		r.scope.State().Reset()
		r.count = 0
		fmt.Fprintln(r.output, "Scope reset.")
	case ":functions", ":f":
		for _, fn := range eval.Functions() {
			fmt.Fprintf(r.output, "  %s\n", fn)
		}
	case ":help", ":?":
		r.handleHelp()
	case ":quit", ":q":
		return true
	default:
		fmt.Fprintf(r.output, "Unknown command: %q. Type ':help' for available commands.\n", parts[0])
	}
	return false
}

func (r *REPL) handleVars() {
	vars := r.scope.Vars()
	if len(vars) == 0 {
		fmt.Fprintln(r.output, "No variables defined.")
		return
	}
	names := make([]string, 0, len(vars))
	for k := range vars {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, k := range names {
		fmt.Fprintf(r.output, "  %s = %s\n", k, eval.Format(vars[k]))
	}
}

func (r *REPL) handleHelp() {
	fmt.Fprintln(r.output, "Available commands:")
	for _, c := range commands {
		fmt.Fprintf(r.output, "  %-12s %-4s %s\n", c.name, c.alias, c.help)
	}
}
