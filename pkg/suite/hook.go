package suite

import (
	"time"

	"github.com/kballard/go-shellquote"
)

// Execution describes one process invocation of a test case, as passed to
// a Hook.
type Execution struct {
	TestID     string
	TestName   string
	Argv       []string
	Dir        string
	Env        map[string]string
	Stdin      string
	Stdout     string
	Stderr     string
	ExitStatus int
	Elapsed    time.Duration
	Err        error // timeout or spawn failure
}

// Command returns the shell-quoted command line.
func (e Execution) Command() string {
	return shellquote.Join(e.Argv...)
}

// Hook is invoked synchronously after each process invocation.
type Hook func(Execution)

// Hooks combines several hooks into one. Nil hooks are ignored.
func Hooks(hooks ...Hook) Hook {
	var hs []Hook
	for _, h := range hooks {
		if h != nil {
			hs = append(hs, h)
		}
	}
	switch len(hs) {
	case 0:
		return nil
	case 1:
		return hs[0]
	}
	return func(e Execution) {
		for _, h := range hs {
			h(e)
		}
	}
}
