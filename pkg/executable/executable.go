// Package executable runs the program under test and captures its outputs.
package executable

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/heig-tin/baygon/pkg/governance"
)

// ErrTimeout is returned when a program exceeds its timeout. The process
// tree has been killed; the returned Result holds what was captured.
var ErrTimeout = errors.New("timeout")

// Command describes one invocation.
type Command struct {
	Path    string
	Args    []string
	Stdin   []byte // nil: no input
	Env     map[string]string
	Dir     string
	TTY     bool
	Timeout time.Duration // 0: none
}

// Result holds the output of a single invocation.
type Result struct {
	ExitCode int           `json:"exit_code"`
	Stdout   string        `json:"stdout"`
	Stderr   string        `json:"stderr"`
	Duration time.Duration `json:"duration"`
}

// Executor abstracts process execution.
type Executor interface {
	Run(ctx context.Context, cmd Command) (*Result, error)
}

// Exec runs commands via os/exec.
type Exec struct {
	// Policy is checked before spawning and filters the environment.
	Policy *governance.Policy
	// Environ is the base environment; nil means os.Environ().
	Environ []string
	// WaitDelay bounds how long output pipes are drained after the process
	// is gone. Zero uses one second.
	WaitDelay time.Duration
	Logger    *zap.Logger
}

func (e *Exec) logger() *zap.Logger {
	if e.Logger == nil {
		return zap.NewNop()
	}
	return e.Logger
}

// Run executes c. Non-zero exit codes are not errors; spawn failures,
// governance denials and timeouts are.
func (e *Exec) Run(ctx context.Context, c Command) (*Result, error) {
	if err := e.Policy.CheckCommand(c.Path); err != nil {
		return nil, err
	}
	base := e.Environ
	if base == nil {
		base = os.Environ()
	}
	env, blocked := e.Policy.MergeEnv(base, c.Env)
	if len(blocked) > 0 {
		e.logger().Debug("environment variables blocked", zap.Strings("names", blocked))
	}

	runCtx := ctx
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, c.Path, c.Args...)
	cmd.Env = env
	cmd.Dir = c.Dir
	cmd.Cancel = func() error { return killTree(cmd.Process) }
	cmd.WaitDelay = e.WaitDelay
	if cmd.WaitDelay == 0 {
		cmd.WaitDelay = time.Second
	}
	if c.Stdin != nil {
		cmd.Stdin = bytes.NewReader(c.Stdin)
	}

	start := time.Now()
	var (
		stdout, stderr string
		err            error
	)
	if c.TTY {
		stdout, err = runTTY(cmd)
	} else {
		var outBuf, errBuf bytes.Buffer
		cmd.Stdout = &outBuf
		cmd.Stderr = &errBuf
		err = cmd.Run()
		stdout, stderr = outBuf.String(), errBuf.String()
	}
	res := &Result{
		ExitCode: -1,
		Stdout:   normalizeLineEndings(stdout),
		Stderr:   normalizeLineEndings(stderr),
		Duration: time.Since(start),
	}
	if cmd.ProcessState != nil {
		res.ExitCode = cmd.ProcessState.ExitCode()
	}

	log := e.logger().With(zap.String("path", c.Path), zap.Strings("args", c.Args))
	if c.Timeout > 0 && errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		log.Warn("timeout", zap.Duration("timeout", c.Timeout))
		return res, fmt.Errorf("%s after %s: %w", c.Path, c.Timeout, ErrTimeout)
	}
	if ctx.Err() != nil {
		return res, ctx.Err()
	}
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			if errors.Is(err, exec.ErrWaitDelay) {
				// Output pipes held open by a grandchild; the exit code is valid.
				log.Debug("output pipes still open after exit")
			} else {
				log.Warn("spawn failed", zap.Error(err))
				return nil, fmt.Errorf("execute command %q: %w", c.Path, err)
			}
		}
	}
	log.Debug("executed", zap.Int("exit", res.ExitCode), zap.Duration("elapsed", res.Duration))
	return res, nil
}

// normalizeLineEndings converts \r\n to \n.
func normalizeLineEndings(s string) string {
	return strings.ReplaceAll(s, "\r\n", "\n")
}
