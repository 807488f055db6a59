package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/heig-tin/baygon/pkg/executable"
	"github.com/heig-tin/baygon/pkg/governance"
	"github.com/heig-tin/baygon/pkg/report"
	"github.com/heig-tin/baygon/pkg/runner"
	"github.com/heig-tin/baygon/pkg/schema"
	"github.com/heig-tin/baygon/pkg/suite"
	"github.com/heig-tin/baygon/pkg/trace"
)

type runOptions struct {
	executable    string
	config        string
	verbose       int
	limit         int
	debug         bool
	timeout       time.Duration
	report        string
	trace         string
	missing       string
	denyCommands  []string
	allowCommands []string
	denyEnv       []string
	redact        []string
	json          bool
}

func (o *runOptions) policy() (*governance.Policy, error) {
	p := governance.NewPolicy(o.allowCommands, o.denyCommands, o.denyEnv)
	rules := make([]governance.RedactionRule, len(o.redact))
	for i, pattern := range o.redact {
		rules[i] = governance.RedactionRule{Pattern: pattern, Replace: "[REDACTED]"}
	}
	compiled, err := governance.CompileRedactionRules(rules)
	if err != nil {
		return nil, fmt.Errorf("invalid --redact: %w", err)
	}
	p.Redactions = compiled
	return p, nil
}

func missingPolicy(s string) (suite.MissingPolicy, error) {
	switch p := suite.MissingPolicy(s); p {
	case suite.Abort, suite.Skip:
		return p, nil
	}
	return "", fmt.Errorf("invalid --missing-executable %q: expected abort or skip", s)
}

func runSuite(cmd *cobra.Command, o *runOptions) error {
	out, errOut := cmd.OutOrStdout(), cmd.ErrOrStderr()

	logger, err := newLogger(o.verbose, o.debug)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	missing, err := missingPolicy(o.missing)
	if err != nil {
		return invalid(err)
	}
	policy, err := o.policy()
	if err != nil {
		return invalid(err)
	}

	path, cfg, err := loadDescription(o.config, errOut)
	if err != nil {
		return invalid(err)
	}
	logger.Info("loaded description", zap.String("path", path))

	exe := o.executable
	if strings.ContainsRune(exe, filepath.Separator) || strings.ContainsRune(exe, '/') {
		if abs, err := filepath.Abs(exe); err == nil {
			exe = abs
		}
	}
	s, err := suite.Resolve(cfg, suite.Options{
		Executable:  exe,
		BaseDir:     filepath.Dir(path),
		Timeout:     o.timeout,
		MissingRoot: missing,
		Executor:    &executable.Exec{Policy: policy, Logger: logger},
		Logger:      logger,
	})
	if err != nil {
		return invalid(err)
	}

	r := &runner.Runner{Limit: o.limit, Logger: logger}
	var entryFns []func(runner.Entry)

	var console *report.Console
	if !o.json {
		console = report.NewConsole(out, s)
		console.Verbose = o.verbose
		entryFns = append(entryFns, console.Entry)
	}

	var (
		tw        *trace.Writer
		traceHook suite.Hook
	)
	if o.trace != "" {
		if tw, err = trace.NewFileWriter(o.trace, ""); err != nil {
			return err
		}
		defer tw.Close()
		tw.SetPolicy(policy)
		if err := tw.EmitRunStart(s); err != nil {
			return err
		}
		traceHook = tw.Hook()
		entryFns = append(entryFns, func(e runner.Entry) {
			if err := tw.EmitCase(e); err != nil {
				logger.Warn("trace write failed", zap.Error(err))
			}
		})
		logger.Info("tracing", zap.String("path", o.trace), zap.String("run_id", tw.RunID()))
	}
	r.Hook = suite.Hooks(logCommand(logger), traceHook)
	r.OnEntry = func(e runner.Entry) {
		for _, fn := range entryFns {
			fn(e)
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	rep, runErr := r.Run(ctx, s)
	if rep != nil {
		if console != nil {
			console.Summary(rep)
		} else if err := report.WriteJSON(out, rep); err != nil {
			return err
		}
		if o.report != "" {
			if err := writeReport(o.report, rep); err != nil {
				return err
			}
		}
		if tw != nil {
			if err := tw.EmitRunComplete(rep); err != nil {
				return err
			}
			if err := tw.Err(); err != nil {
				return fmt.Errorf("trace %s is incomplete: %w", o.trace, err)
			}
		}
	}
	if runErr != nil {
		return runErr
	}
	if !rep.OK() {
		return errTestsFailed
	}
	return nil
}

func logCommand(logger *zap.Logger) suite.Hook {
	return func(e suite.Execution) {
		fields := []zap.Field{
			zap.String("test", e.TestID),
			zap.String("command", e.Command()),
			zap.Int("exit", e.ExitStatus),
			zap.Duration("elapsed", e.Elapsed),
		}
		if e.Err != nil {
			fields = append(fields, zap.Error(e.Err))
		}
		logger.Info("executed", fields...)
	}
}

func writeReport(path string, rep *runner.Report) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	if err := report.WriteJSON(f, rep); err != nil {
		f.Close()
		return fmt.Errorf("write report: %w", err)
	}
	return f.Close()
}

// loadDescription finds and validates a description, printing warnings and
// validation errors.
func loadDescription(config string, errOut io.Writer) (string, *schema.Config, error) {
	path, err := schema.Find(config)
	if err != nil {
		return "", nil, err
	}
	cfg, errs := schema.ValidateFile(path)
	printValidation(errOut, errs)
	if schema.HasErrors(errs) {
		return path, nil, fmt.Errorf("%s: validation failed with %d error(s)", path, countErrors(errs))
	}
	return path, cfg, nil
}
