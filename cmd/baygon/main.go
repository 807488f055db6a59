package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Version is set at build time via ldflags.
var (
	version = "dev"
	commit  = "unknown"
)

// Exit codes.
const (
	exitOK      = 0
	exitFailed  = 1
	exitInvalid = 2
)

// errTestsFailed is returned when the run completed with failures. The
// report already says so; main prints nothing more.
var errTestsFailed = errors.New("some tests failed")

// invalidError marks configuration and validation errors.
type invalidError struct{ err error }

func (e *invalidError) Error() string { return e.err.Error() }
func (e *invalidError) Unwrap() error { return e.err }

func invalid(err error) error {
	if err == nil {
		return nil
	}
	return &invalidError{err: err}
}

func exitCode(err error) int {
	var inv *invalidError
	switch {
	case err == nil:
		return exitOK
	case errors.As(err, &inv):
		return exitInvalid
	default:
		return exitFailed
	}
}

func main() {
	cmd := newRootCmd()
	err := cmd.Execute()
	if err != nil && !errors.Is(err, errTestsFailed) {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	os.Exit(exitCode(err))
}

func newRootCmd() *cobra.Command {
	opts := &runOptions{}
	root := &cobra.Command{
		Use:   "baygon [executable]",
		Short: "Functional tests for command-line programs",
		Long: `baygon runs a program against a YAML or JSON test description and
checks its output streams and exit status.

Without --config, baygon looks for baygon, t, test or tests with a .json,
.yml or .yaml extension in the working directory, then in each parent.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				opts.executable = args[0]
			}
			return runSuite(cmd, opts)
		},
	}

	f := root.Flags()
	f.StringVarP(&opts.config, "config", "t", "", "Test description file or directory to search")
	f.CountVarP(&opts.verbose, "verbose", "v", "Increase verbosity (repeatable)")
	f.IntVarP(&opts.limit, "limit", "l", 0, "Stop after this many failed tests (0: no limit)")
	f.BoolVarP(&opts.debug, "debug", "d", false, "Enable debug logging")
	f.DurationVar(&opts.timeout, "timeout", 0, "Default timeout of each test (e.g. 5s)")
	f.StringVar(&opts.report, "report", "", "Write the JSON report to this file")
	f.StringVar(&opts.trace, "trace", "", "Write a JSONL execution trace to this file")
	f.StringVar(&opts.missing, "missing-executable", "abort", "What to do when the root executable is missing: abort or skip")
	f.StringArrayVar(&opts.denyCommands, "deny-command", nil, "Refuse to run this program, repeatable")
	f.StringArrayVar(&opts.allowCommands, "allow-command", nil, "Only run listed programs, repeatable")
	f.StringArrayVar(&opts.denyEnv, "deny-env", nil, "Drop environment variables matching this pattern, repeatable")
	f.StringArrayVar(&opts.redact, "redact", nil, "Mask matches of this regular expression in the trace, repeatable")
	f.BoolVar(&opts.json, "json", false, "Print the JSON report instead of the console report")

	root.AddCommand(newValidateCmd())
	root.AddCommand(newSchemaCmd())
	root.AddCommand(newReplCmd())
	root.AddCommand(newTraceCmd())
	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "baygon %s (build: %s)\n", version, commit)
		},
	})
	return root
}

// newLogger writes JSON logs to stderr: warn by default, info with -vv,
// debug with -vvv or --debug.
func newLogger(verbose int, debug bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	cfg.Sampling = nil
	cfg.Level = zap.NewAtomicLevelAt(logLevel(verbose, debug))
	return cfg.Build()
}

func logLevel(verbose int, debug bool) zapcore.Level {
	switch {
	case debug || verbose >= 3:
		return zapcore.DebugLevel
	case verbose == 2:
		return zapcore.InfoLevel
	default:
		return zapcore.WarnLevel
	}
}
