package suite

import (
	"errors"
	"fmt"
)

// Configuration error kinds. A *ConfigError wraps exactly one of them.
var (
	ErrInvalidExecutable  = errors.New("invalid executable")
	ErrExecutableOverride = errors.New("executable already defined")
	ErrEnvOverride        = errors.New("environment variable already defined")
	ErrCwdOverride        = errors.New("working directory already defined")
	ErrNoExecutable       = errors.New("no executable")
	ErrNoTests            = errors.New("no tests")
	ErrPointsAndWeight    = errors.New("points and weight are mutually exclusive")
	ErrInvalidPoints      = errors.New("invalid points")
	ErrInvalidMatcher     = errors.New("invalid matcher")
	ErrInvalidFilter      = errors.New("invalid filter")
	ErrInvalidEval        = errors.New("invalid eval")
)

// ErrSkipped is returned by TestCase.Run when the case was not executed.
var ErrSkipped = errors.New("skipped")

// ConfigError is a structural error found while resolving a description.
// It aborts resolution before any process is spawned.
type ConfigError struct {
	Path    string // e.g. "tests[1].tests[0].executable"
	Kind    error
	Message string
	Cause   error
}

func (e *ConfigError) Error() string {
	msg := e.Kind.Error()
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	if e.Path == "" {
		return msg
	}
	return fmt.Sprintf("%s: %s", e.Path, msg)
}

func (e *ConfigError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Cause}
}

func configErr(path string, kind error, format string, args ...any) *ConfigError {
	return &ConfigError{Path: path, Kind: kind, Message: fmt.Sprintf(format, args...)}
}
