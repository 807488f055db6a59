// Package governance implements the best-effort dangerous command check and
// environment variable blocking applied before a tested program is spawned.
// It is a convenience guard, not an isolation boundary.
package governance

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrDenied is wrapped by every command rejection.
var ErrDenied = errors.New("command denied")

// DefaultDeniedCommands are refused unless explicitly allowed.
var DefaultDeniedCommands = []string{"rm", "mv", "dd", "wget", "mkfs"}

// Policy evaluates governance rules before execution.
type Policy struct {
	AllowedCommands []string
	DeniedCommands  []string
	DenyEnvVars     []string
	Redactions      []*CompiledRedaction
}

// NewPolicy returns a policy denying DefaultDeniedCommands plus denied.
// A command present in allowed is removed from the default denylist.
func NewPolicy(allowed, denied, denyEnv []string) *Policy {
	p := &Policy{
		AllowedCommands: allowed,
		DenyEnvVars:     denyEnv,
	}
	for _, d := range DefaultDeniedCommands {
		if !contains(allowed, d) {
			p.DeniedCommands = append(p.DeniedCommands, d)
		}
	}
	p.DeniedCommands = append(p.DeniedCommands, denied...)
	return p
}

// CheckCommand validates a program against the allowlist/denylist. Both the
// given name and its base name are compared, so "/bin/rm" matches "rm".
// Deny takes precedence over allow.
func (p *Policy) CheckCommand(command string) error {
	if p == nil {
		return nil
	}
	base := filepath.Base(command)
	for _, denied := range p.DeniedCommands {
		if command == denied || base == denied {
			return fmt.Errorf("%w: %q is denied by governance policy", ErrDenied, command)
		}
	}
	if len(p.AllowedCommands) > 0 {
		for _, allowed := range p.AllowedCommands {
			if command == allowed || base == allowed {
				return nil
			}
		}
		return fmt.Errorf("%w: %q is not in the governance allowlist", ErrDenied, command)
	}
	return nil
}

// CheckEnvVar validates an environment variable name against the deny patterns.
func (p *Policy) CheckEnvVar(name string) error {
	if p == nil {
		return nil
	}
	for _, pattern := range p.DenyEnvVars {
		matched, err := filepath.Match(pattern, name)
		if err != nil {
			// Invalid pattern blocks.
			return fmt.Errorf("invalid env var deny pattern %q: %w", pattern, err)
		}
		if matched {
			return fmt.Errorf("environment variable %q matches denied pattern %q", name, pattern)
		}
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}
