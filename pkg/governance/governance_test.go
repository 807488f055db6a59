package governance

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestAllowlistAcceptsAllowedCommand(t *testing.T) {
	p := &Policy{AllowedCommands: []string{"python3", "node"}}
	if err := p.CheckCommand("/usr/bin/python3"); err != nil {
		t.Errorf("expected allowed, got: %v", err)
	}
}

func TestAllowlistRejectsUnlistedCommand(t *testing.T) {
	p := &Policy{AllowedCommands: []string{"python3"}}
	err := p.CheckCommand("./a.out")
	if !errors.Is(err, ErrDenied) {
		t.Errorf("expected ErrDenied, got %v", err)
	}
}

func TestDefaultDenylist(t *testing.T) {
	p := NewPolicy(nil, nil, nil)
	for _, c := range []string{"rm", "/bin/rm", "mv", "dd", "wget", "mkfs"} {
		if err := p.CheckCommand(c); !errors.Is(err, ErrDenied) {
			t.Errorf("%s: expected ErrDenied, got %v", c, err)
		}
	}
	if err := p.CheckCommand("echo"); err != nil {
		t.Errorf("echo: %v", err)
	}
}

func TestAllowOverridesDefaultDeny(t *testing.T) {
	p := NewPolicy([]string{"mv", "echo"}, nil, nil)
	if err := p.CheckCommand("mv"); err != nil {
		t.Errorf("mv should be allowed: %v", err)
	}
	if err := p.CheckCommand("rm"); err == nil {
		t.Error("rm should still be denied")
	}
}

func TestCombinedAllowDenyMode(t *testing.T) {
	p := &Policy{
		AllowedCommands: []string{"python3", "curl"},
		DeniedCommands:  []string{"curl"},
	}
	if err := p.CheckCommand("python3"); err != nil {
		t.Errorf("python3 should pass: %v", err)
	}
	if err := p.CheckCommand("curl"); err == nil {
		t.Error("curl should be denied (deny takes precedence)")
	}
}

func TestNilPolicyAllowsAll(t *testing.T) {
	var p *Policy
	if err := p.CheckCommand("rm"); err != nil {
		t.Errorf("nil policy should allow all: %v", err)
	}
	env := []string{"A=1"}
	if got, _ := p.FilterEnvVars(env); len(got) != 1 {
		t.Errorf("nil policy filtered env: %v", got)
	}
}

func TestEnvVarPatternMatching(t *testing.T) {
	p := &Policy{DenyEnvVars: []string{"SECRET_*", "TOKEN", "AWS_*"}}
	tests := []struct {
		name    string
		blocked bool
	}{
		{"SECRET_KEY", true},
		{"TOKEN", true},
		{"AWS_ACCESS_KEY", true},
		{"HOME", false},
		{"PATH", false},
	}
	for _, tt := range tests {
		err := p.CheckEnvVar(tt.name)
		if tt.blocked != (err != nil) {
			t.Errorf("%s: blocked = %v, want %v", tt.name, err != nil, tt.blocked)
		}
	}
}

func TestMergeEnv(t *testing.T) {
	p := &Policy{DenyEnvVars: []string{"SECRET_*"}}
	base := []string{"HOME=/root", "LANG=C", "SECRET_KEY=x"}
	got, blocked := p.MergeEnv(base, map[string]string{"LANG": "fr_CH", "B": "2", "A": "1"})
	want := []string{"HOME=/root", "A=1", "B=2", "LANG=fr_CH"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("env (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"SECRET_KEY"}, blocked); diff != "" {
		t.Errorf("blocked (-want +got):\n%s", diff)
	}
}

func TestRedaction(t *testing.T) {
	rules, err := CompileRedactionRules([]RedactionRule{{Pattern: `token=\w+`, Replace: "token=***"}})
	if err != nil {
		t.Fatal(err)
	}
	p := &Policy{DenyEnvVars: []string{"PASS*"}, Redactions: rules}
	if got := p.Redact("curl -H token=abc123"); got != "curl -H token=***" {
		t.Errorf("got %q", got)
	}
	env := p.RedactEnv(map[string]string{"PASSWORD": "hunter2", "USER": "token=zz"})
	if env["PASSWORD"] != "[REDACTED]" || env["USER"] != "token=***" {
		t.Errorf("env = %v", env)
	}
	if _, err := CompileRedactionRules([]RedactionRule{{Pattern: "("}}); err == nil {
		t.Error("expected compile error")
	}
}
