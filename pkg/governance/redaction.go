package governance

import (
	"regexp"
	"sort"
)

// RedactionRule replaces matches of Pattern with Replace in recorded output.
type RedactionRule struct {
	Pattern string
	Replace string
}

// CompiledRedaction is a pre-compiled redaction rule.
type CompiledRedaction struct {
	Pattern *regexp.Regexp
	Replace string
}

// CompileRedactionRules compiles redaction rules.
func CompileRedactionRules(rules []RedactionRule) ([]*CompiledRedaction, error) {
	var compiled []*CompiledRedaction
	for _, r := range rules {
		re, err := regexp.Compile(r.Pattern)
		if err != nil {
			return nil, err
		}
		compiled = append(compiled, &CompiledRedaction{
			Pattern: re,
			Replace: r.Replace,
		})
	}
	return compiled, nil
}

// RedactOutput applies all compiled redaction rules to the given output.
func RedactOutput(output string, rules []*CompiledRedaction) string {
	result := output
	for _, r := range rules {
		result = r.Pattern.ReplaceAllString(result, r.Replace)
	}
	return result
}

// Redact applies the policy's redaction rules.
func (p *Policy) Redact(s string) string {
	if p == nil {
		return s
	}
	return RedactOutput(s, p.Redactions)
}

// RedactEnv returns a copy of env with the values of variables matching the
// deny patterns masked.
func (p *Policy) RedactEnv(env map[string]string) map[string]string {
	if len(env) == 0 {
		return env
	}
	out := make(map[string]string, len(env))
	for k, v := range env {
		if p.CheckEnvVar(k) != nil {
			v = "[REDACTED]"
		}
		out[k] = p.Redact(v)
	}
	return out
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
