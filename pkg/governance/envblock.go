package governance

import (
	"strings"
)

// FilterEnvVars returns environment entries with denied names removed, and
// the names that were blocked.
func (p *Policy) FilterEnvVars(env []string) ([]string, []string) {
	if p == nil || len(p.DenyEnvVars) == 0 {
		return env, nil
	}
	var filtered, blocked []string
	for _, e := range env {
		name, _, _ := strings.Cut(e, "=")
		if err := p.CheckEnvVar(name); err != nil {
			blocked = append(blocked, name)
			continue
		}
		filtered = append(filtered, e)
	}
	return filtered, blocked
}

// MergeEnv overlays extra on base ("KEY=VALUE" entries) and applies the
// deny patterns to the result.
func (p *Policy) MergeEnv(base []string, extra map[string]string) ([]string, []string) {
	merged := make([]string, 0, len(base)+len(extra))
	for _, e := range base {
		name, _, _ := strings.Cut(e, "=")
		if _, overridden := extra[name]; overridden {
			continue
		}
		merged = append(merged, e)
	}
	for _, k := range sortedKeys(extra) {
		merged = append(merged, k+"="+extra[k])
	}
	return p.FilterEnvVars(merged)
}
