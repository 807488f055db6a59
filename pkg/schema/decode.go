package schema

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

var nodeKeys = []string{
	"name", "executable", "env", "cwd", "tty", "timeout", "points", "weight",
	"min-points", "filters", "eval", "tests", "args", "stdin", "repeat",
	"exit", "stdout", "stderr",
}

var rootKeys = append([]string{"version", "compute-score"}, nodeKeys...)

// UnmarshalYAML splits root-only keys from the group keys.
func (c *Config) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: description must be a mapping", value.Line)
	}
	if err := checkKeys(value, rootKeys); err != nil {
		return err
	}
	rest := &yaml.Node{Kind: yaml.MappingNode, Tag: value.Tag, Line: value.Line, Column: value.Column}
	for i := 0; i+1 < len(value.Content); i += 2 {
		k, v := value.Content[i], value.Content[i+1]
		switch k.Value {
		case "version":
			if err := v.Decode(&c.Version); err != nil {
				return fmt.Errorf("line %d: version: %w", v.Line, err)
			}
		case "compute-score":
			var b bool
			if err := v.Decode(&b); err != nil {
				return fmt.Errorf("line %d: compute-score: %w", v.Line, err)
			}
			c.ComputeScore = &b
		default:
			rest.Content = append(rest.Content, k, v)
		}
	}
	return c.Node.UnmarshalYAML(rest)
}

// UnmarshalYAML decodes a group or test case, rejecting unknown keys.
func (n *Node) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: test must be a mapping", value.Line)
	}
	if err := checkKeys(value, nodeKeys); err != nil {
		return err
	}
	type plain Node
	return value.Decode((*plain)(n))
}

// Cases accepts a scalar (equals shorthand), a single mapping or a list
// mixing scalars and mappings.
type Cases []*CaseSpec

func (c *Cases) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		if value.Tag == "!!null" {
			*c = nil
			return nil
		}
		s := value.Value
		*c = Cases{{Equals: &s}}
	case yaml.MappingNode:
		cs := new(CaseSpec)
		if err := value.Decode(cs); err != nil {
			return err
		}
		*c = Cases{cs}
	case yaml.SequenceNode:
		out := make(Cases, 0, len(value.Content))
		for _, item := range value.Content {
			switch item.Kind {
			case yaml.ScalarNode:
				s := item.Value
				out = append(out, &CaseSpec{Equals: &s})
			case yaml.MappingNode:
				cs := new(CaseSpec)
				if err := item.Decode(cs); err != nil {
					return err
				}
				out = append(out, cs)
			default:
				return fmt.Errorf("line %d: expected a value or a mapping", item.Line)
			}
		}
		*c = out
	default:
		return fmt.Errorf("line %d: expected a value, a mapping or a list", value.Line)
	}
	return nil
}

var caseKeys = []string{"filters", "equals", "contains", "regex", "not"}

func (cs *CaseSpec) UnmarshalYAML(value *yaml.Node) error {
	if err := checkKeys(value, caseKeys); err != nil {
		return err
	}
	type plain CaseSpec
	return value.Decode((*plain)(cs))
}

// UnmarshalYAML accepts "eval: true" for the default delimiters and
// "eval: false" to turn evaluation off for a subtree.
func (e *EvalConfig) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode && value.Tag == "!!bool" {
		var on bool
		if err := value.Decode(&on); err != nil {
			return err
		}
		*e = EvalConfig{Disabled: !on}
		return nil
	}
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: eval must be a boolean or a mapping", value.Line)
	}
	if err := checkKeys(value, []string{"start", "end", "init", "seed"}); err != nil {
		return err
	}
	type plain EvalConfig
	return value.Decode((*plain)(e))
}

// StringList accepts a single scalar or a list of scalars. Numbers are kept
// in their literal form.
type StringList []string

func (s *StringList) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		*s = StringList{value.Value}
	case yaml.SequenceNode:
		out := make(StringList, 0, len(value.Content))
		for _, n := range value.Content {
			if n.Kind != yaml.ScalarNode {
				return fmt.Errorf("line %d: expected a scalar", n.Line)
			}
			out = append(out, n.Value)
		}
		*s = out
	default:
		return fmt.Errorf("line %d: expected a value or a list of values", value.Line)
	}
	return nil
}

// ExitCode is an expected exit status, possibly templated. Booleans map to
// 1 (true) and 0 (false).
type ExitCode string

func (e *ExitCode) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: exit must be an integer", value.Line)
	}
	if value.Tag == "!!bool" {
		var b bool
		if err := value.Decode(&b); err != nil {
			return err
		}
		if b {
			*e = "1"
		} else {
			*e = "0"
		}
		return nil
	}
	*e = ExitCode(value.Value)
	return nil
}

// Filters accepts an ordered mapping ({trim: true, regex: [...]}) or a list
// of filter names and single-key mappings.
type Filters []FilterSpec

func (f *Filters) UnmarshalYAML(value *yaml.Node) error {
	var out Filters
	switch value.Kind {
	case yaml.MappingNode:
		for i := 0; i+1 < len(value.Content); i += 2 {
			spec, ok, err := parseFilter(value.Content[i].Value, value.Content[i+1])
			if err != nil {
				return err
			}
			if ok {
				out = append(out, spec)
			}
		}
	case yaml.SequenceNode:
		for _, item := range value.Content {
			switch item.Kind {
			case yaml.ScalarNode:
				spec, _, err := parseFilter(item.Value, nil)
				if err != nil {
					return err
				}
				out = append(out, spec)
			case yaml.MappingNode:
				if len(item.Content) != 2 {
					return fmt.Errorf("line %d: filter list items must have a single key", item.Line)
				}
				spec, ok, err := parseFilter(item.Content[0].Value, item.Content[1])
				if err != nil {
					return err
				}
				if ok {
					out = append(out, spec)
				}
			default:
				return fmt.Errorf("line %d: invalid filter", item.Line)
			}
		}
	default:
		return fmt.Errorf("line %d: filters must be a mapping or a list", value.Line)
	}
	*f = out
	return nil
}

// parseFilter normalizes one filter declaration. ok is false when a
// boolean filter is explicitly disabled.
func parseFilter(kind string, v *yaml.Node) (spec FilterSpec, ok bool, err error) {
	line := 0
	if v != nil {
		line = v.Line
	}
	if kind == "ignore-spaces" {
		kind = "ignorespaces"
	}
	spec.Kind = kind
	switch kind {
	case "uppercase", "lowercase", "trim", "ignorespaces":
		if v == nil || v.Tag == "!!null" {
			return spec, true, nil
		}
		var enabled bool
		if err := v.Decode(&enabled); err != nil {
			return spec, false, fmt.Errorf("line %d: filter %s expects a boolean", line, kind)
		}
		return spec, enabled, nil

	case "replace":
		if v == nil {
			return spec, false, fmt.Errorf("filter replace expects [search, replace]")
		}
		switch v.Kind {
		case yaml.SequenceNode:
			var parts []string
			if err := v.Decode(&parts); err != nil || len(parts) != 2 {
				return spec, false, fmt.Errorf("line %d: filter replace expects [search, replace]", line)
			}
			spec.Search, spec.Replace = parts[0], parts[1]
		case yaml.MappingNode:
			if err := checkKeys(v, []string{"search", "replace"}); err != nil {
				return spec, false, err
			}
			var m struct {
				Search  string `yaml:"search"`
				Replace string `yaml:"replace"`
			}
			if err := v.Decode(&m); err != nil {
				return spec, false, err
			}
			spec.Search, spec.Replace = m.Search, m.Replace
		default:
			return spec, false, fmt.Errorf("line %d: filter replace expects [search, replace]", line)
		}
		return spec, true, nil

	case "regex":
		if v == nil {
			return spec, false, fmt.Errorf("filter regex expects [pattern, replace]")
		}
		switch v.Kind {
		case yaml.ScalarNode:
			spec.Pattern, spec.Replace, spec.Flags, err = ParseSed(v.Value)
			if err != nil {
				return spec, false, fmt.Errorf("line %d: %w", line, err)
			}
		case yaml.SequenceNode:
			var parts []string
			if err := v.Decode(&parts); err != nil || len(parts) < 2 || len(parts) > 3 {
				return spec, false, fmt.Errorf("line %d: filter regex expects [pattern, replace, flags?]", line)
			}
			spec.Pattern, spec.Replace = parts[0], parts[1]
			if len(parts) == 3 {
				spec.Flags = parts[2]
			}
		case yaml.MappingNode:
			if err := checkKeys(v, []string{"pattern", "replace", "flags"}); err != nil {
				return spec, false, err
			}
			var m struct {
				Pattern string `yaml:"pattern"`
				Replace string `yaml:"replace"`
				Flags   string `yaml:"flags"`
			}
			if err := v.Decode(&m); err != nil {
				return spec, false, err
			}
			spec.Pattern, spec.Replace, spec.Flags = m.Pattern, m.Replace, m.Flags
		default:
			return spec, false, fmt.Errorf("line %d: invalid regex filter", line)
		}
		return spec, true, nil
	}
	return spec, false, fmt.Errorf("line %d: unknown filter %q", line, kind)
}

// ParseSed splits a substitution of the form s/pattern/replace/flags. Any
// character following the leading s is the delimiter; it can be escaped
// with a backslash inside the pattern or the replacement.
func ParseSed(s string) (pattern, replace, flags string, err error) {
	if len(s) < 2 || s[0] != 's' {
		return "", "", "", fmt.Errorf("invalid substitution %q: expected s/pattern/replace/flags", s)
	}
	delim := s[1]
	var (
		parts []string
		cur   strings.Builder
	)
	for i := 2; i < len(s); i++ {
		c := s[i]
		if c == '\\' && i+1 < len(s) && s[i+1] == delim {
			cur.WriteByte(delim)
			i++
			continue
		}
		if c == delim && len(parts) < 2 {
			parts = append(parts, cur.String())
			cur.Reset()
			continue
		}
		cur.WriteByte(c)
	}
	if len(parts) != 2 {
		return "", "", "", fmt.Errorf("invalid substitution %q: expected s/pattern/replace/flags", s)
	}
	return parts[0], parts[1], cur.String(), nil
}

func checkKeys(value *yaml.Node, allowed []string) error {
	if value.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i < len(value.Content); i += 2 {
		k := value.Content[i]
		known := false
		for _, a := range allowed {
			if k.Value == a {
				known = true
				break
			}
		}
		if !known {
			return fmt.Errorf("line %d: field %s not found", k.Line, k.Value)
		}
	}
	return nil
}
