package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	sjsonschema "github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/heig-tin/baygon/pkg/filters"
)

// ValidationError represents a single validation error with location context.
type ValidationError struct {
	Phase    string `json:"phase"` // structural, semantic, domain
	Path     string `json:"path"`  // e.g. "tests[0].stdout[1].regex"
	Message  string `json:"message"`
	Severity string `json:"severity"` // error, warning
}

func (e *ValidationError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("[%s] %s", e.Phase, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Phase, e.Path, e.Message)
}

// HasErrors reports whether errs contains an error-severity entry.
func HasErrors(errs []*ValidationError) bool {
	for _, e := range errs {
		if e.Severity != "warning" {
			return true
		}
	}
	return false
}

// ValidateFile performs the full 3-phase validation pipeline on a file.
// Phase 1: Structural (YAML decode with shorthand normalization)
// Phase 2: Semantic (JSON Schema validation)
// Phase 3: Domain (custom Go rules)
func ValidateFile(path string) (*Config, []*ValidationError) {
	cfg, err := LoadFile(path)
	if err != nil {
		return nil, []*ValidationError{{
			Phase:    "structural",
			Message:  err.Error(),
			Severity: "error",
		}}
	}
	return cfg, Validate(cfg)
}

// Validate runs the semantic and domain phases on a loaded config.
func Validate(cfg *Config) []*ValidationError {
	var errs []*ValidationError
	errs = append(errs, validateSemantic(cfg)...)
	errs = append(errs, ValidateDomain(cfg)...)
	return errs
}

func validateSemantic(cfg *Config) []*ValidationError {
	semantic := func(format string, args ...any) []*ValidationError {
		return []*ValidationError{{
			Phase:    "semantic",
			Message:  fmt.Sprintf(format, args...),
			Severity: "error",
		}}
	}

	data, err := json.Marshal(cfg)
	if err != nil {
		return semantic("marshal for schema validation: %v", err)
	}
	schemaJSON, err := GenerateJSONSchema()
	if err != nil {
		return semantic("generate schema: %v", err)
	}
	schemaDoc, err := sjsonschema.UnmarshalJSON(bytes.NewReader(schemaJSON))
	if err != nil {
		return semantic("unmarshal schema: %v", err)
	}

	c := sjsonschema.NewCompiler()
	if err := c.AddResource(schemaID, schemaDoc); err != nil {
		return semantic("add schema resource: %v", err)
	}
	sch, err := c.Compile(schemaID)
	if err != nil {
		return semantic("compile schema: %v", err)
	}

	doc, err := sjsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return semantic("unmarshal document: %v", err)
	}
	if err := sch.Validate(doc); err != nil {
		ve, ok := err.(*sjsonschema.ValidationError)
		if !ok {
			return semantic("%v", err)
		}
		var errs []*ValidationError
		for _, cause := range flattenValidationErrors(ve) {
			errs = append(errs, &ValidationError{
				Phase:    "semantic",
				Path:     strings.Join(cause.InstanceLocation, "/"),
				Message:  fmt.Sprintf("%v", cause.ErrorKind),
				Severity: "error",
			})
		}
		return errs
	}
	return nil
}

// flattenValidationErrors recursively collects all leaf validation errors.
func flattenValidationErrors(ve *sjsonschema.ValidationError) []*sjsonschema.ValidationError {
	if len(ve.Causes) == 0 {
		return []*sjsonschema.ValidationError{ve}
	}
	var flat []*sjsonschema.ValidationError
	for _, cause := range ve.Causes {
		flat = append(flat, flattenValidationErrors(cause)...)
	}
	return flat
}

// ValidateDomain performs Phase 3 domain-level validation.
// Returns a slice of errors; empty means valid.
func ValidateDomain(cfg *Config) []*ValidationError {
	var errs []*ValidationError
	if cfg.Version != 0 && cfg.Version != Version {
		errs = append(errs, domainErr("version", "unsupported version %d, expected %d", cfg.Version, Version))
	}
	if !cfg.IsGroup() {
		errs = append(errs, domainErr("tests", "description must contain at least one test"))
	}
	v := &domainValidator{}
	v.node(&cfg.Node, "", evalOf(nil, cfg.Eval))
	return append(errs, v.errs...)
}

type domainValidator struct {
	errs []*ValidationError
}

func (v *domainValidator) add(path, format string, args ...any) {
	v.errs = append(v.errs, domainErr(path, format, args...))
}

func domainErr(path, format string, args ...any) *ValidationError {
	return &ValidationError{
		Phase:    "domain",
		Path:     path,
		Message:  fmt.Sprintf(format, args...),
		Severity: "error",
	}
}

func join(base, key string) string {
	if base == "" {
		return key
	}
	if strings.HasPrefix(key, "[") {
		return base + key
	}
	return base + "." + key
}

// evalOf returns the effective eval config of a node given its parent's.
func evalOf(parent, own *EvalConfig) *EvalConfig {
	if own == nil {
		return parent
	}
	if own.Disabled {
		return nil
	}
	return own
}

func (v *domainValidator) node(n *Node, path string, ev *EvalConfig) {
	if n.Points != nil && n.Weight != nil {
		v.add(path, "points and weight are mutually exclusive")
	}
	if n.Timeout != nil && *n.Timeout <= 0 {
		v.add(join(path, "timeout"), "timeout must be positive")
	}
	if n.MinPoints != nil && *n.MinPoints <= 0 {
		v.add(join(path, "min-points"), "min-points must be positive")
	}
	v.filters(n.Filters, join(path, "filters"))

	if n.IsGroup() {
		if len(n.Tests) == 0 {
			v.add(join(path, "tests"), "group must contain at least one test")
		}
		for _, f := range []struct {
			key string
			set bool
		}{
			{"args", n.Args != nil},
			{"stdin", n.Stdin != nil},
			{"repeat", n.Repeat != 0},
			{"exit", n.Exit != nil},
			{"stdout", n.Stdout != nil},
			{"stderr", n.Stderr != nil},
		} {
			if f.set {
				v.add(join(path, f.key), "a group cannot declare %s", f.key)
			}
		}
		for i, child := range n.Tests {
			if child == nil {
				v.add(join(path, fmt.Sprintf("tests[%d]", i)), "empty test")
				continue
			}
			v.node(child, join(path, fmt.Sprintf("tests[%d]", i)), evalOf(ev, child.Eval))
		}
		return
	}

	if n.Repeat < 0 {
		v.add(join(path, "repeat"), "repeat must be at least 1")
	}
	if n.Exit != nil && !templated(string(*n.Exit), ev) {
		if _, err := strconv.Atoi(string(*n.Exit)); err != nil {
			v.add(join(path, "exit"), "exit status %q is not an integer", string(*n.Exit))
		}
	}
	v.cases(n.Stdout, join(path, "stdout"), false)
	v.cases(n.Stderr, join(path, "stderr"), false)
}

func (v *domainValidator) cases(cs Cases, path string, negated bool) {
	for i, c := range cs {
		p := join(path, fmt.Sprintf("[%d]", i))
		if c == nil {
			v.add(p, "empty matcher")
			continue
		}
		if c.Equals == nil && c.Contains == nil && c.Regex == nil && len(c.Not) == 0 {
			v.add(p, "expected one of equals, contains, regex or not")
		}
		if c.Regex != nil {
			if _, err := regexp.Compile(*c.Regex); err != nil {
				v.add(join(p, "regex"), "invalid regex: %v", err)
			}
		}
		if negated && len(c.Not) > 0 {
			v.add(join(p, "not"), "not blocks cannot be nested")
		}
		if negated && len(c.Filters) > 0 {
			v.add(join(p, "filters"), "filters are not allowed inside a not block")
		}
		v.filters(c.Filters, join(p, "filters"))
		v.cases(c.Not, join(p, "not"), true)
	}
}

func (v *domainValidator) filters(fs Filters, path string) {
	for i, f := range fs {
		p := join(path, fmt.Sprintf("[%d]", i))
		_, err := filters.New(f.Kind, filters.Params{
			Search:  f.Search,
			Pattern: f.Pattern,
			Replace: f.Replace,
			Flags:   f.Flags,
		})
		if err != nil {
			v.add(p, "%v", err)
		}
	}
}

func templated(s string, ev *EvalConfig) bool {
	if ev == nil {
		return false
	}
	start := ev.Start
	if start == "" {
		start = filters.DefaultStart
	}
	return strings.Contains(s, start)
}
