// Package schema defines the Go types of a test description file and
// provides YAML/JSON loading with the shorthand forms accepted by baygon.
package schema

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Version is the only supported description format version.
const Version = 1

// Config is the root of a test description. The root is a group: it
// accepts every group key plus the root-only version and compute-score.
type Config struct {
	Version      int   `yaml:"version,omitempty"       json:"version,omitempty"`
	ComputeScore *bool `yaml:"compute-score,omitempty" json:"compute-score,omitempty"`
	Node
}

// Node is a group (Tests set) or a test case.
type Node struct {
	Name       string            `yaml:"name,omitempty"       json:"name,omitempty"`
	Executable string            `yaml:"executable,omitempty" json:"executable,omitempty"`
	Env        map[string]string `yaml:"env,omitempty"        json:"env,omitempty"`
	Cwd        string            `yaml:"cwd,omitempty"        json:"cwd,omitempty"`
	TTY        bool              `yaml:"tty,omitempty"        json:"tty,omitempty"`
	Timeout    *float64          `yaml:"timeout,omitempty"    json:"timeout,omitempty"    jsonschema:"minimum=0"`
	Points     *float64          `yaml:"points,omitempty"     json:"points,omitempty"     jsonschema:"minimum=0"`
	Weight     *float64          `yaml:"weight,omitempty"     json:"weight,omitempty"     jsonschema:"minimum=0"`
	MinPoints  *float64          `yaml:"min-points,omitempty" json:"min-points,omitempty" jsonschema:"minimum=0"`
	Filters    Filters           `yaml:"filters,omitempty"    json:"filters,omitempty"`
	Eval       *EvalConfig       `yaml:"eval,omitempty"       json:"eval,omitempty"`

	// Group
	Tests []*Node `yaml:"tests,omitempty" json:"tests,omitempty"`

	// Test case
	Args   StringList `yaml:"args,omitempty"   json:"args,omitempty"`
	Stdin  *string    `yaml:"stdin,omitempty"  json:"stdin,omitempty"`
	Repeat int        `yaml:"repeat,omitempty" json:"repeat,omitempty" jsonschema:"minimum=1"`
	Exit   *ExitCode  `yaml:"exit,omitempty"   json:"exit,omitempty"`
	Stdout Cases      `yaml:"stdout,omitempty" json:"stdout,omitempty"`
	Stderr Cases      `yaml:"stderr,omitempty" json:"stderr,omitempty"`
}

// IsGroup reports whether the node holds nested tests.
func (n *Node) IsGroup() bool { return n.Tests != nil }

// CaseSpec is one set of checks on an output stream.
type CaseSpec struct {
	Filters  Filters `yaml:"filters,omitempty"  json:"filters,omitempty"`
	Equals   *string `yaml:"equals,omitempty"   json:"equals,omitempty"`
	Contains *string `yaml:"contains,omitempty" json:"contains,omitempty"`
	Regex    *string `yaml:"regex,omitempty"    json:"regex,omitempty"`
	Not      Cases   `yaml:"not,omitempty"      json:"not,omitempty"`
}

// EvalConfig enables template evaluation.
type EvalConfig struct {
	Start string     `yaml:"start,omitempty" json:"start,omitempty"`
	End   string     `yaml:"end,omitempty"   json:"end,omitempty"`
	Init  StringList `yaml:"init,omitempty"  json:"init,omitempty"`
	Seed  *int64     `yaml:"seed,omitempty"  json:"seed,omitempty"`

	Disabled bool `yaml:"-" json:"disabled,omitempty"`
}

// FilterSpec is a normalized filter declaration.
type FilterSpec struct {
	Kind    string `json:"kind" jsonschema:"required,enum=uppercase,enum=lowercase,enum=trim,enum=ignorespaces,enum=replace,enum=regex"`
	Search  string `json:"search,omitempty"`
	Pattern string `json:"pattern,omitempty"`
	Replace string `json:"replace,omitempty"`
	Flags   string `json:"flags,omitempty" jsonschema:"pattern=^[gims]*$"`
}

// ErrNotFound is returned by Find when no description file exists.
var ErrNotFound = errors.New("no test description file found")

// Names and extensions searched by Find, in priority order.
var (
	FileNames      = []string{"baygon", "t", "test", "tests"}
	FileExtensions = []string{"json", "yml", "yaml"}
)

// Find locates a description file. A file path is returned as is; a
// directory (or "" for the working directory) is searched, then each of
// its parents up to the filesystem root.
func Find(path string) (string, error) {
	if path == "" {
		path = "."
	}
	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	if !info.IsDir() {
		return path, nil
	}
	dir, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	for {
		for _, name := range FileNames {
			for _, ext := range FileExtensions {
				f := filepath.Join(dir, name+"."+ext)
				if fi, err := os.Stat(f); err == nil && !fi.IsDir() {
					return f, nil
				}
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("%w in %s or its parents", ErrNotFound, path)
		}
		dir = parent
	}
}

// LoadFile reads and parses a description file. Unknown keys are rejected.
func LoadFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open description: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Load parses a YAML or JSON description.
func Load(r io.Reader) (*Config, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var cfg Config
	if err := dec.Decode(&cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("decode description: empty document")
		}
		return nil, fmt.Errorf("decode description: %w", err)
	}
	return &cfg, nil
}

// Parse is Load on an in-memory document.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("decode description: %w", err)
	}
	return &cfg, nil
}
