package suite

import (
	"fmt"
	"maps"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/heig-tin/baygon/pkg/eval"
	"github.com/heig-tin/baygon/pkg/executable"
	"github.com/heig-tin/baygon/pkg/filters"
	"github.com/heig-tin/baygon/pkg/governance"
	"github.com/heig-tin/baygon/pkg/id"
	"github.com/heig-tin/baygon/pkg/matchers"
	"github.com/heig-tin/baygon/pkg/schema"
	"github.com/heig-tin/baygon/pkg/score"
)

// MissingPolicy selects what happens when an executable cannot be found.
type MissingPolicy string

const (
	// Abort fails resolution with ErrInvalidExecutable.
	Abort MissingPolicy = "abort"
	// Skip marks every case of the subtree as skipped.
	Skip MissingPolicy = "skip"
)

// Options tune Resolve.
type Options struct {
	// Executable is the program given on the command line. It counts as a
	// root declaration: the description may not declare one as well.
	Executable string
	// BaseDir anchors relative cwd and executable paths, usually the
	// directory of the description file.
	BaseDir string
	// Timeout applies to cases whose description sets none. Zero: none.
	Timeout time.Duration

	// MissingRoot applies to the root executable (default Abort),
	// MissingSubtree to executables declared below the root (default Skip).
	MissingRoot    MissingPolicy
	MissingSubtree MissingPolicy

	Executor executable.Executor
	Logger   *zap.Logger
}

// Suite is a resolved description: the root group plus the state shared by
// the evaluation scopes of its cases.
type Suite struct {
	*TestGroup

	Version      int
	ComputeScore bool

	state *eval.State
}

// State returns the evaluation state shared by the cases.
func (s *Suite) State() *eval.State { return s.state }

// Reset restarts iter counters and the random source, reinitializes each
// case scope and forgets previous results. Two runs separated by Reset
// render the same templates.
func (s *Suite) Reset() {
	s.state.Reset()
	s.TestGroup.Reset()
}

// Cases returns every test case in execution order.
func (s *Suite) Cases() []*TestCase { return Cases(s.TestGroup) }

const cliExecutable = "command line"

// inherited is the context flowing from a node to its children.
type inherited struct {
	exe     string
	exePath string // where the executable was declared
	skip    string
	env     map[string]string
	envPath map[string]string
	dir     string
	dirPath string
	tty     bool
	timeout time.Duration
	filters filters.Filters
	eval    *evalContext
}

type evalContext struct {
	start, end string
	init       []string
}

func (in inherited) child() inherited {
	out := in
	out.env = maps.Clone(in.env)
	out.envPath = maps.Clone(in.envPath)
	return out
}

func (in inherited) target() Target {
	return Target{
		Executable: in.exe,
		Env:        in.env,
		Dir:        in.dir,
		TTY:        in.tty,
		Timeout:    in.timeout,
	}
}

type resolver struct {
	opts  Options
	state *eval.State
	log   *zap.Logger
}

// Resolve builds the test tree of cfg. Inherited context flows from each
// group to its children: filters are extended, while executable, env
// entries and cwd may only be set where no ancestor set them. Identifiers
// are numbered depth-first and points are assigned once the tree is built.
func Resolve(cfg *schema.Config, opts Options) (*Suite, error) {
	if opts.MissingRoot == "" {
		opts.MissingRoot = Abort
	}
	if opts.MissingSubtree == "" {
		opts.MissingSubtree = Skip
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Executor == nil {
		opts.Executor = &executable.Exec{Policy: governance.NewPolicy(nil, nil, nil), Logger: opts.Logger}
	}
	if !cfg.IsGroup() || len(cfg.Tests) == 0 {
		return nil, configErr("tests", ErrNoTests, "description must contain at least one test")
	}

	var seed *int64
	if cfg.Eval != nil && !cfg.Eval.Disabled {
		seed = cfg.Eval.Seed
	}
	r := &resolver{opts: opts, state: eval.NewState(seed), log: opts.Logger}

	in := inherited{
		env:     map[string]string{},
		envPath: map[string]string{},
		dir:     opts.BaseDir,
		timeout: opts.Timeout,
	}
	if opts.Executable != "" {
		if cfg.Executable != "" {
			return nil, configErr("executable", ErrExecutableOverride,
				"%q given on the command line and %q in the description", opts.Executable, cfg.Executable)
		}
		var err error
		if in, err = r.executable(in, opts.Executable, cliExecutable); err != nil {
			return nil, err
		}
	}

	root, err := r.group(&cfg.Node, "", id.Of(0), in)
	if err != nil {
		return nil, err
	}
	s := &Suite{TestGroup: root, Version: cfg.Version, state: r.state}
	if err := r.score(s, cfg); err != nil {
		return nil, err
	}
	return s, nil
}

func join(base, key string) string {
	if base == "" {
		return key
	}
	return base + "." + key
}

func (r *resolver) inherit(n *schema.Node, path string, parent inherited) (inherited, error) {
	in := parent.child()

	if n.Cwd != "" {
		if in.dirPath != "" {
			return in, configErr(join(path, "cwd"), ErrCwdOverride, "already set at %s", in.dirPath)
		}
		dir := n.Cwd
		if !filepath.IsAbs(dir) && in.dir != "" {
			dir = filepath.Join(in.dir, dir)
		}
		in.dir, in.dirPath = dir, join(path, "cwd")
	}
	for _, k := range slices.Sorted(maps.Keys(n.Env)) {
		if at, ok := in.envPath[k]; ok {
			return in, configErr(join(path, "env."+k), ErrEnvOverride, "%s already set at %s", k, at)
		}
		in.env[k] = n.Env[k]
		in.envPath[k] = join(path, "env."+k)
	}
	if n.Executable != "" {
		if in.exePath != "" {
			return in, configErr(join(path, "executable"), ErrExecutableOverride,
				"%q already defined at %s", in.exe, in.exePath)
		}
		var err error
		if in, err = r.executable(in, n.Executable, join(path, "executable")); err != nil {
			return in, err
		}
	}
	if n.TTY {
		in.tty = true
	}
	if n.Timeout != nil {
		in.timeout = time.Duration(*n.Timeout * float64(time.Second))
	}
	if len(n.Filters) > 0 {
		fs, err := buildFilters(n.Filters, join(path, "filters"))
		if err != nil {
			return in, err
		}
		in.filters = in.filters.Extend(fs...)
	}
	if n.Eval != nil {
		if n.Eval.Disabled {
			in.eval = nil
		} else {
			ev := &evalContext{start: filters.DefaultStart, end: filters.DefaultEnd}
			if in.eval != nil {
				*ev = *in.eval
				ev.init = slices.Clone(in.eval.init)
			}
			if n.Eval.Start != "" {
				ev.start = n.Eval.Start
			}
			if n.Eval.End != "" {
				ev.end = n.Eval.End
			}
			ev.init = append(ev.init, n.Eval.Init...)
			if n.Eval.Seed != nil && path != "" {
				r.log.Warn("eval seed ignored below the root", zap.String("path", join(path, "eval.seed")))
			}
			in.eval = ev
		}
	}
	return in, nil
}

// executable resolves name against the inherited working directory and
// applies the missing-executable policy.
func (r *resolver) executable(in inherited, name, path string) (inherited, error) {
	in.exePath = path
	resolved, err := executable.Resolve(name, in.dir)
	if err == nil {
		r.log.Debug("executable resolved", zap.String("name", name), zap.String("path", resolved))
		in.exe = resolved
		return in, nil
	}
	policy := r.opts.MissingSubtree
	if path == cliExecutable || path == "executable" {
		policy = r.opts.MissingRoot
	}
	if policy == Abort {
		return in, &ConfigError{Path: path, Kind: ErrInvalidExecutable, Message: name, Cause: err}
	}
	r.log.Warn("executable not found, skipping subtree", zap.String("name", name), zap.String("path", path))
	in.exe = name
	in.skip = fmt.Sprintf("executable %q not found", name)
	return in, nil
}

func (r *resolver) group(n *schema.Node, path string, gid id.ID, parent inherited) (*TestGroup, error) {
	in, err := r.inherit(n, path, parent)
	if err != nil {
		return nil, err
	}
	g := &TestGroup{
		Named:      Named{id: gid, name: n.Name, path: path},
		Target:     in.target(),
		Filters:    in.filters,
		SkipReason: in.skip,
	}
	if len(n.Tests) == 0 {
		return nil, configErr(join(path, "tests"), ErrNoTests, "group must contain at least one test")
	}

	cur := gid.Down(0)
	if path == "" {
		// Top-level tests are numbered 1, 2, ... rather than 0.1, 0.2.
		cur = id.Of(0)
	}
	for i, child := range n.Tests {
		cur = cur.Next()
		cpath := join(path, fmt.Sprintf("tests[%d]", i))
		if child == nil {
			return nil, configErr(cpath, ErrNoTests, "empty test")
		}
		var node Node
		if child.IsGroup() {
			node, err = r.group(child, cpath, cur, in)
		} else {
			node, err = r.testCase(child, cpath, cur, in)
		}
		if err != nil {
			return nil, err
		}
		g.tests = append(g.tests, node)
	}
	r.log.Debug("resolved group", zap.String("id", gid.String()), zap.String("name", n.Name), zap.Int("tests", len(g.tests)))
	return g, nil
}

func (r *resolver) testCase(n *schema.Node, path string, cid id.ID, parent inherited) (*TestCase, error) {
	in, err := r.inherit(n, path, parent)
	if err != nil {
		return nil, err
	}
	if in.exe == "" {
		return nil, configErr(path, ErrNoExecutable, "no executable declared for this test or its groups")
	}

	tc := &TestCase{
		Named:      Named{id: cid, name: n.Name, path: path},
		Target:     in.target(),
		Args:       slices.Clone([]string(n.Args)),
		Stdin:      n.Stdin,
		Repeat:     max(n.Repeat, 1),
		Filters:    in.filters,
		SkipReason: in.skip,
		executor:   r.opts.Executor,
		logger:     r.log,
	}
	if n.Exit != nil {
		exit := string(*n.Exit)
		tc.Exit = &exit
	}
	if in.eval != nil {
		tc.start, tc.end, tc.init = in.eval.start, in.eval.end, in.eval.init
		tc.scope = eval.NewScope(r.state, cid.String())
		if err := tc.scope.Init(tc.init); err != nil {
			return nil, &ConfigError{Path: join(path, "eval.init"), Kind: ErrInvalidEval, Cause: err}
		}
	}
	if tc.Exit != nil && !tc.templated(*tc.Exit) {
		if _, err := strconv.Atoi(strings.TrimSpace(*tc.Exit)); err != nil {
			return nil, configErr(join(path, "exit"), ErrInvalidMatcher, "exit status %q is not an integer", *tc.Exit)
		}
	}
	if tc.Stdout, err = r.checks(tc, n.Stdout, path, matchers.Stdout); err != nil {
		return nil, err
	}
	if tc.Stderr, err = r.checks(tc, n.Stderr, path, matchers.Stderr); err != nil {
		return nil, err
	}
	r.log.Debug("resolved test",
		zap.String("id", cid.String()),
		zap.String("name", n.Name),
		zap.String("executable", tc.Executable),
		zap.Int("repeat", tc.Repeat),
		zap.String("skip", tc.SkipReason))
	return tc, nil
}

func (r *resolver) checks(tc *TestCase, cases schema.Cases, path, stream string) ([]*Check, error) {
	var out []*Check
	for i, c := range cases {
		site := fmt.Sprintf("%s[%d]", stream, i)
		cpath := join(path, site)
		if c == nil {
			return nil, configErr(cpath, ErrInvalidMatcher, "empty matcher")
		}
		chk := &Check{Filters: tc.Filters}
		if len(c.Filters) > 0 {
			fs, err := buildFilters(c.Filters, join(cpath, "filters"))
			if err != nil {
				return nil, err
			}
			chk.Filters = chk.Filters.Extend(fs...)
		}
		if c.Equals == nil && c.Contains == nil && c.Regex == nil && len(c.Not) == 0 {
			return nil, configErr(cpath, ErrInvalidMatcher, "expected one of equals, contains, regex or not")
		}
		if err := r.expect(tc, chk, c, cpath, site, false); err != nil {
			return nil, err
		}
		for j, nc := range c.Not {
			npath := join(cpath, fmt.Sprintf("not[%d]", j))
			nsite := fmt.Sprintf("%s.not[%d]", site, j)
			switch {
			case nc == nil || (nc.Equals == nil && nc.Contains == nil && nc.Regex == nil):
				return nil, configErr(npath, ErrInvalidMatcher, "expected one of equals, contains or regex")
			case len(nc.Not) > 0:
				return nil, configErr(npath, ErrInvalidMatcher, "not blocks cannot be nested")
			case len(nc.Filters) > 0:
				return nil, configErr(npath, ErrInvalidFilter, "filters are not allowed inside a not block")
			}
			if err := r.expect(tc, chk, nc, npath, nsite, true); err != nil {
				return nil, err
			}
		}
		out = append(out, chk)
	}
	return out, nil
}

func (r *resolver) expect(tc *TestCase, chk *Check, c *schema.CaseSpec, path, site string, inverse bool) error {
	for _, kv := range []struct {
		kind matchers.Kind
		v    *string
	}{
		{matchers.Equals, c.Equals},
		{matchers.Contains, c.Contains},
		{matchers.Regex, c.Regex},
	} {
		if kv.v == nil {
			continue
		}
		e := &Expectation{
			Kind:     kv.kind,
			Expected: *kv.v,
			Inverse:  inverse,
			site:     site + "." + string(kv.kind),
		}
		if !tc.templated(e.Expected) {
			m, err := matchers.New(kv.kind, e.Expected, inverse)
			if err != nil {
				return &ConfigError{Path: join(path, string(kv.kind)), Kind: ErrInvalidMatcher, Cause: err}
			}
			e.matcher = m
		}
		chk.Expect = append(chk.Expect, e)
	}
	return nil
}

func buildFilters(specs schema.Filters, path string) (filters.Filters, error) {
	out := make(filters.Filters, 0, len(specs))
	for i, f := range specs {
		flt, err := filters.New(f.Kind, filters.Params{
			Search:  f.Search,
			Pattern: f.Pattern,
			Replace: f.Replace,
			Flags:   f.Flags,
		})
		if err != nil {
			return nil, &ConfigError{Path: fmt.Sprintf("%s[%d]", path, i), Kind: ErrInvalidFilter, Cause: err}
		}
		out = append(out, flt)
	}
	return out, nil
}

// score mirrors the tree into score nodes and assigns points.
func (r *resolver) score(s *Suite, cfg *schema.Config) error {
	var (
		mirror  func(n Node, src *schema.Node) (*score.Node, error)
		nleaves int
	)
	mirror = func(n Node, src *schema.Node) (*score.Node, error) {
		if src.Points != nil && src.Weight != nil {
			return nil, configErr(n.Path(), ErrPointsAndWeight, "declare either points or weight")
		}
		sn := &score.Node{
			Points:    decimalPtr(src.Points),
			Weight:    decimalPtr(src.Weight),
			MinPoints: decimalPtr(src.MinPoints),
		}
		switch t := n.(type) {
		case *TestGroup:
			t.score = sn
			for i, c := range t.tests {
				cs, err := mirror(c, src.Tests[i])
				if err != nil {
					return nil, err
				}
				sn.Children = append(sn.Children, cs)
			}
		case *TestCase:
			t.score = sn
			nleaves++
		}
		return sn, nil
	}
	root, err := mirror(s.TestGroup, &cfg.Node)
	if err != nil {
		return err
	}

	enabled := root.Declared()
	if cfg.ComputeScore != nil {
		enabled = *cfg.ComputeScore
		if enabled && !root.Declared() {
			// Nothing declared: every case is worth one point.
			p := decimal.NewFromInt(int64(nleaves))
			root.Points = &p
		}
	}
	if !enabled {
		Walk(s.TestGroup, func(n Node) bool {
			switch t := n.(type) {
			case *TestGroup:
				t.score = nil
			case *TestCase:
				t.score = nil
			}
			return true
		})
		return nil
	}
	if _, err := score.Compute(root); err != nil {
		return &ConfigError{Path: "points", Kind: ErrInvalidPoints, Cause: err}
	}
	s.ComputeScore = true
	return nil
}

func decimalPtr(f *float64) *decimal.Decimal {
	if f == nil {
		return nil
	}
	d := decimal.NewFromFloat(*f)
	return &d
}
