package eval

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sort"
	"sync"
	"time"

	"github.com/expr-lang/expr"
)

// State is the mutable state shared by the scopes of one suite: iter
// counters and the random source. Reset it between independent runs so
// counters restart at their declared start value.
type State struct {
	mu       sync.Mutex
	counters map[string]float64
	seed     *int64
	rng      *rand.Rand
}

// NewState creates a state. A nil seed draws one from the clock.
func NewState(seed *int64) *State {
	s := &State{seed: seed}
	s.Reset()
	return s
}

// Reset clears every counter and reseeds the random source.
func (s *State) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters = make(map[string]float64)
	seed := uint64(time.Now().UnixNano())
	if s.seed != nil {
		seed = uint64(*s.seed)
	}
	s.rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// Iter returns start on the first call for key and then advances by step.
func (s *State) Iter(key string, start, step float64) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.counters[key]
	if !ok {
		v = start
	} else {
		v += step
	}
	s.counters[key] = v
	return v
}

// Counters returns the number of live counters.
func (s *State) Counters() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.counters)
}

func (s *State) uniform(lo, hi float64) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return lo + s.rng.Float64()*(hi-lo)
}

func (s *State) intn(lo, hi int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return lo + s.rng.IntN(hi-lo+1)
}

func (s *Scope) functions() []expr.Option {
	opts := []expr.Option{
		expr.Function("iter", s.iter),
		expr.Function("random", s.random),
		expr.Function("randint", s.randint),
		expr.Function("pow", func(params ...any) (any, error) {
			if len(params) != 2 {
				return nil, fmt.Errorf("pow: expected 2 arguments, got %d", len(params))
			}
			x, err := toFloat(params[0])
			if err != nil {
				return nil, err
			}
			y, err := toFloat(params[1])
			if err != nil {
				return nil, err
			}
			return math.Pow(x, y), nil
		}),
	}
	for name, fn := range unary {
		opts = append(opts, expr.Function(name, unaryFunc(name, fn)))
	}
	return opts
}

var unary = map[string]func(float64) float64{
	"sin":   math.Sin,
	"cos":   math.Cos,
	"tan":   math.Tan,
	"asin":  math.Asin,
	"acos":  math.Acos,
	"atan":  math.Atan,
	"log":   math.Log,
	"log10": math.Log10,
	"log2":  math.Log2,
	"sqrt":  math.Sqrt,
	"exp":   math.Exp,
	"abs":   math.Abs,
	"floor": math.Floor,
	"ceil":  math.Ceil,
	"round": math.Round,
}

// Functions returns the names of the callable functions, sorted.
func Functions() []string {
	names := []string{"iter", "pow", "randint", "random"}
	for name := range unary {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func unaryFunc(name string, fn func(float64) float64) func(params ...any) (any, error) {
	return func(params ...any) (any, error) {
		if len(params) != 1 {
			return nil, fmt.Errorf("%s: expected 1 argument, got %d", name, len(params))
		}
		x, err := toFloat(params[0])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		return fn(x), nil
	}
}

// iter(start=0, step=1, ctx="")
func (s *Scope) iter(params ...any) (any, error) {
	if len(params) > 3 {
		return nil, fmt.Errorf("iter: expected at most 3 arguments, got %d", len(params))
	}
	var (
		start, step  any = 0, 1
		ctx          string
		integralArgs = true
	)
	if len(params) > 0 {
		start = params[0]
	}
	if len(params) > 1 {
		step = params[1]
	}
	if len(params) > 2 {
		c, ok := params[2].(string)
		if !ok {
			return nil, fmt.Errorf("iter: context must be a string, got %T", params[2])
		}
		ctx = c
	}
	lo, err := toFloat(start)
	if err != nil {
		return nil, fmt.Errorf("iter: %w", err)
	}
	inc, err := toFloat(step)
	if err != nil {
		return nil, fmt.Errorf("iter: %w", err)
	}
	if !isInt(start) || !isInt(step) {
		integralArgs = false
	}

	site := s.site
	if ctx != "" {
		site = ""
	}
	key := fmt.Sprintf("%s|%v|%v|%s", site, lo, inc, ctx)
	v := s.state.Iter(key, lo, inc)
	if integralArgs {
		return int(v), nil
	}
	return v, nil
}

// random(min=0, max=1) draws a float uniformly in [min, max).
func (s *Scope) random(params ...any) (any, error) {
	lo, hi := 0.0, 1.0
	switch len(params) {
	case 0:
	case 2:
		var err error
		if lo, err = toFloat(params[0]); err != nil {
			return nil, fmt.Errorf("random: %w", err)
		}
		if hi, err = toFloat(params[1]); err != nil {
			return nil, fmt.Errorf("random: %w", err)
		}
	default:
		return nil, fmt.Errorf("random: expected 0 or 2 arguments, got %d", len(params))
	}
	if hi < lo {
		return nil, fmt.Errorf("random: empty range [%v, %v)", lo, hi)
	}
	return s.state.uniform(lo, hi), nil
}

// randint(min, max) draws an integer in [min, max].
func (s *Scope) randint(params ...any) (any, error) {
	if len(params) != 2 {
		return nil, fmt.Errorf("randint: expected 2 arguments, got %d", len(params))
	}
	lo, err := toFloat(params[0])
	if err != nil {
		return nil, fmt.Errorf("randint: %w", err)
	}
	hi, err := toFloat(params[1])
	if err != nil {
		return nil, fmt.Errorf("randint: %w", err)
	}
	if hi < lo {
		return nil, fmt.Errorf("randint: empty range [%v, %v]", lo, hi)
	}
	return s.state.intn(int(lo), int(hi)), nil
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case int:
		return float64(n), nil
	case int8:
		return float64(n), nil
	case int16:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case uint:
		return float64(n), nil
	case uint8:
		return float64(n), nil
	case uint16:
		return float64(n), nil
	case uint32:
		return float64(n), nil
	case uint64:
		return float64(n), nil
	case float32:
		return float64(n), nil
	case float64:
		return n, nil
	default:
		return 0, fmt.Errorf("expected a number, got %T", v)
	}
}

func isInt(v any) bool {
	switch v.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return true
	}
	return false
}
