package filters

import (
	"fmt"
	"sort"
)

// Params carries the arguments of parameterized filter kinds.
type Params struct {
	Search  string // replace
	Pattern string // regex
	Replace string // replace, regex
	Flags   string // regex
}

type factory func(Params) (Filter, error)

var registry = map[string]factory{
	"uppercase":     func(Params) (Filter, error) { return Uppercase{}, nil },
	"lowercase":     func(Params) (Filter, error) { return Lowercase{}, nil },
	"trim":          func(Params) (Filter, error) { return Trim{}, nil },
	"ignorespaces":  func(Params) (Filter, error) { return IgnoreSpaces{}, nil },
	"ignore-spaces": func(Params) (Filter, error) { return IgnoreSpaces{}, nil },
	"replace": func(p Params) (Filter, error) {
		if p.Search == "" {
			return nil, fmt.Errorf("replace filter: empty search string")
		}
		return Replace{Search: p.Search, Replacement: p.Replace}, nil
	},
	"regex": func(p Params) (Filter, error) {
		return NewRegex(p.Pattern, p.Replace, p.Flags)
	},
}

// New builds a filter by configuration key.
func New(kind string, p Params) (Filter, error) {
	f, ok := registry[kind]
	if !ok {
		return nil, fmt.Errorf("unknown filter %q", kind)
	}
	return f(p)
}

// Kinds lists the known filter keys.
func Kinds() []string {
	kinds := make([]string, 0, len(registry))
	for k := range registry {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}
