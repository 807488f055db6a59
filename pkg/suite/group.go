package suite

import (
	"context"

	"github.com/heig-tin/baygon/pkg/filters"
	"github.com/heig-tin/baygon/pkg/matchers"
)

// TestGroup is an inner node of the tree.
type TestGroup struct {
	Named
	Target

	Filters    filters.Filters
	SkipReason string

	tests []Node
}

// Tests returns the children of the group in declaration order.
func (g *TestGroup) Tests() []Node { return g.tests }

// Status aggregates the status of the children: failed if any failed,
// skipped if all were skipped, passed once every child ran.
func (g *TestGroup) Status() Status {
	var passed, skipped, pending int
	for _, c := range g.tests {
		switch c.Status() {
		case Failed:
			return Failed
		case Passed:
			passed++
		case Skipped:
			skipped++
		default:
			pending++
		}
	}
	switch {
	case pending > 0:
		return Pending
	case passed == 0 && skipped > 0:
		return Skipped
	}
	return Passed
}

// Reset resets every descendant.
func (g *TestGroup) Reset() {
	for _, c := range g.tests {
		c.Reset()
	}
}

// Run runs the children depth-first and keeps the per-child structure of
// the issues.
func (g *TestGroup) Run(ctx context.Context, hook Hook) (*Result, error) {
	return g.result(ctx, hook)
}

// RunFlat runs the children depth-first and concatenates their issues.
func (g *TestGroup) RunFlat(ctx context.Context, hook Hook) ([]*matchers.Issue, error) {
	res, err := g.result(ctx, hook)
	return res.Flatten(), err
}

func (g *TestGroup) result(ctx context.Context, hook Hook) (*Result, error) {
	res := &Result{Node: g}
	for _, c := range g.tests {
		if err := ctx.Err(); err != nil {
			res.Status = g.Status()
			return res, err
		}
		cr, err := c.result(ctx, hook)
		if err != nil {
			res.Status = g.Status()
			return res, err
		}
		res.Children = append(res.Children, cr)
	}
	res.Status = g.Status()
	return res, nil
}
