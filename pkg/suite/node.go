// Package suite resolves a test description into a tree of runnable test
// groups and test cases, and runs them.
package suite

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/heig-tin/baygon/pkg/id"
	"github.com/heig-tin/baygon/pkg/matchers"
	"github.com/heig-tin/baygon/pkg/score"
)

// Status is the outcome of the last run of a node.
type Status string

const (
	Pending Status = ""
	Passed  Status = "passed"
	Failed  Status = "failed"
	Skipped Status = "skipped"
)

// Node is a TestGroup or a TestCase.
type Node interface {
	ID() id.ID
	Name() string
	Path() string
	Points() decimal.Decimal
	Status() Status
	Reset()

	result(ctx context.Context, hook Hook) (*Result, error)
}

// Named carries what every node has: an identifier, a display name, the
// location in the description and the score view.
type Named struct {
	id    id.ID
	name  string
	path  string
	score *score.Node
}

func (n *Named) ID() id.ID    { return n.id }
func (n *Named) Name() string { return n.name }
func (n *Named) Path() string { return n.path }

// Score returns the score view of the node.
func (n *Named) Score() *score.Node { return n.score }

// Points returns the points assigned to the node, zero when score
// computation is disabled.
func (n *Named) Points() decimal.Decimal {
	if n.score == nil || n.score.Points == nil {
		return decimal.Zero
	}
	return *n.score.Points
}

// Target is the resolved execution context of a node.
type Target struct {
	Executable string
	Env        map[string]string
	Dir        string
	TTY        bool
	Timeout    time.Duration
}

// Result is the structured outcome of a run. A case result has Issues; a
// group result has one child result per child node.
type Result struct {
	Node     Node
	Status   Status
	Issues   []*matchers.Issue
	Children []*Result
}

// Flatten concatenates the issues of r and its descendants in depth-first
// order.
func (r *Result) Flatten() []*matchers.Issue {
	if r == nil {
		return nil
	}
	out := append([]*matchers.Issue(nil), r.Issues...)
	for _, c := range r.Children {
		out = append(out, c.Flatten()...)
	}
	return out
}

// Walk visits n and its descendants depth-first. Returning false from fn
// skips the descendants of the visited node.
func Walk(n Node, fn func(Node) bool) {
	if !fn(n) {
		return
	}
	if g, ok := n.(*TestGroup); ok {
		for _, c := range g.tests {
			Walk(c, fn)
		}
	}
}

// Cases returns the test cases under n in execution order.
func Cases(n Node) []*TestCase {
	var out []*TestCase
	Walk(n, func(n Node) bool {
		if tc, ok := n.(*TestCase); ok {
			out = append(out, tc)
		}
		return true
	})
	return out
}
