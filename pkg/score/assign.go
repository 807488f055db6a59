package score

import (
	"github.com/shopspring/decimal"
)

// DefaultWeight is the weight of a node that declares neither points nor
// weight, relative to its siblings.
var DefaultWeight = decimal.NewFromInt(10)

// DefaultMinPoints is the granularity used when no node declares one.
var DefaultMinPoints = decimal.NewFromInt(1)

// Node is the score view of a test tree node. Nil fields are undeclared.
// Assign fills Points (and MinPoints) on every node.
type Node struct {
	Points    *decimal.Decimal
	Weight    *decimal.Decimal
	MinPoints *decimal.Decimal
	Children  []*Node
}

// Group reports whether the node has children.
func (n *Node) Group() bool { return len(n.Children) > 0 }

// Declared reports whether the node or one of its descendants declares
// points or a weight.
func (n *Node) Declared() bool {
	if n.Points != nil || n.Weight != nil {
		return true
	}
	for _, c := range n.Children {
		if c.Declared() {
			return true
		}
	}
	return false
}

// Compute assigns points over the whole tree. It returns false, leaving the
// tree untouched, when no node declares points or a weight: score
// computation is then disabled rather than producing zeros.
func Compute(root *Node) (bool, error) {
	if !root.Declared() {
		return false, nil
	}
	if err := check(root); err != nil {
		return true, err
	}
	if root.Points == nil {
		p := declaredTotal(root)
		if p.IsZero() {
			p = decimal.NewFromInt(1)
		}
		root.Points = &p
	}
	return true, Assign(root, nil)
}

// Assign resolves the points of n's descendants. n.Points must be set
// unless n is a root, in which case it defaults to 1 when something in the
// tree declares points or weights and 0 otherwise.
//
// Children with fixed points are served first; the remaining budget is
// distributed by weight over the other children (DefaultWeight when a child
// declares none), rounded to the node's MinPoints.
func Assign(n, parent *Node) error {
	minPoints := DefaultMinPoints
	switch {
	case n.MinPoints != nil:
		minPoints = *n.MinPoints
	case parent != nil && parent.MinPoints != nil:
		minPoints = *parent.MinPoints
	}
	n.MinPoints = &minPoints

	if n.Points == nil {
		p := decimal.Zero
		if n.Declared() {
			p = decimal.NewFromInt(1)
		}
		n.Points = &p
	}
	if !n.Group() {
		return nil
	}

	fixed := decimal.Zero
	var (
		weights []decimal.Decimal
		open    []*Node
	)
	for _, c := range n.Children {
		if c.Points != nil {
			fixed = fixed.Add(*c.Points)
			continue
		}
		w := DefaultWeight
		if c.Weight != nil {
			w = *c.Weight
		}
		weights = append(weights, w)
		open = append(open, c)
	}

	budget := n.Points.Sub(fixed)
	if budget.IsNegative() {
		return ErrOverBudget
	}
	if len(open) > 0 {
		if allZero(weights) {
			for i := range weights {
				weights[i] = DefaultWeight
			}
		}
		shares, err := Distribute(weights, budget, minPoints)
		if err != nil {
			return err
		}
		for i, c := range open {
			p := shares[i]
			c.Points = &p
		}
	}

	for _, c := range n.Children {
		if err := Assign(c, n); err != nil {
			return err
		}
	}
	return nil
}

// Sum returns the sum of the children's points.
func (n *Node) Sum() decimal.Decimal {
	s := decimal.Zero
	for _, c := range n.Children {
		if c.Points != nil {
			s = s.Add(*c.Points)
		}
	}
	return s
}

func check(n *Node) error {
	if n.Points != nil && n.Weight != nil {
		return ErrPointsWeight
	}
	for _, c := range n.Children {
		if err := check(c); err != nil {
			return err
		}
	}
	return nil
}

// declaredTotal is the budget implied by a subtree that fixes points below
// its root.
func declaredTotal(n *Node) decimal.Decimal {
	if n.Points != nil {
		return *n.Points
	}
	s := decimal.Zero
	for _, c := range n.Children {
		s = s.Add(declaredTotal(c))
	}
	return s
}

func allZero(ws []decimal.Decimal) bool {
	for _, w := range ws {
		if !w.IsZero() {
			return false
		}
	}
	return true
}
